package browser

import "errors"

var (
	ErrNoResults      = errors.New("no search results")
	ErrVideoNotFound  = errors.New("video not found")
	ErrPlayerNotReady = errors.New("player not ready")
	ErrBrowserClosed  = errors.New("browser closed")
)

// transientError marks a driver/communication failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the retry policy will attempt it again.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Package browser owns the single automation-driver handle and the session
// state around it: the search result cache, the active video and the closed
// flag. All operations are serialized behind the controller's lock.
package browser

import "context"

// Result is one cached search hit.
type Result struct {
	Title    string
	WatchURL string
}

// Driver is the automation handle the controller drives. Implementations
// should wrap communication failures with Transient so the retry policy can
// tell them apart from genuine faults.
type Driver interface {
	OpenTab(ctx context.Context, url string) error
	// CloseTab closes the focused tab and reports how many remain.
	CloseTab(ctx context.Context) (remaining int, err error)
	Quit(ctx context.Context) error

	Paused(ctx context.Context) (bool, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	PlayerReady(ctx context.Context) (bool, error)
}

// SearchOracle resolves a free-text query into watchable results.
type SearchOracle interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Package speech defines the contracts the assistant core expects from the
// speech input/output collaborators. The actual TTS/STT services live behind
// these interfaces.
package speech

import (
	"context"
	"time"
)

// Outcome classifies a listen attempt. Everything except Heard is an
// expected miss, not a fault.
type Outcome int

const (
	Heard Outcome = iota
	Timeout
	Unintelligible
	ServiceFailure
)

func (o Outcome) String() string {
	switch o {
	case Heard:
		return "heard"
	case Timeout:
		return "timeout"
	case Unintelligible:
		return "unintelligible"
	case ServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// ListenResult carries recognized text when Outcome == Heard.
type ListenResult struct {
	Text    string
	Outcome Outcome
}

// Listener blocks up to timeout for speech to start and up to phraseLimit
// for it to end.
type Listener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) ListenResult
}

// Speaker kicks off playback and returns a channel that is closed when the
// utterance finishes. Implementations must close the channel even on internal
// failure so callers never hang. Healthy reports whether the audio stack is
// usable at all.
type Speaker interface {
	Speak(text string) <-chan struct{}
	Healthy() bool
}

// Await waits for a speak completion signal with a watchdog timeout. Returns
// false if the watchdog fired first.
func Await(done <-chan struct{}, timeout time.Duration) bool {
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

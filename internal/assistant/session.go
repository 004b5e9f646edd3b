// Package assistant drives the conversation: listen, think, speak, repeat,
// with bounded retries and a circuit breaker around runaway failures.
package assistant

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync/atomic"
	"time"

	"aria/internal/action"
	"aria/internal/config"
	"aria/internal/nlu"
	"aria/internal/speech"
)

// State is the session's phase. Exactly one phase is active at a time;
// phases never overlap within a session.
type State int

const (
	Idle State = iota
	Listening
	Thinking
	Speaking
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Thinking:
		return "thinking"
	case Speaking:
		return "speaking"
	default:
		return "idle"
	}
}

// Notifier receives UI-facing session events. Implementations must not
// block; a broken notifier must never break the conversation.
type Notifier interface {
	StateChanged(s State)
	Message(who, text string)
	Deactivated()
}

// Classifier is the NLU oracle contract. A nil result with nil error means
// the utterance could not be interpreted.
type Classifier interface {
	Classify(ctx context.Context, text string) (*nlu.Result, error)
}

// Dispatcher executes one parsed action and reports success.
type Dispatcher interface {
	Dispatch(ctx context.Context, act action.Action) bool
}

var exitPhrases = []string{"goodbye", "exit", "quit", "stop", "close", "that's all"}

// Session owns the conversation loop. All mutable fields are touched only
// by the goroutine running Start; other goroutines may only read the active
// flag or call Stop.
type Session struct {
	cfg config.Session

	speaker  speech.Speaker
	listener speech.Listener
	classify Classifier
	dispatch Dispatcher
	notify   Notifier

	active atomic.Bool

	state           State
	lastInteraction time.Time
	listenFailures  int
	errorStreak     int
}

func NewSession(cfg config.Session, speaker speech.Speaker, listener speech.Listener, classify Classifier, dispatch Dispatcher, notify Notifier) *Session {
	return &Session{
		cfg:      cfg,
		speaker:  speaker,
		listener: listener,
		classify: classify,
		dispatch: dispatch,
		notify:   notify,
	}
}

func (s *Session) Active() bool { return s.active.Load() }

// Stop requests termination. The loop observes it between iterations; a
// blocking listen or speak in progress runs to its own timeout first.
func (s *Session) Stop() { s.active.Store(false) }

// Start runs the conversation until an exit phrase, a timeout, a retry
// ceiling or the context ends it. Starting an active session is a no-op.
func (s *Session) Start(ctx context.Context) {
	if !s.active.CompareAndSwap(false, true) {
		log.Warn("Conversation already active")
		return
	}
	defer s.finish()

	log.Info("Starting conversation")
	s.listenFailures = 0
	s.errorStreak = 0
	s.lastInteraction = time.Now()

	if !s.speaker.Healthy() {
		s.say("I'm having trouble with the audio system. Please check your microphone.")
		return
	}

	s.setState(Speaking)
	s.say("Hello! How can I help you today?")
	s.setState(Idle)

	s.loop(ctx)
}

func (s *Session) loop(ctx context.Context) {
	for s.active.Load() {
		if ctx.Err() != nil {
			log.Info("Conversation cancelled")
			return
		}

		if time.Since(s.lastInteraction) > s.cfg.ConversationTimeout {
			s.say("Closing due to inactivity. Just say my name to start again.")
			return
		}

		s.setState(Listening)
		heard := s.listener.Listen(ctx, s.cfg.ListenTimeout, s.cfg.PhraseLimit)

		if heard.Outcome != speech.Heard {
			log.Debug("Nothing recognized", "outcome", heard.Outcome.String())
			s.listenFailures++
			if s.listenFailures >= s.cfg.MaxListenRetries {
				s.say("I'm having trouble hearing you. I'll wait for you to call me again.")
				return
			}
			s.setState(Speaking)
			s.say("Sorry, I didn't catch that. Could you please repeat?")
			s.setState(Idle)
			continue
		}

		s.listenFailures = 0
		s.lastInteraction = time.Now()
		s.notify.Message("user", heard.Text)

		if isExitPhrase(heard.Text) {
			s.say("Goodbye! Have a great day.")
			return
		}

		s.setState(Thinking)
		ok, err := s.process(ctx, heard.Text)
		if err != nil {
			s.errorStreak++
			log.Error("Command processing failed", "err", err, "streak", s.errorStreak)
			if s.errorStreak >= s.cfg.CriticalErrorLimit {
				s.say("I'm sorry, something keeps going wrong. Shutting down for now.")
				return
			}
		} else {
			s.errorStreak = 0
		}

		s.setState(Speaking)
		if ok {
			s.say("Is there anything else I can help you with?")
		} else {
			s.say("Let me know if there's anything else you need.")
		}
		s.setState(Idle)
	}
}

// process runs classify + dispatch for one utterance. The returned error
// covers genuine faults only (oracle transport failure, panic); an
// uninterpretable utterance is an unsuccessful outcome, not a fault.
func (s *Session) process(ctx context.Context, text string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	log.Info("Processing command", "text", text)

	res, err := s.classify.Classify(ctx, text)
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	if res == nil {
		log.Warn("Could not interpret utterance", "text", text)
		return false, nil
	}

	act, perr := action.Parse(res.Command, res.Parameters)
	if perr != nil {
		log.Warn("Invalid intent parameters", "command", res.Command, "err", perr)
		return false, nil
	}

	return s.dispatch.Dispatch(ctx, act), nil
}

func (s *Session) finish() {
	s.active.Store(false)
	s.setState(Idle)
	s.notify.Deactivated()
	log.Info("Conversation stopped")
}

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.state = next
	s.notify.StateChanged(next)
	log.Debug("State changed", "state", next.String())
}

func (s *Session) say(text string) {
	s.notify.Message("assistant", text)
	if !speech.Await(s.speaker.Speak(text), s.cfg.SpeakTimeout) {
		log.Warn("Gave up waiting for speech to finish", "text", text)
	}
}

func isExitPhrase(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range exitPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

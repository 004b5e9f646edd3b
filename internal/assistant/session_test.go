package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/action"
	"aria/internal/config"
	"aria/internal/nlu"
	"aria/internal/speech"
)

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	healthy bool
}

func newFakeSpeaker() *fakeSpeaker { return &fakeSpeaker{healthy: true} }

func (f *fakeSpeaker) Speak(text string) <-chan struct{} {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func (f *fakeSpeaker) Healthy() bool { return f.healthy }

func (f *fakeSpeaker) said(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.spoken {
		if strings.Contains(strings.ToLower(s), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

// scriptedListener replays a fixed sequence; once exhausted every listen
// times out, which drives the loop to its retry ceiling.
type scriptedListener struct {
	results []speech.ListenResult
	idx     int
}

func (l *scriptedListener) Listen(context.Context, time.Duration, time.Duration) speech.ListenResult {
	if l.idx >= len(l.results) {
		return speech.ListenResult{Outcome: speech.Timeout}
	}
	r := l.results[l.idx]
	l.idx++
	return r
}

func heard(text string) speech.ListenResult {
	return speech.ListenResult{Text: text, Outcome: speech.Heard}
}

type fakeClassifier struct {
	fn func(text string) (*nlu.Result, error)
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (*nlu.Result, error) {
	if f.fn == nil {
		return &nlu.Result{Command: "search_web", Parameters: map[string]string{"query": text}}, nil
	}
	return f.fn(text)
}

type fakeDispatcher struct {
	mu      sync.Mutex
	actions []action.Action
	ok      bool
	panics  bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, act action.Action) bool {
	if f.panics {
		panic("collaborator exploded")
	}
	f.mu.Lock()
	f.actions = append(f.actions, act)
	f.mu.Unlock()
	return f.ok
}

type nopNotifier struct{}

func (nopNotifier) StateChanged(State) {}
func (nopNotifier) Message(_, _ string) {}
func (nopNotifier) Deactivated() {}

type recordingNotifier struct {
	mu     sync.Mutex
	states []State
}

func (r *recordingNotifier) StateChanged(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recordingNotifier) Message(_, _ string) {}
func (r *recordingNotifier) Deactivated() {}

func testConfig() config.Session {
	return config.Session{
		ConversationTimeout: time.Minute,
		ListenTimeout:       10 * time.Millisecond,
		PhraseLimit:         10 * time.Millisecond,
		SpeakTimeout:        100 * time.Millisecond,
		MaxListenRetries:    3,
		CriticalErrorLimit:  3,
	}
}

func newTestSession(cfg config.Session, sp *fakeSpeaker, l *scriptedListener, cl *fakeClassifier, d *fakeDispatcher) *Session {
	return NewSession(cfg, sp, l, cl, d, nopNotifier{})
}

func TestExitPhraseTerminatesImmediately(t *testing.T) {
	for _, utterance := range []string{"GoodBye", "Exit now", "that's all for today", "STOP"} {
		sp := newFakeSpeaker()
		d := &fakeDispatcher{ok: true}
		s := newTestSession(testConfig(), sp, &scriptedListener{results: []speech.ListenResult{heard(utterance)}}, &fakeClassifier{}, d)

		s.Start(context.Background())

		assert.False(t, s.Active(), "utterance %q", utterance)
		assert.True(t, sp.said("goodbye"), "utterance %q", utterance)
		assert.Empty(t, d.actions, "exit must not reach the gateway")
	}
}

func TestListenRetryCeilingTerminates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxListenRetries = 2

	sp := newFakeSpeaker()
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		{Outcome: speech.Timeout},
		{Outcome: speech.Unintelligible},
	}}, &fakeClassifier{}, &fakeDispatcher{})

	s.Start(context.Background())

	assert.False(t, s.Active())
	assert.True(t, sp.said("trouble hearing"))
	// One reprompt for the first miss, then the terminal notice.
	assert.True(t, sp.said("didn't catch that"))
}

func TestListenFailureCounterResetsOnSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.MaxListenRetries = 2

	sp := newFakeSpeaker()
	d := &fakeDispatcher{ok: true}
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		{Outcome: speech.Timeout},
		heard("search for cats"),
		{Outcome: speech.Timeout},
		{Outcome: speech.Timeout},
	}}, &fakeClassifier{}, d)

	s.Start(context.Background())

	// The recognized command in between resets the failure counter, so the
	// session survives past a naive total of two misses.
	require.Len(t, d.actions, 1)
	assert.True(t, sp.said("trouble hearing"))
}

func TestDispatchFeedback(t *testing.T) {
	sp := newFakeSpeaker()
	s := newTestSession(testConfig(), sp, &scriptedListener{results: []speech.ListenResult{
		heard("search for cats"),
		heard("goodbye"),
	}}, &fakeClassifier{}, &fakeDispatcher{ok: true})

	s.Start(context.Background())
	assert.True(t, sp.said("anything else I can help"))
}

func TestFailedDispatchGetsNeutralFeedback(t *testing.T) {
	sp := newFakeSpeaker()
	s := newTestSession(testConfig(), sp, &scriptedListener{results: []speech.ListenResult{
		heard("search for cats"),
		heard("goodbye"),
	}}, &fakeClassifier{}, &fakeDispatcher{ok: false})

	s.Start(context.Background())
	assert.True(t, sp.said("anything else you need"))
}

func TestCriticalErrorThresholdForcesTermination(t *testing.T) {
	cfg := testConfig()
	cfg.CriticalErrorLimit = 3

	sp := newFakeSpeaker()
	cl := &fakeClassifier{fn: func(string) (*nlu.Result, error) {
		return nil, errors.New("oracle unreachable")
	}}
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		heard("do something"),
		heard("do something"),
		heard("do something"),
		heard("do something"),
	}}, cl, &fakeDispatcher{})

	s.Start(context.Background())

	assert.False(t, s.Active())
	assert.True(t, sp.said("something keeps going wrong"))
	assert.Equal(t, 3, s.errorStreak)
}

func TestErrorStreakResetsOnCleanIteration(t *testing.T) {
	cfg := testConfig()
	cfg.CriticalErrorLimit = 2

	fail := true
	cl := &fakeClassifier{fn: func(text string) (*nlu.Result, error) {
		if fail {
			fail = false
			return nil, errors.New("hiccup")
		}
		return &nlu.Result{Command: "search_web", Parameters: map[string]string{"query": text}}, nil
	}}

	sp := newFakeSpeaker()
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		heard("first"),
		heard("second"),
		heard("goodbye"),
	}}, cl, &fakeDispatcher{ok: true})

	s.Start(context.Background())

	assert.Equal(t, 0, s.errorStreak)
	assert.False(t, sp.said("something keeps going wrong"))
}

func TestPanicDuringProcessingCountsAsError(t *testing.T) {
	cfg := testConfig()
	cfg.CriticalErrorLimit = 2

	sp := newFakeSpeaker()
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		heard("boom"),
		heard("boom"),
	}}, &fakeClassifier{}, &fakeDispatcher{panics: true})

	s.Start(context.Background())

	assert.False(t, s.Active())
	assert.True(t, sp.said("something keeps going wrong"))
}

func TestInactivityTimeoutClosesSession(t *testing.T) {
	cfg := testConfig()
	cfg.ConversationTimeout = 0 // every iteration looks stale

	sp := newFakeSpeaker()
	s := newTestSession(cfg, sp, &scriptedListener{}, &fakeClassifier{}, &fakeDispatcher{})

	s.Start(context.Background())

	assert.False(t, s.Active())
	assert.True(t, sp.said("inactivity"))
}

func TestUnhealthyAudioAbortsBeforeWelcome(t *testing.T) {
	sp := newFakeSpeaker()
	sp.healthy = false
	s := newTestSession(testConfig(), sp, &scriptedListener{}, &fakeClassifier{}, &fakeDispatcher{})

	s.Start(context.Background())

	assert.False(t, s.Active())
	assert.True(t, sp.said("trouble with the audio system"))
	assert.False(t, sp.said("how can I help"))
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	sp := newFakeSpeaker()
	s := newTestSession(testConfig(), sp, &scriptedListener{}, &fakeClassifier{}, &fakeDispatcher{})
	s.active.Store(true)

	s.Start(context.Background())

	sp.mu.Lock()
	defer sp.mu.Unlock()
	assert.Empty(t, sp.spoken)
}

func TestUninterpretableUtteranceIsNotAFault(t *testing.T) {
	cfg := testConfig()
	cfg.CriticalErrorLimit = 1

	cl := &fakeClassifier{fn: func(string) (*nlu.Result, error) {
		return nil, nil // oracle shrugs
	}}
	sp := newFakeSpeaker()
	s := newTestSession(cfg, sp, &scriptedListener{results: []speech.ListenResult{
		heard("mumble mumble"),
		heard("goodbye"),
	}}, cl, &fakeDispatcher{})

	s.Start(context.Background())

	// Even with a limit of one, an uninterpretable utterance never trips
	// the circuit breaker.
	assert.False(t, sp.said("something keeps going wrong"))
	assert.True(t, sp.said("goodbye"))
}

func TestRepromptReturnsToIdleBeforeListening(t *testing.T) {
	rec := &recordingNotifier{}
	sp := newFakeSpeaker()
	s := NewSession(testConfig(), sp, &scriptedListener{results: []speech.ListenResult{
		{Outcome: speech.Timeout},
		heard("goodbye"),
	}}, &fakeClassifier{}, &fakeDispatcher{}, rec)

	s.Start(context.Background())

	// The reprompt path emits the same Speaking -> Idle sequence as the
	// feedback path, so the UI never sees Speaking jump straight to
	// Listening.
	want := []State{Speaking, Idle, Listening, Speaking, Idle, Listening, Idle}
	assert.Equal(t, want, rec.states)
}

func TestExitPhraseMatching(t *testing.T) {
	assert.True(t, isExitPhrase("GoodBye"))
	assert.True(t, isExitPhrase("please EXIT now"))
	assert.True(t, isExitPhrase("ok that's all"))
	assert.False(t, isExitPhrase("open the door"))
}

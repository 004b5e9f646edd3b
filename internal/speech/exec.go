package speech

import (
	"context"
	log "log/slog"
	"os/exec"
	"strings"
	"time"
)

// Exec bridges to external TTS/STT programs. Speaking runs the speak
// command with the text as its final argument; listening runs the listen
// command and reads recognized text from stdout. Both are treated as opaque
// third-party services.
type Exec struct {
	speakCmd  []string
	listenCmd []string
}

func NewExec(speakCmd, listenCmd []string) *Exec {
	return &Exec{speakCmd: speakCmd, listenCmd: listenCmd}
}

func (e *Exec) Speak(text string) <-chan struct{} {
	done := make(chan struct{})
	if text == "" || len(e.speakCmd) == 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		args := append(append([]string(nil), e.speakCmd[1:]...), text)
		if err := exec.Command(e.speakCmd[0], args...).Run(); err != nil {
			log.Error("Speak command failed", "err", err)
		}
	}()
	return done
}

func (e *Exec) Listen(ctx context.Context, timeout, phraseLimit time.Duration) ListenResult {
	if len(e.listenCmd) == 0 {
		return ListenResult{Outcome: ServiceFailure}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout+phraseLimit)
	defer cancel()

	out, err := exec.CommandContext(cctx, e.listenCmd[0], e.listenCmd[1:]...).Output()
	if cctx.Err() != nil {
		return ListenResult{Outcome: Timeout}
	}
	if err != nil {
		log.Error("Listen command failed", "err", err)
		return ListenResult{Outcome: ServiceFailure}
	}

	text := strings.ToLower(strings.TrimSpace(string(out)))
	if text == "" {
		return ListenResult{Outcome: Unintelligible}
	}
	return ListenResult{Text: text, Outcome: Heard}
}

func (e *Exec) Healthy() bool {
	if len(e.speakCmd) == 0 || len(e.listenCmd) == 0 {
		return false
	}
	if _, err := exec.LookPath(e.speakCmd[0]); err != nil {
		return false
	}
	if _, err := exec.LookPath(e.listenCmd[0]); err != nil {
		return false
	}
	return true
}

package assistant

import (
	"context"

	"aria/internal/config"
	"aria/internal/nlu"
	"aria/internal/speech"
)

// ConfirmOracle judges a free-form reply to a yes/no question.
type ConfirmOracle interface {
	Confirmed(ctx context.Context, response, question string) nlu.Decision
}

// VoiceConfirmer asks the user out loud and listens for the answer. Any
// miss (timeout, unintelligible reply, oracle failure) counts as a no.
type VoiceConfirmer struct {
	cfg      config.Session
	speaker  speech.Speaker
	listener speech.Listener
	oracle   ConfirmOracle
}

func NewVoiceConfirmer(cfg config.Session, speaker speech.Speaker, listener speech.Listener, oracle ConfirmOracle) *VoiceConfirmer {
	return &VoiceConfirmer{
		cfg:      cfg,
		speaker:  speaker,
		listener: listener,
		oracle:   oracle,
	}
}

func (v *VoiceConfirmer) ConfirmSend(ctx context.Context, question string) bool {
	speech.Await(v.speaker.Speak(question), v.cfg.SpeakTimeout)

	heard := v.listener.Listen(ctx, v.cfg.ListenTimeout, v.cfg.PhraseLimit)
	if heard.Outcome != speech.Heard {
		return false
	}

	return v.oracle.Confirmed(ctx, heard.Text, question) == nlu.Confirm
}

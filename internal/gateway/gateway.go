// Package gateway dispatches parsed actions to their side-effecting
// collaborators. It never propagates collaborator failures: every outcome is
// reduced to a boolean, and every failure is spoken before it is swallowed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"aria/internal/action"
	"aria/internal/browser"
	"aria/internal/mail"
	"aria/internal/speech"
)

// SystemActions is the desktop side-effect collaborator.
type SystemActions interface {
	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	SearchWeb(ctx context.Context, query string) error
}

// VideoController is the browser automation collaborator.
type VideoController interface {
	Search(ctx context.Context, query string, limit int) ([]browser.Result, error)
	Play(ctx context.Context, identifier string) (browser.Result, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	CloseTab(ctx context.Context) error
	Close(ctx context.Context) error
}

// Mailer accepts outbound messages for background delivery.
type Mailer interface {
	Enqueue(m *mail.Message)
}

// Confirmer asks the user a yes/no question through whatever channel the
// application wired up. A nil Confirmer means sends go out unasked.
type Confirmer interface {
	ConfirmSend(ctx context.Context, question string) bool
}

type Gateway struct {
	speaker      speech.Speaker
	speakTimeout time.Duration

	sys       SystemActions
	videos    VideoController
	mailer    Mailer
	confirmer Confirmer

	mailFrom string
}

func New(speaker speech.Speaker, speakTimeout time.Duration, sys SystemActions, videos VideoController, mailer Mailer, confirmer Confirmer, mailFrom string) *Gateway {
	return &Gateway{
		speaker:      speaker,
		speakTimeout: speakTimeout,
		sys:          sys,
		videos:       videos,
		mailer:       mailer,
		confirmer:    confirmer,
		mailFrom:     mailFrom,
	}
}

// Dispatch executes one action and reports success. Collaborator errors and
// panics are logged and converted to false; they never reach the caller.
func (g *Gateway) Dispatch(ctx context.Context, act action.Action) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during dispatch", "action", fmt.Sprintf("%T", act), "panic", r)
			g.say("Something went wrong while doing that.")
			ok = false
		}
	}()

	switch a := act.(type) {
	case action.OpenApp:
		return g.report(g.sys.OpenApp(ctx, a.App), fmt.Sprintf("Opening %s.", a.App))

	case action.CloseApp:
		return g.report(g.sys.CloseApp(ctx, a.App), fmt.Sprintf("Closing %s.", a.App))

	case action.SearchWeb:
		return g.report(g.sys.SearchWeb(ctx, a.Query), fmt.Sprintf("Searching the web for %s.", a.Query))

	case action.SearchVideo:
		results, err := g.videos.Search(ctx, a.Query, 0)
		if err != nil {
			log.Error("Video search failed", "query", a.Query, "err", err)
			g.say(videoErrorMessage(err))
			return false
		}
		g.say(describeResults(results))
		return true

	case action.PlayVideo:
		target, err := g.videos.Play(ctx, a.Identifier)
		if err != nil {
			log.Error("Play failed", "identifier", a.Identifier, "err", err)
			g.say(videoErrorMessage(err))
			return false
		}
		g.say(fmt.Sprintf("Okay, playing %s.", target.Title))
		return true

	case action.PauseVideo:
		return g.report(g.videos.Pause(ctx), "Video paused.")
	case action.ResumeVideo:
		return g.report(g.videos.Resume(ctx), "Resuming playback.")
	case action.NextVideo:
		return g.report(g.videos.Next(ctx), "Next video.")
	case action.PreviousVideo:
		return g.report(g.videos.Previous(ctx), "Previous video.")
	case action.CloseTab:
		return g.report(g.videos.CloseTab(ctx), "Tab closed.")
	case action.CloseBrowser:
		return g.report(g.videos.Close(ctx), "Browser closed.")

	case action.SendEmail:
		return g.sendEmail(ctx, a)

	case action.Unsupported:
		log.Info("Unsupported command", "reason", a.Reason)
		g.say(a.Reason)
		return false

	default:
		log.Warn("No handler for action", "action", fmt.Sprintf("%T", act))
		g.say("I'm not sure how to help with that.")
		return false
	}
}

func (g *Gateway) sendEmail(ctx context.Context, a action.SendEmail) bool {
	if g.mailFrom == "" {
		log.Error("Email not configured")
		g.say("Email isn't set up yet.")
		return false
	}

	if g.confirmer != nil {
		if !g.confirmer.ConfirmSend(ctx, fmt.Sprintf("Should I send an email to %s?", a.Recipient)) {
			g.say("Okay, no email sent.")
			return false
		}
	}

	g.mailer.Enqueue(mail.NewMessage(g.mailFrom, a.Recipient, a.Subject, a.Body))
	g.say("Email queued for sending.")
	return true
}

// report speaks the success message or a failure notice, and maps the error
// to a boolean.
func (g *Gateway) report(err error, success string) bool {
	if err != nil {
		log.Error("Action failed", "err", err)
		g.say(videoErrorMessage(err))
		return false
	}
	g.say(success)
	return true
}

func (g *Gateway) say(text string) {
	if !speech.Await(g.speaker.Speak(text), g.speakTimeout) {
		log.Warn("Gave up waiting for speech to finish", "text", text)
	}
}

func describeResults(results []browser.Result) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("Result %d: %s", i+1, r.Title))
	}
	return "Here are the top results: " + strings.Join(parts, ", ")
}

func videoErrorMessage(err error) string {
	switch {
	case errors.Is(err, browser.ErrBrowserClosed):
		return "The browser is already closed."
	case errors.Is(err, browser.ErrNoResults):
		return "I couldn't find any videos matching that search."
	case errors.Is(err, browser.ErrVideoNotFound):
		return "I couldn't find that video in the results."
	case errors.Is(err, browser.ErrPlayerNotReady):
		return "The video player didn't come up in time."
	default:
		return "Sorry, that didn't work."
	}
}

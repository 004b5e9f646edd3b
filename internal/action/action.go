// Package action defines the closed set of commands the assistant can
// execute. The NLU oracle emits {command, parameters}; Parse turns that into
// a typed variant so dispatch over the command set is checked at compile
// time.
package action

import "fmt"

// Action is the sum type over the supported command set.
type Action interface {
	isAction()
}

type OpenApp struct{ App string }

type CloseApp struct{ App string }

type SearchWeb struct{ Query string }

type SearchVideo struct{ Query string }

type PlayVideo struct{ Identifier string }

type PauseVideo struct{}

type ResumeVideo struct{}

type NextVideo struct{}

type PreviousVideo struct{}

type CloseTab struct{}

type CloseBrowser struct{}

type SendEmail struct {
	Recipient string
	Subject   string
	Body      string
}

// Unsupported carries a human-readable reason the oracle (or Parse itself)
// gave for refusing the command.
type Unsupported struct{ Reason string }

func (OpenApp) isAction() {}
func (CloseApp) isAction() {}
func (SearchWeb) isAction() {}
func (SearchVideo) isAction() {}
func (PlayVideo) isAction() {}
func (PauseVideo) isAction() {}
func (ResumeVideo) isAction() {}
func (NextVideo) isAction() {}
func (PreviousVideo) isAction() {}
func (CloseTab) isAction() {}
func (CloseBrowser) isAction() {}
func (SendEmail) isAction() {}
func (Unsupported) isAction() {}

// Parse validates oracle output against the command set. Missing required
// parameters yield an error and no action; an unknown command name maps to
// Unsupported rather than an error, since the oracle is allowed to punt.
func Parse(command string, params map[string]string) (Action, error) {
	switch command {
	case "open_app":
		app := params["app_name"]
		if app == "" {
			return nil, fmt.Errorf("open_app: missing app_name")
		}
		return OpenApp{App: app}, nil

	case "close_app":
		app := params["app_name"]
		if app == "" {
			return nil, fmt.Errorf("close_app: missing app_name")
		}
		return CloseApp{App: app}, nil

	case "search_web":
		q := params["query"]
		if q == "" {
			return nil, fmt.Errorf("search_web: missing query")
		}
		return SearchWeb{Query: q}, nil

	case "search_youtube", "search_video":
		q := params["query"]
		if q == "" {
			return nil, fmt.Errorf("search_video: missing query")
		}
		return SearchVideo{Query: q}, nil

	case "play_video":
		id := params["video_identifier"]
		if id == "" {
			return nil, fmt.Errorf("play_video: missing video_identifier")
		}
		return PlayVideo{Identifier: id}, nil

	case "pause_video":
		return PauseVideo{}, nil
	case "resume_video":
		return ResumeVideo{}, nil
	case "next_video":
		return NextVideo{}, nil
	case "previous_video":
		return PreviousVideo{}, nil
	case "close_tab":
		return CloseTab{}, nil
	case "close_browser":
		return CloseBrowser{}, nil

	case "send_email":
		to := params["recipient"]
		if to == "" {
			return nil, fmt.Errorf("send_email: missing recipient")
		}
		return SendEmail{
			Recipient: to,
			Subject:   params["subject"],
			Body:      params["body"],
		}, nil

	case "unsupported":
		reason := params["reason"]
		if reason == "" {
			reason = "I'm not sure how to help with that."
		}
		return Unsupported{Reason: reason}, nil

	default:
		return Unsupported{Reason: fmt.Sprintf("I don't know how to %q.", command)}, nil
	}
}

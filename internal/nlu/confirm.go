package nlu

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// Decision is the outcome of the confirmation oracle.
type Decision int

const (
	Deny Decision = iota
	Confirm
	Cancel
)

func (d Decision) String() string {
	switch d {
	case Confirm:
		return "confirm"
	case Cancel:
		return "cancel"
	default:
		return "deny"
	}
}

// Confirmed reads a free-form reply to a yes/no question. Any ambiguity or
// oracle failure resolves to Deny; the safe answer to "should I send this"
// is always no.
func (c *Client) Confirmed(ctx context.Context, response, question string) Decision {
	if strings.TrimSpace(response) == "" {
		return Deny
	}

	prompt := fmt.Sprintf(
		"User was asked: %q\nUser replied: %q\n"+
			"Analyze the user's intent. Respond with exactly one word:\n"+
			"- 'confirm' if they agree/accept/yes\n"+
			"- 'deny' if they disagree/decline/no\n"+
			"- 'cancel' if they want to cancel/stop\n"+
			"If unclear, default to 'deny'.",
		question, response,
	)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	if err != nil {
		log.Error("Confirmation oracle failed", "err", err)
		return Deny
	}
	if len(resp.Choices) == 0 {
		return Deny
	}

	switch strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content)) {
	case "confirm":
		return Confirm
	case "cancel":
		return Cancel
	case "deny":
		return Deny
	default:
		log.Warn("Unexpected confirmation verdict", "raw", resp.Choices[0].Message.Content)
		return Deny
	}
}

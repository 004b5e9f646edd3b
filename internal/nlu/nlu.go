package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// Result is the structured intent the oracle produces for one utterance.
type Result struct {
	Command    string            `json:"command"`
	Parameters map[string]string `json:"parameters"`
}

const systemPrompt = `
You are ARIA-NLU — the intent classifier for a desktop voice assistant.
Your ONLY job is to convert the user’s utterance into a minimal structured JSON.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Do NOT add explanations.
4. Output ONLY JSON. No markdown.
5. All parameter values MUST be strings.

OUTPUT FORMAT:
{
  "command": "<string>",
  "parameters": { "<key>": "<string value>", ... }
}

COMMANDS (canonical, snake_case):
- "open_app"        parameters: {"app_name": "<name>"}
- "close_app"       parameters: {"app_name": "<name>"}
- "search_web"      parameters: {"query": "<term>"}
- "search_video"    parameters: {"query": "<term>"}
- "play_video"      parameters: {"video_identifier": "<partial title or position>"}
- "pause_video"     parameters: {}
- "resume_video"    parameters: {}
- "next_video"      parameters: {}
- "previous_video"  parameters: {}
- "close_tab"       parameters: {}
- "close_browser"   parameters: {}
- "send_email"      parameters: {"recipient": "<person>", "subject": "<topic>", "body": "<text>"}
- "unsupported"     parameters: {"reason": "<short explanation>"}

RULES:
- Map synonyms onto the canonical command set.
- Never invent missing parameter values; omit the key instead.
- If the request cannot be served by any command, use "unsupported" with a
  short human-readable reason.

Be strict and minimal. Do not generate text other than the JSON.
`

// Client wraps the OpenAI API as the assistant's NLU and confirmation
// oracle.
type Client struct {
	api   openai.Client
	model openai.ChatModel
}

func New(api openai.Client) *Client {
	return &Client{api: api, model: openai.ChatModelGPT5Nano}
}

// Classify converts free-form spoken text into an intent. A nil Result with
// a nil error means the oracle could not interpret the utterance; errors are
// reserved for transport-level failures.
func (c *Client) Classify(ctx context.Context, transcript string) (*Result, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")
	if content == "" {
		return nil, fmt.Errorf("empty message content")
	}

	log.Debug("Classified", "data", content)

	var out Result
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		log.Warn("Unparseable NLU output", "raw", content, "err", err)
		return nil, nil
	}
	if out.Command == "" {
		return nil, nil
	}
	if out.Parameters == nil {
		out.Parameters = map[string]string{}
	}

	return &out, nil
}

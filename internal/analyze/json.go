package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alnah/go-voicepipe/internal/llm"
)

// strictSuffix is appended for the single reprompt after a malformed reply.
const strictSuffix = "\n\nYour previous reply was not valid JSON. " +
	"Respond with ONLY the JSON object described above, no prose, no code fences."

// taskReply is the JSON shape of a task analysis completion.
type taskReply struct {
	Tasks []taskItem `json:"tasks"`
}

type taskItem struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	ActionItems []string `json:"action_items"`
	Confidence  string   `json:"confidence"`
}

// noteReply is the JSON shape of a note analysis completion.
type noteReply struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	KeyInsights []string `json:"key_insights"`
	Confidence  string   `json:"confidence"`
}

// titleReply is the JSON shape of a title-only completion.
type titleReply struct {
	Title      string `json:"title"`
	Confidence string `json:"confidence"`
}

// completeJSON runs one completion and returns the extracted JSON object.
// A malformed reply earns exactly one reprompt with a stricter
// instruction; a second malformed reply is ErrMalformedReply.
func completeJSON(ctx context.Context, client llm.Client, prompt string) (string, error) {
	reply, err := client.Complete(ctx, llm.Request{User: prompt})
	if err != nil {
		return "", err
	}
	if extracted, ok := extractJSON(reply); ok {
		return extracted, nil
	}

	reply, err = client.Complete(ctx, llm.Request{User: prompt + strictSuffix})
	if err != nil {
		return "", err
	}
	if extracted, ok := extractJSON(reply); ok {
		return extracted, nil
	}
	return "", fmt.Errorf("%w: %.80q", ErrMalformedReply, reply)
}

// extractJSON pulls the first JSON object out of a model reply, tolerating
// code fences and surrounding prose.
func extractJSON(reply string) (string, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := reply[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

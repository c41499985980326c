package analyze

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/llm"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/parse"
)

// Compile-time interface compliance check.
var _ Analyzer = (*TaskAnalyzer)(nil)

// TaskAnalyzer turns a task transcript into one or more actionable
// records. The model strips filler, titles each task in verb-object form,
// and splits transcripts carrying several distinct requests.
type TaskAnalyzer struct {
	client  llm.Client
	prompts PromptSource
	log     zerolog.Logger
}

// NewTaskAnalyzer creates a TaskAnalyzer.
func NewTaskAnalyzer(client llm.Client, prompts PromptSource) *TaskAnalyzer {
	return &TaskAnalyzer{
		client:  client,
		prompts: prompts,
		log:     logging.WithComponent("analyze"),
	}
}

// Analyze runs the task analysis completion. Model failures degrade to
// the deterministic fallback record; only context cancellation and prompt
// configuration problems surface as errors.
func (a *TaskAnalyzer) Analyze(ctx context.Context, p parse.Parsed) ([]Record, error) {
	prompt, err := a.prompts.RenderPrompt(config.PromptTaskAnalysis, map[string]string{
		"body": p.Body,
	})
	if err != nil {
		return nil, err
	}

	raw, err := completeJSON(ctx, a.client, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn().Err(err).
			Str(logging.FieldEvent, "analyze.task.fallback").
			Msg("task analysis degraded to deterministic fallback")
		return []Record{fallbackRecord(p)}, nil
	}

	var reply taskReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || len(reply.Tasks) == 0 {
		a.log.Warn().
			Str(logging.FieldEvent, "analyze.task.fallback").
			Msg("task reply unusable, using deterministic fallback")
		return []Record{fallbackRecord(p)}, nil
	}

	records := make([]Record, 0, len(reply.Tasks))
	for _, item := range reply.Tasks {
		rec := Record{
			Category:    parse.CategoryTask,
			Title:       clampTitle(item.Title),
			Body:        item.Content,
			ActionItems: item.ActionItems,
			Confidence:  ParseConfidence(item.Confidence),
			ProjectHint: p.ProjectHint,
		}
		if rec.Title == "" {
			rec.Title = fallbackTitle(p.Body)
			rec.Confidence = ConfidenceLow
		}
		if rec.Body == "" {
			rec.Body = p.Body
		}
		if rec.Confidence == ConfidenceLow {
			rec.ManualReview = true
		}
		records = append(records, rec)
	}

	a.log.Debug().
		Str(logging.FieldEvent, "analyze.task.done").
		Int("tasks", len(records)).
		Msg("task analysis complete")
	return records, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/exoplanet-explorer/backend/shared/id"
)

// ErrMalformedResponse means the model's reply did not carry exactly the
// fenced block the relay asked for.
var ErrMalformedResponse = errors.New("malformed relay response")

const relayPrompt = `Based on the following final recommendation for an exoplanet-detection ML project:

%s

Write a complete, self-contained execution brief for the engineering team that will build it: the goal, the data to use, the model approach, the MVP scope, and the validation plan. Return the brief inside a single markdown code fence and nothing else.`

// ExtractFencedBlock pulls the content of the first markdown code fence out
// of text, dropping any language tag on the opening fence.
func ExtractFencedBlock(text string) (string, error) {
	parts := strings.Split(text, "```")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: expected a fenced block, got %d fence markers", ErrMalformedResponse, len(parts)-1)
	}
	block := parts[1]
	// The language tag, if any, occupies the rest of the opening fence line.
	if idx := strings.Index(block, "\n"); idx >= 0 && !strings.ContainsAny(block[:idx], " \t") {
		block = block[idx+1:]
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", fmt.Errorf("%w: empty fenced block", ErrMalformedResponse)
	}
	return block, nil
}

// ExecutionBrief is the relay's hand-off artifact for the winning idea.
type ExecutionBrief struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
}

// Relay turns the meta-verdict's recommendation into an execution brief. The
// pair is drawn at random per attempt, like generation, since the brief needs
// no cross-cycle comparability.
type Relay struct {
	tree    *SearchTree
	gw      Completer
	retries int
}

func NewRelay(tree *SearchTree, gw Completer, retries int) *Relay {
	if retries < 0 {
		retries = DefaultRetries
	}
	return &Relay{tree: tree, gw: gw, retries: retries}
}

// Brief produces the execution brief from a meta-verdict. A reply without a
// usable fenced block counts as a failed attempt and is retried on a fresh
// pair.
func (r *Relay) Brief(ctx context.Context, meta *MetaVerdict) (*ExecutionBrief, error) {
	prompt := fmt.Sprintf(relayPrompt, meta.Text)

	var lastErr error
	for try := 0; try <= r.retries; try++ {
		provider, model := r.tree.pickPair()
		text, err := r.gw.Complete(ctx, provider, model, "", prompt)
		if err == nil {
			var block string
			block, err = ExtractFencedBlock(text)
			if err == nil {
				slog.InfoContext(ctx, "execution brief ready", "provider", provider, "model", model)
				return &ExecutionBrief{ID: id.NewBrief(), Provider: provider, Model: model, Text: block}, nil
			}
		}
		lastErr = err
		slog.WarnContext(ctx, "relay attempt failed",
			"provider", provider, "model", model, "try", try, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("relay after %d attempts: %w", r.retries+1, lastErr)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/exoplanet-explorer/backend/shared/llm"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

// ErrUnsupportedProvider carries the literal marker the original gateway
// returned for provider names outside the catalog.
var ErrUnsupportedProvider = errors.New("unsupported service")

// GatewayError wraps any failure of an upstream chat-completion call:
// transport, auth, or an empty/malformed response body.
type GatewayError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Completer is the single contract between the pipeline stages and the
// chat-completion backends. Tests substitute a scripted implementation.
type Completer interface {
	Complete(ctx context.Context, provider, model, systemPrompt, humanPrompt string) (string, error)
}

// Gateway dispatches (provider, model, system, human) tuples to the
// provider's OpenAI-compatible endpoint, one attempt per call. Retry policy
// belongs to the callers, who decide whether to re-pick the provider/model.
type Gateway struct {
	registry    *Registry
	callTimeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	// newClient is swapped in tests to avoid real network clients.
	newClient func(baseURL, apiKey, provider string) *llm.Client
}

func NewGateway(registry *Registry, rng *rand.Rand, callTimeout time.Duration) *Gateway {
	if callTimeout <= 0 {
		callTimeout = 90 * time.Second
	}
	return &Gateway{
		registry:    registry,
		callTimeout: callTimeout,
		rng:         rng,
		newClient: func(baseURL, apiKey, provider string) *llm.Client {
			return llm.NewClient(baseURL, apiKey, llm.WithProvider(provider))
		},
	}
}

// escapeTemplateBraces rewrites literal {error} markers so they survive any
// downstream prompt templating without a missing-key substitution failure.
// Applied here, not by callers, so no prompt path can forget it.
func escapeTemplateBraces(s string) string {
	return strings.ReplaceAll(s, "{error}", "{{error}}")
}

// Complete performs a single chat-completion attempt with a per-call
// timeout. Failures come back as *GatewayError; an unknown provider comes
// back as ErrUnsupportedProvider.
func (g *Gateway) Complete(ctx context.Context, provider, model, systemPrompt, humanPrompt string) (string, error) {
	p, err := g.registry.Provider(provider)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	g.mu.Lock()
	_, credential, err := g.registry.SelectCredential(g.rng, provider)
	g.mu.Unlock()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	ctx, span := otel.Tracer("agents").Start(ctx, "gateway.complete",
		trace.WithAttributes(
			otel.LLMProvider(provider),
			otel.LLMModel(model),
		))
	defer span.End()

	client := g.newClient(p.BaseURL, credential, provider)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: escapeTemplateBraces(systemPrompt)},
			{Role: openai.ChatMessageRoleUser, Content: escapeTemplateBraces(humanPrompt)},
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", &GatewayError{Provider: provider, Model: model, Err: err}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &GatewayError{Provider: provider, Model: model, Err: errors.New("empty response")}
	}

	content := resp.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.response.content_length", len(content)))
	slog.InfoContext(ctx, "gateway response", "provider", provider, "model", model, "content_length", len(content))

	return content, nil
}

// LegacyString renders a result the way the original pipeline serialized it
// into transcripts: the text on success, an [ERROR]:-prefixed line on
// failure. Only artifact writers use this form; control flow stays on the
// typed error.
func LegacyString(text string, err error) string {
	if err != nil {
		return "[ERROR]: " + err.Error()
	}
	return text
}

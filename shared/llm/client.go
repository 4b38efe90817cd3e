// Package llm provides a shared OpenAI-compatible chat client factory.
//
// Every upstream provider this project talks to (Groq, SambaNova, Cerebras,
// Google AI Studio) exposes an OpenAI-compatible chat completions endpoint,
// so a single client shape covers all of them; only the base URL and the
// credential differ per call.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.GetTracerProvider().Tracer("shared/llm")

// Config holds the configuration for the LLM client.
type Config struct {
	BaseURL    string
	APIKey     string
	Provider   string
	HTTPClient *http.Client
	Transport  http.RoundTripper
	Timeout    time.Duration
}

// Option configures a Config.
type Option func(*Config)

// WithProvider tags the client with the upstream provider name for tracing.
func WithProvider(name string) Option {
	return func(c *Config) {
		c.Provider = name
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithTransport sets a custom HTTP transport (e.g., for OTEL tracing).
// This is ignored if WithHTTPClient is also used.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

// WithTimeout sets the HTTP client timeout.
// This is ignored if WithHTTPClient is also used.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// Client wraps the OpenAI client with configuration metadata.
type Client struct {
	*openai.Client
	BaseURL  string
	Provider string
}

// NewClient creates an OpenAI-compatible client for the given endpoint and
// credential. BaseURL should be the full API base URL (e.g.,
// "https://api.groq.com/openai/v1").
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	cfg := &Config{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		Timeout: 90 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	openaiCfg.BaseURL = cfg.BaseURL

	if cfg.HTTPClient != nil {
		openaiCfg.HTTPClient = cfg.HTTPClient
	} else {
		transport := cfg.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		openaiCfg.HTTPClient = &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		}
	}

	return &Client{
		Client:   openai.NewClientWithConfig(openaiCfg),
		BaseURL:  cfg.BaseURL,
		Provider: cfg.Provider,
	}
}

// CreateChatCompletion wraps the OpenAI client's CreateChatCompletion with an OTel span.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.chat", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", c.Provider),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.request.messages", len(req.Messages)),
	)
	if req.Temperature > 0 {
		span.SetAttributes(attribute.Float64("llm.request.temperature", float64(req.Temperature)))
	}

	resp, err := c.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(
		attribute.Int("llm.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.output_tokens", resp.Usage.CompletionTokens),
		attribute.Int("llm.usage.total_tokens", resp.Usage.TotalTokens),
	)
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		span.SetAttributes(
			attribute.String("llm.response.finish_reason", string(choice.FinishReason)),
			attribute.Int("llm.response.content_length", len(choice.Message.Content)),
		)
	} else {
		span.SetAttributes(attribute.Int("llm.response.choices", 0))
	}

	return resp, nil
}

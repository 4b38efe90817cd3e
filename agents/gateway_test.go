package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChatServer serves an OpenAI-style chat completion endpoint and records
// the requests it saw.
func newChatServer(t *testing.T, content string, status int) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var seen []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		seen = append(seen, body)

		if status != http.StatusOK {
			http.Error(w, `{"error": {"message": "upstream failure"}}`, status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func gatewayForServer(t *testing.T, url string) *Gateway {
	t.Helper()
	reg, err := NewRegistry(&Provider{
		Name:        "groq",
		BaseURL:     url,
		Models:      []string{"model-a"},
		Credentials: []string{"key-1"},
	})
	require.NoError(t, err)
	return NewGateway(reg, rand.New(rand.NewSource(1)), 5*time.Second)
}

func TestGatewayComplete(t *testing.T) {
	srv, seen := newChatServer(t, "a fresh idea", http.StatusOK)
	gw := gatewayForServer(t, srv.URL)

	out, err := gw.Complete(context.Background(), "groq", "model-a", "be concise", "give me an idea")
	require.NoError(t, err)
	assert.Equal(t, "a fresh idea", out)

	require.Len(t, *seen, 1)
	msgs := (*seen)[0]["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestGatewayUnsupportedProvider(t *testing.T) {
	srv, _ := newChatServer(t, "unused", http.StatusOK)
	gw := gatewayForServer(t, srv.URL)

	_, err := gw.Complete(context.Background(), "openrouter", "m", "", "hi")
	require.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Contains(t, err.Error(), "unsupported service")
}

func TestGatewayEscapesErrorBraces(t *testing.T) {
	srv, seen := newChatServer(t, "ok", http.StatusOK)
	gw := gatewayForServer(t, srv.URL)

	_, err := gw.Complete(context.Background(), "groq", "model-a",
		"report {error} verbatim", "what does {error} mean?")
	require.NoError(t, err)

	msgs := (*seen)[0]["messages"].([]any)
	assert.Equal(t, "report {{error}} verbatim", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "what does {{error}} mean?", msgs[1].(map[string]any)["content"])
}

func TestGatewayUpstreamFailure(t *testing.T) {
	srv, _ := newChatServer(t, "", http.StatusInternalServerError)
	gw := gatewayForServer(t, srv.URL)

	_, err := gw.Complete(context.Background(), "groq", "model-a", "", "hi")
	require.Error(t, err)

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "groq", gerr.Provider)
	assert.Equal(t, "model-a", gerr.Model)
}

func TestGatewayEmptyResponse(t *testing.T) {
	srv, _ := newChatServer(t, "   ", http.StatusOK)
	gw := gatewayForServer(t, srv.URL)

	_, err := gw.Complete(context.Background(), "groq", "model-a", "", "hi")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Error(), "empty response")
}

func TestLegacyString(t *testing.T) {
	assert.Equal(t, "text", LegacyString("text", nil))
	assert.Equal(t, "[ERROR]: boom", LegacyString("ignored", errors.New("boom")))
}

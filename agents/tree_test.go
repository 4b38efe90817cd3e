package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCall struct {
	Provider string
	Model    string
	System   string
	Human    string
}

// mockGateway scripts completions for pipeline tests. The respond function
// receives the 1-based call number.
type mockGateway struct {
	mu      sync.Mutex
	calls   []mockCall
	respond func(n int, c mockCall) (string, error)
}

func (m *mockGateway) Complete(ctx context.Context, provider, model, systemPrompt, humanPrompt string) (string, error) {
	m.mu.Lock()
	c := mockCall{Provider: provider, Model: model, System: systemPrompt, Human: humanPrompt}
	m.calls = append(m.calls, c)
	n := len(m.calls)
	m.mu.Unlock()

	if m.respond != nil {
		return m.respond(n, c)
	}
	return fmt.Sprintf("response %d", n), nil
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockGateway) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func testPrompts() *Prompts {
	return &Prompts{
		System:        "system prompt",
		Human:         "base human prompt",
		JudgeTemplate: "judge {X} ideas:\n{ideas_to_evaluate}",
	}
}

func newTestTree(t *testing.T, gw Completer, seed int64, cfg TreeConfig) *SearchTree {
	t.Helper()
	reg := testRegistry(t)
	prompts := testPrompts()
	variants := NewVariantCache(gw, "groq", "model-a", prompts.Human).WithCount(2)
	tree, err := NewSearchTree(reg, gw, prompts, variants, rand.New(rand.NewSource(seed)), cfg)
	require.NoError(t, err)
	tree.retryWait = 0
	return tree
}

func TestTreeCallCount(t *testing.T) {
	gw := &mockGateway{}
	tree := newTestTree(t, gw, 42, TreeConfig{Branches: 3, Refinements: 2, Parallel: 1})

	// Prime the paraphrase cache so only tree calls are counted below.
	_, err := tree.variants.Variants(context.Background())
	require.NoError(t, err)
	gw.reset()

	branches, err := tree.Run(context.Background())
	require.NoError(t, err)

	// X branches, each one generation plus Y refinements.
	assert.Equal(t, 3*(2+1), gw.callCount())
	require.Len(t, branches, 3)
	for i, b := range branches {
		assert.Equal(t, i, b.Index)
		assert.False(t, b.Failed)
		assert.Len(t, b.Ideas, 3)
		require.NotNil(t, b.Final())
		assert.Equal(t, b.Ideas[2].Text, b.Final().Text)
	}
}

func TestTreeMinimalShape(t *testing.T) {
	gw := &mockGateway{}
	tree := newTestTree(t, gw, 1, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})
	_, err := tree.variants.Variants(context.Background())
	require.NoError(t, err)
	gw.reset()

	branches, err := tree.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, gw.callCount())
	require.Len(t, branches, 1)
	assert.Len(t, branches[0].Ideas, 1)
}

func TestTreeValidation(t *testing.T) {
	gw := &mockGateway{}
	reg := testRegistry(t)
	prompts := testPrompts()
	variants := NewVariantCache(gw, "groq", "model-a", prompts.Human)
	rng := rand.New(rand.NewSource(1))

	_, err := NewSearchTree(reg, gw, prompts, variants, rng, TreeConfig{Branches: 0})
	assert.ErrorContains(t, err, "branches must be >= 1")

	_, err = NewSearchTree(reg, gw, prompts, variants, rng, TreeConfig{Branches: 1, Refinements: -1})
	assert.ErrorContains(t, err, "refinements must be >= 0")
}

func TestTreeFailedBranchRecorded(t *testing.T) {
	gw := &mockGateway{}
	// Sequential, no retries: call 1 = branch 0 generation, call 2 =
	// branch 1 generation.
	gw.respond = func(n int, c mockCall) (string, error) {
		if n == 2 {
			return "", fmt.Errorf("provider melted")
		}
		return fmt.Sprintf("idea %d", n), nil
	}
	tree := newTestTree(t, gw, 5, TreeConfig{Branches: 2, Refinements: 0, Parallel: 1, Retries: 0})

	tree.variants.mu.Lock()
	tree.variants.variants = []string{"pinned variant"}
	tree.variants.mu.Unlock()

	branches, err := tree.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, branches, 2)

	assert.False(t, branches[0].Failed)
	assert.True(t, branches[1].Failed)
	assert.ErrorContains(t, branches[1].Err, "provider melted")
	assert.Nil(t, branches[1].Final())

	// The judge prompt only ever sees the survivor.
	block, count := FormatIdeas(branches)
	assert.Equal(t, 1, count)
	assert.Contains(t, block, "--- IDEA 1 ---")
	assert.NotContains(t, block, "--- IDEA 2 ---")
}

func TestTreeRetriesTransientFailures(t *testing.T) {
	gw := &mockGateway{}
	fails := 0
	gw.respond = func(n int, c mockCall) (string, error) {
		if fails < 2 {
			fails++
			return "", fmt.Errorf("transient")
		}
		return "finally", nil
	}
	tree := newTestTree(t, gw, 9, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1, Retries: 2})

	tree.variants.mu.Lock()
	tree.variants.variants = []string{"pinned variant"}
	tree.variants.mu.Unlock()

	branches, err := tree.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, branches[0].Failed)
	assert.Equal(t, "finally", branches[0].Final().Text)
	assert.Equal(t, 3, gw.callCount())
}

func TestTreeAllBranchesFailed(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		if strings.Contains(c.Human, "Redact the following prompt") {
			return "paraphrase", nil
		}
		return "", fmt.Errorf("down")
	}
	tree := newTestTree(t, gw, 2, TreeConfig{Branches: 2, Refinements: 1, Parallel: 1, Retries: 0})

	branches, err := tree.Run(context.Background())
	require.ErrorIs(t, err, ErrAllBranchesFailed)
	require.Len(t, branches, 2)
	for _, b := range branches {
		assert.True(t, b.Failed)
	}
}

func TestTreeDeterministicWithSeed(t *testing.T) {
	run := func() []mockCall {
		gw := &mockGateway{}
		gw.respond = func(n int, c mockCall) (string, error) {
			return fmt.Sprintf("%s/%s says %d", c.Provider, c.Model, n), nil
		}
		tree := newTestTree(t, gw, 1234, TreeConfig{Branches: 3, Refinements: 1, Parallel: 1})
		_, err := tree.Run(context.Background())
		require.NoError(t, err)
		return gw.calls
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestTreeParallelOrderingIsByIndex(t *testing.T) {
	gw := &mockGateway{}
	tree := newTestTree(t, gw, 77, TreeConfig{Branches: 6, Refinements: 0, Parallel: 3})

	tree.variants.mu.Lock()
	tree.variants.variants = []string{"pinned variant"}
	tree.variants.mu.Unlock()

	branches, err := tree.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, branches, 6)
	for i, b := range branches {
		assert.Equal(t, i, b.Index)
	}
}

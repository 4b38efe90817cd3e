package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func survivingBranches(texts ...string) []*Branch {
	branches := make([]*Branch, len(texts))
	for i, text := range texts {
		branches[i] = &Branch{
			Index: i,
			ID:    fmt.Sprintf("br_%d", i),
			Ideas: []Idea{{ID: fmt.Sprintf("idea_%d", i), Text: text}},
		}
	}
	return branches
}

func TestFormatIdeasRoundTrip(t *testing.T) {
	branches := survivingBranches("first idea", "second idea", "third idea")
	block, count := FormatIdeas(branches)

	assert.Equal(t, 3, count)
	assert.Equal(t, 3, strings.Count(block, "--- IDEA"))
	for i, text := range []string{"first idea", "second idea", "third idea"} {
		header := fmt.Sprintf("--- IDEA %d ---", i+1)
		assert.Contains(t, block, header+"\n"+text)
	}
}

func TestFormatIdeasRenumbersAroundFailures(t *testing.T) {
	branches := survivingBranches("kept a", "dropped", "kept b")
	branches[1].Failed = true

	block, count := FormatIdeas(branches)
	assert.Equal(t, 2, count)
	assert.Contains(t, block, "--- IDEA 1 ---\nkept a")
	assert.Contains(t, block, "--- IDEA 2 ---\nkept b")
	assert.NotContains(t, block, "dropped")
	assert.NotContains(t, block, "--- IDEA 3 ---")
}

func TestJudgeEvaluate(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		return "the winner is idea 2", nil
	}
	judge := NewJudge(gw, testPrompts(), "", "", 0)

	verdict, err := judge.Evaluate(context.Background(), survivingBranches("a", "b"), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, verdict.Cycle)
	assert.Equal(t, "the winner is idea 2", verdict.Text)

	require.Len(t, gw.calls, 1)
	call := gw.calls[0]
	assert.Equal(t, DefaultJudgeProvider, call.Provider)
	assert.Equal(t, DefaultJudgeModel, call.Model)
	assert.Equal(t, "system prompt", call.System)
	assert.Contains(t, call.Human, "judge 2 ideas:")
	assert.Contains(t, call.Human, "--- IDEA 1 ---\na")
	assert.Contains(t, call.Human, "--- IDEA 2 ---\nb")
}

func TestJudgeNoSurvivors(t *testing.T) {
	gw := &mockGateway{}
	judge := NewJudge(gw, testPrompts(), "", "", 0)

	branches := survivingBranches("x")
	branches[0].Failed = true
	_, err := judge.Evaluate(context.Background(), branches, 1)
	assert.ErrorIs(t, err, ErrAllBranchesFailed)
	assert.Zero(t, gw.callCount())
}

func TestJudgeRetriesOnFixedPair(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		if n == 1 {
			return "", fmt.Errorf("overloaded")
		}
		return "verdict", nil
	}
	judge := NewJudge(gw, testPrompts(), "googleaistudio", "gemini-2.5-pro", 1)

	verdict, err := judge.Evaluate(context.Background(), survivingBranches("a"), 1)
	require.NoError(t, err)
	assert.Equal(t, "verdict", verdict.Text)

	require.Len(t, gw.calls, 2)
	for _, c := range gw.calls {
		assert.Equal(t, "googleaistudio", c.Provider)
		assert.Equal(t, "gemini-2.5-pro", c.Model)
	}
}

func TestMetaJudgeValidation(t *testing.T) {
	judge := NewJudge(&mockGateway{}, testPrompts(), "", "", 0)
	_, err := NewMetaJudge(nil, judge, 0)
	assert.ErrorContains(t, err, "judgement cycles must be >= 1")
}

func runMetaPipeline(t *testing.T, seed int64, cycles int) (*PipelineResult, *mockGateway) {
	t.Helper()
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		// Deterministic content derived from the call inputs only.
		return fmt.Sprintf("[%s/%s] %d", c.Provider, c.Model, len(c.Human)), nil
	}

	tree := newTestTree(t, gw, seed, TreeConfig{Branches: 2, Refinements: 1, Parallel: 1})
	judge := NewJudge(gw, testPrompts(), "", "", 0)
	meta, err := NewMetaJudge(tree, judge, cycles)
	require.NoError(t, err)

	result, err := meta.Evaluate(context.Background())
	require.NoError(t, err)
	return result, gw
}

func TestMetaJudgeCollectsCycles(t *testing.T) {
	result, gw := runMetaPipeline(t, 42, 3)

	require.Len(t, result.Cycles, 3)
	for i, cycle := range result.Cycles {
		assert.Equal(t, i+1, cycle.Cycle)
		require.NotNil(t, cycle.Verdict)
		assert.Equal(t, i+1, cycle.Verdict.Cycle)
		assert.Len(t, cycle.Branches, 2)
	}
	require.NotNil(t, result.MetaVerdict)

	// The final call is the synthesis over all three verdicts.
	last := gw.calls[len(gw.calls)-1]
	assert.Equal(t, DefaultJudgeProvider, last.Provider)
	assert.Contains(t, last.Human, "--- VERDICT 1 ---")
	assert.Contains(t, last.Human, "--- VERDICT 3 ---")
	assert.Contains(t, last.Human, "1. Find the consensus")
	assert.Contains(t, last.Human, "4. Issue the meta-verdict")
}

func TestMetaJudgeMinimalCallCount(t *testing.T) {
	gw := &mockGateway{}
	tree := newTestTree(t, gw, 7, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})

	// Pin the paraphrase cache so only pipeline calls are counted.
	tree.variants.mu.Lock()
	tree.variants.variants = []string{"pinned variant"}
	tree.variants.mu.Unlock()

	judge := NewJudge(gw, testPrompts(), "", "", 0)
	meta, err := NewMetaJudge(tree, judge, 1)
	require.NoError(t, err)

	result, err := meta.Evaluate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.MetaVerdict)

	// One generation, one judge verdict, one meta synthesis.
	assert.Equal(t, 3, gw.callCount())
}

func TestMetaJudgeDeterministicWithSeed(t *testing.T) {
	first, _ := runMetaPipeline(t, 99, 2)
	second, _ := runMetaPipeline(t, 99, 2)

	assert.Equal(t, first.MetaVerdict.Text, second.MetaVerdict.Text)
	require.Len(t, second.Cycles, len(first.Cycles))
	for i := range first.Cycles {
		assert.Equal(t, first.Cycles[i].Verdict.Text, second.Cycles[i].Verdict.Text)
	}
}

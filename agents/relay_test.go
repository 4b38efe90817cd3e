package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedBlock(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "plain fence",
			in:   "preamble\n```\nbuild the CNN first\n```\ntrailer",
			want: "build the CNN first",
		},
		{
			name: "language tag stripped",
			in:   "```markdown\n# Brief\ndo the thing\n```",
			want: "# Brief\ndo the thing",
		},
		{
			name: "only first block extracted",
			in:   "```\nfirst\n```\nmiddle\n```\nsecond\n```",
			want: "first",
		},
		{
			name:    "no fences",
			in:      "just prose, no code block",
			wantErr: true,
		},
		{
			name:    "unterminated fence",
			in:      "```\ndangling",
			wantErr: true,
		},
		{
			name:    "empty block",
			in:      "```\n\n```",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFencedBlock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelayBrief(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		return "Here you go:\n```\nthe execution brief\n```", nil
	}
	tree := newTestTree(t, gw, 3, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})
	relay := NewRelay(tree, gw, 0)

	brief, err := relay.Brief(context.Background(), &MetaVerdict{ID: "mverd_1", Text: "idea 2 wins"})
	require.NoError(t, err)
	assert.Equal(t, "the execution brief", brief.Text)
	assert.NotEmpty(t, brief.Provider)
	assert.NotEmpty(t, brief.Model)

	require.Len(t, gw.calls, 1)
	assert.Contains(t, gw.calls[0].Human, "idea 2 wins")
}

func TestRelayBriefRetriesMalformed(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		if n == 1 {
			return "no fence here", nil
		}
		return "```\nsecond attempt brief\n```", nil
	}
	tree := newTestTree(t, gw, 3, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})
	relay := NewRelay(tree, gw, 1)

	brief, err := relay.Brief(context.Background(), &MetaVerdict{Text: "winner"})
	require.NoError(t, err)
	assert.Equal(t, "second attempt brief", brief.Text)
	assert.Equal(t, 2, gw.callCount())
}

func TestRelayBriefExhaustsRetries(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		return "still no fence", nil
	}
	tree := newTestTree(t, gw, 3, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})
	relay := NewRelay(tree, gw, 2)

	_, err := relay.Brief(context.Background(), &MetaVerdict{Text: "winner"})
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 3, gw.callCount())
}

func TestRelayBriefGatewayFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.respond = func(n int, c mockCall) (string, error) {
		return "", fmt.Errorf("upstream down")
	}
	tree := newTestTree(t, gw, 3, TreeConfig{Branches: 1, Refinements: 0, Parallel: 1})
	relay := NewRelay(tree, gw, 1)

	_, err := relay.Brief(context.Background(), &MetaVerdict{Text: "winner"})
	assert.ErrorContains(t, err, "upstream down")
	assert.Equal(t, 2, gw.callCount())
}

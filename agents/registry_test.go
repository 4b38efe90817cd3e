package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		&Provider{
			Name:        "groq",
			BaseURL:     "https://api.groq.com/openai/v1",
			Models:      []string{"model-a", "model-b"},
			Credentials: []string{"gk-1", "gk-2", "gk-3"},
		},
		&Provider{
			Name:        "cerebras",
			BaseURL:     "https://api.cerebras.ai/v1",
			Models:      []string{"model-c"},
			Credentials: []string{"ck-1"},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestSelectCredentialUniformCoverage(t *testing.T) {
	reg := testRegistry(t)
	rng := rand.New(rand.NewSource(7))

	counts := map[string]int{}
	const draws = 4000
	for i := 0; i < draws; i++ {
		provider, cred, err := reg.SelectCredential(rng, "")
		require.NoError(t, err)
		counts[provider+"/"+cred]++
	}

	// 4 credentials total, so every pair should be drawn and land near
	// draws/4 each.
	require.Len(t, counts, 4)
	for pair, n := range counts {
		assert.InDelta(t, draws/4, n, float64(draws)*0.05, "pair %s drawn %d times", pair, n)
	}

	// Providers are weighted by credential count: groq holds 3 of 4 keys.
	groq := counts["groq/gk-1"] + counts["groq/gk-2"] + counts["groq/gk-3"]
	assert.InDelta(t, draws*3/4, groq, float64(draws)*0.05)
}

func TestSelectCredentialScopedToProvider(t *testing.T) {
	reg := testRegistry(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		provider, cred, err := reg.SelectCredential(rng, "cerebras")
		require.NoError(t, err)
		assert.Equal(t, "cerebras", provider)
		assert.Equal(t, "ck-1", cred)
	}
}

func TestSelectCredentialErrors(t *testing.T) {
	reg := testRegistry(t)
	rng := rand.New(rand.NewSource(1))

	_, _, err := reg.SelectCredential(rng, "nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	empty, err := NewRegistry(&Provider{
		Name:    "dry",
		BaseURL: "https://example.com/v1",
		Models:  []string{"m"},
	})
	require.NoError(t, err)
	_, _, err = empty.SelectCredential(rng, "dry")
	assert.ErrorIs(t, err, ErrNoCredentials)
	_, _, err = empty.SelectCredential(rng, "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestSingleKeyRegistry(t *testing.T) {
	reg, err := NewRegistry(&Provider{
		Name:        "only",
		BaseURL:     "https://example.com/v1",
		Models:      []string{"m"},
		Credentials: []string{"k"},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		provider, cred, err := reg.SelectCredential(rng, "")
		require.NoError(t, err)
		assert.Equal(t, "only", provider)
		assert.Equal(t, "k", cred)
	}
}

func TestPickModelDistribution(t *testing.T) {
	reg := testRegistry(t)
	rng := rand.New(rand.NewSource(11))

	providers := map[string]int{}
	models := map[string]int{}
	const draws = 3000
	for i := 0; i < draws; i++ {
		p, m := reg.PickModel(rng)
		providers[p]++
		models[p+"/"+m]++
	}

	// Provider draw is uniform regardless of model count.
	assert.InDelta(t, draws/2, providers["groq"], float64(draws)*0.05)
	assert.InDelta(t, draws/2, providers["cerebras"], float64(draws)*0.05)
	// Within groq its two models split evenly.
	assert.InDelta(t, draws/4, models["groq/model-a"], float64(draws)*0.05)
	assert.InDelta(t, draws/4, models["groq/model-b"], float64(draws)*0.05)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  groq:
    base_url: https://api.groq.com/openai/v1
    env_key: TEST_GROQ_KEYS
    models: [model-a]
    keys: [file-key]
`), 0o644))
	t.Setenv("TEST_GROQ_KEYS", "env-key-1, env-key-2")

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	p, err := reg.Provider("groq")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-key", "env-key-1", "env-key-2"}, p.Credentials)
	assert.Equal(t, []string{"groq"}, reg.Names())
}

func TestLoadRegistryRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  broken:
    base_url: https://example.com/v1
`), 0o644))

	_, err := LoadRegistry(path)
	assert.ErrorContains(t, err, "no models configured")
}

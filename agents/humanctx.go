package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
	_ "time/tzdata"
)

// DefaultVariantCount is how many paraphrases of the base human prompt are
// kept for branch generation to sample from.
const DefaultVariantCount = 5

const variantTimezone = "America/Bogota"

// Clock supplies the wall-clock time stamped into each paraphrase; injected
// so tests can pin it.
type Clock func() time.Time

// VariantCache produces and memoizes the human-context paraphrases. It is an
// explicit object handed to the search tree, with explicit invalidation,
// rather than first-call-wins package state.
type VariantCache struct {
	gw       Completer
	provider string
	model    string
	base     string
	count    int
	clock    Clock

	mu       sync.Mutex
	variants []string
}

func NewVariantCache(gw Completer, provider, model, basePrompt string) *VariantCache {
	return &VariantCache{
		gw:       gw,
		provider: provider,
		model:    model,
		base:     basePrompt,
		count:    DefaultVariantCount,
		clock:    time.Now,
	}
}

// WithClock pins the clock; returns the cache for chaining in tests.
func (c *VariantCache) WithClock(clock Clock) *VariantCache {
	c.clock = clock
	return c
}

// WithCount overrides the number of paraphrases generated.
func (c *VariantCache) WithCount(n int) *VariantCache {
	if n > 0 {
		c.count = n
	}
	return c
}

func (c *VariantCache) now() string {
	loc, err := time.LoadLocation(variantTimezone)
	if err != nil {
		slog.Warn("timezone unavailable, using UTC", "timezone", variantTimezone, "error", err)
		loc = time.UTC
	}
	return c.clock().In(loc).Format("2006-01-02 15:04:05 MST-0700")
}

// Variants returns the paraphrase set, generating it on first use. Each
// paraphrase restates the base intent prompt and carries the current local
// time so the model knows the hard two-day budget.
func (c *VariantCache) Variants(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.variants) > 0 {
		return c.variants, nil
	}

	prompt := fmt.Sprintf(
		`Redact the following prompt with your own words: %q First, keep in mind that the current time is %s, so we just have that quantity of time to create, train and test the ML model`,
		c.base, c.now(),
	)

	variants := make([]string, 0, c.count)
	for i := 0; i < c.count; i++ {
		v, err := c.gw.Complete(ctx, c.provider, c.model, "", prompt)
		if err != nil {
			return nil, fmt.Errorf("generate human variant %d: %w", i+1, err)
		}
		variants = append(variants, v)
	}

	c.variants = variants
	return c.variants, nil
}

// Pick returns one cached paraphrase uniformly at random. Variants must have
// been generated first.
func (c *VariantCache) Pick(rng *rand.Rand) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.variants) == 0 {
		return c.base
	}
	return c.variants[rng.Intn(len(c.variants))]
}

// Invalidate drops the cached paraphrases so the next Variants call
// regenerates them with a fresh timestamp.
func (c *VariantCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants = nil
}

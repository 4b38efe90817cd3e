package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/exoplanet-explorer/backend/shared/backoff"
	"github.com/exoplanet-explorer/backend/shared/id"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

// TreeConfig sizes one pipeline run: Branches independent idea lines, each
// refined Refinements times, at most Parallel branches in flight. A Parallel
// of 1 reproduces strictly sequential execution.
type TreeConfig struct {
	Branches    int
	Refinements int
	Parallel    int
	Retries     int
}

const (
	DefaultParallel = 2
	DefaultRetries  = 2

	// retryDelay separates consecutive attempts on the same branch step.
	retryDelay = 2 * time.Second
)

var ErrAllBranchesFailed = errors.New("all branches failed")

func (c *TreeConfig) validate() error {
	if c.Branches < 1 {
		return fmt.Errorf("branches must be >= 1, got %d", c.Branches)
	}
	if c.Refinements < 0 {
		return fmt.Errorf("refinements must be >= 0, got %d", c.Refinements)
	}
	if c.Parallel <= 0 {
		c.Parallel = DefaultParallel
	}
	if c.Retries < 0 {
		c.Retries = DefaultRetries
	}
	return nil
}

// Idea is one generation or refinement output, tagged with the pair that
// produced it.
type Idea struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
}

// Branch is one idea line through the tree. Ideas[0] is the initial
// generation; each later entry is a refinement of the previous one. Failed
// branches keep whatever partial history they accumulated plus the error.
type Branch struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Ideas  []Idea `json:"ideas"`
	Failed bool   `json:"failed"`
	Err    error  `json:"-"`
}

// Final returns the last idea of a surviving branch, the one handed to the
// judge.
func (b *Branch) Final() *Idea {
	if b.Failed || len(b.Ideas) == 0 {
		return nil
	}
	return &b.Ideas[len(b.Ideas)-1]
}

// SearchTree generates Branches candidate ideas concurrently and refines each
// one Refinements times. Every generation and refinement draws a fresh random
// (provider, model) pair; a failed attempt retries with a re-picked pair so a
// flaky provider does not doom the branch.
type SearchTree struct {
	registry *Registry
	gw       Completer
	prompts  *Prompts
	variants *VariantCache
	cfg      TreeConfig

	// retryWait spaces attempts within one branch step; tests zero it.
	retryWait time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSearchTree(registry *Registry, gw Completer, prompts *Prompts, variants *VariantCache, rng *rand.Rand, cfg TreeConfig) (*SearchTree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SearchTree{
		registry:  registry,
		gw:        gw,
		prompts:   prompts,
		variants:  variants,
		cfg:       cfg,
		retryWait: retryDelay,
		rng:       rng,
	}, nil
}

// pickPair draws a (provider, model) pair under the tree's lock; rand.Rand is
// not safe for concurrent use.
func (t *SearchTree) pickPair() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.PickModel(t.rng)
}

func (t *SearchTree) pickVariant() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.variants.Pick(t.rng)
}

// attempt runs one gateway call with up to cfg.Retries additional attempts,
// re-picking the pair before each retry.
func (t *SearchTree) attempt(ctx context.Context, humanPrompt string) (Idea, error) {
	var idea Idea
	strategy := backoff.Fixed(t.cfg.Retries+1, t.retryWait)

	err := backoff.RetryWithCallback(ctx, strategy, func(ctx context.Context, attempt int) error {
		provider, model := t.pickPair()
		text, err := t.gw.Complete(ctx, provider, model, t.prompts.System, humanPrompt)
		if err != nil {
			return err
		}
		idea = Idea{
			ID:       id.NewIdea(),
			Provider: provider,
			Model:    model,
			Text:     text,
		}
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		slog.WarnContext(ctx, "completion attempt failed", "try", attempt, "delay", delay, "error", err)
	})
	if err != nil {
		return Idea{}, err
	}
	return idea, nil
}

func refinementPrompt(current string) string {
	return fmt.Sprintf(`Take the following idea and improve it. Make it more innovative, more specific about the MVP, and with more potential to become a SOTA (State-Of-The-Art) model.
Do not simply restate it; you must add value and evolve the concept.

IDEA TO REFINE:
---
%s
---`, current)
}

func (t *SearchTree) runBranch(ctx context.Context, index int) *Branch {
	ctx, span := otel.Tracer("agents").Start(ctx, "tree.branch",
		trace.WithAttributes(otel.BranchIndex(index)))
	defer span.End()

	branch := &Branch{Index: index, ID: id.NewBranch()}

	seed, err := t.attempt(ctx, t.pickVariant())
	if err != nil {
		span.RecordError(err)
		branch.Failed = true
		branch.Err = fmt.Errorf("branch %d generation: %w", index, err)
		return branch
	}
	branch.Ideas = append(branch.Ideas, seed)

	for j := 1; j <= t.cfg.Refinements; j++ {
		refined, err := t.attempt(ctx, refinementPrompt(branch.Ideas[len(branch.Ideas)-1].Text))
		if err != nil {
			span.RecordError(err)
			branch.Failed = true
			branch.Err = fmt.Errorf("branch %d refinement %d: %w", index, j, err)
			return branch
		}
		branch.Ideas = append(branch.Ideas, refined)
	}

	slog.InfoContext(ctx, "branch complete", "index", index, "ideas", len(branch.Ideas))
	return branch
}

// Run executes the tree and returns all branches ordered by index, failed
// ones included. It errors only when every branch failed.
func (t *SearchTree) Run(ctx context.Context) ([]*Branch, error) {
	if _, err := t.variants.Variants(ctx); err != nil {
		return nil, fmt.Errorf("prepare human variants: %w", err)
	}

	branches := make([]*Branch, t.cfg.Branches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Parallel)
	for i := 0; i < t.cfg.Branches; i++ {
		g.Go(func() error {
			branches[i] = t.runBranch(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	survivors := 0
	for _, b := range branches {
		if !b.Failed {
			survivors++
		}
	}
	if survivors == 0 {
		return branches, fmt.Errorf("%w: %d of %d", ErrAllBranchesFailed, t.cfg.Branches, t.cfg.Branches)
	}

	slog.InfoContext(ctx, "search tree complete",
		"branches", t.cfg.Branches, "survived", survivors, "refinements", t.cfg.Refinements)
	return branches, nil
}

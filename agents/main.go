package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/exoplanet-explorer/backend/shared/config"
	"github.com/exoplanet-explorer/backend/shared/id"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

var (
	flagBranches    int
	flagRefinements int
	flagJudgements  int
	flagParallel    int
	flagRetries     int
	flagSeed        int64
	flagTimeout     time.Duration
	flagPromptsDir  string
	flagProviders   string
	flagOutDir      string
	flagJudgeProv   string
	flagJudgeModel  string
)

func main() {
	root := &cobra.Command{
		Use:   "agents",
		Short: "Idea generation and judging pipeline for the Exoplanet Explorer project",
	}

	ideas := &cobra.Command{
		Use:   "ideas",
		Short: "Generate, refine, judge, and brief candidate project ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdeas(cmd.Context())
		},
	}
	ideas.Flags().IntVarP(&flagBranches, "branches", "x", 3, "number of idea branches to generate")
	ideas.Flags().IntVarP(&flagRefinements, "refinements", "y", 2, "refinement passes per branch")
	ideas.Flags().IntVarP(&flagJudgements, "judgements", "n", 3, "independent judging cycles")
	ideas.Flags().IntVar(&flagParallel, "parallel", DefaultParallel, "max branches in flight (1 = sequential)")
	ideas.Flags().IntVar(&flagRetries, "retries", DefaultRetries, "extra attempts per completion call")
	ideas.Flags().Int64Var(&flagSeed, "seed", 0, "random seed (0 = time-based)")
	ideas.Flags().DurationVar(&flagTimeout, "timeout", 90*time.Second, "per-call completion timeout")
	ideas.Flags().StringVar(&flagPromptsDir, "prompts", "prompts", "directory holding SYSTEM.txt, HUMAN.txt, JUDGE_PROMPT.txt")
	ideas.Flags().StringVar(&flagProviders, "providers", "providers.yaml", "provider registry file")
	ideas.Flags().StringVarP(&flagOutDir, "out", "o", "runs", "directory for run artifacts")
	ideas.Flags().StringVar(&flagJudgeProv, "judge-provider", DefaultJudgeProvider, "provider for judge and meta-judge")
	ideas.Flags().StringVar(&flagJudgeModel, "judge-model", DefaultJudgeModel, "model for judge and meta-judge")
	root.AddCommand(ideas)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func runIdeas(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	tracing, err := otel.Init(otel.Config{
		ServiceName: "exoplanet-agents",
		Environment: config.GetEnv("ENVIRONMENT", "development"),
		Pretty:      config.GetEnvBool("OTEL_PRETTY", false),
	})
	if err != nil {
		slog.Error("opentelemetry init failed", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracing.Shutdown(shutdownCtx)
		}()
	}

	seed := flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	registry, err := LoadRegistry(flagProviders)
	if err != nil {
		return err
	}
	prompts, err := LoadPrompts(flagPromptsDir)
	if err != nil {
		return err
	}

	gw := NewGateway(registry, rng, flagTimeout)
	variants := NewVariantCache(gw, DefaultVariantProvider(registry), DefaultVariantModel(registry), prompts.Human)

	tree, err := NewSearchTree(registry, gw, prompts, variants, rng, TreeConfig{
		Branches:    flagBranches,
		Refinements: flagRefinements,
		Parallel:    flagParallel,
		Retries:     flagRetries,
	})
	if err != nil {
		return err
	}

	judge := NewJudge(gw, prompts, flagJudgeProv, flagJudgeModel, flagRetries)
	meta, err := NewMetaJudge(tree, judge, flagJudgements)
	if err != nil {
		return err
	}
	relay := NewRelay(tree, gw, flagRetries)

	runID := id.NewRun()
	outDir := filepath.Join(flagOutDir, runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create run dir %s: %w", outDir, err)
	}

	slog.InfoContext(ctx, "pipeline started",
		"run_id", runID, "branches", flagBranches, "refinements", flagRefinements,
		"judgements", flagJudgements, "parallel", flagParallel, "seed", seed)

	result, err := meta.Evaluate(ctx)
	writeCycles(ctx, outDir, result)
	if err != nil {
		return err
	}
	if writeErr := os.WriteFile(filepath.Join(outDir, "meta_verdict.txt"), []byte(result.MetaVerdict.Text), 0o644); writeErr != nil {
		slog.ErrorContext(ctx, "write meta verdict failed", "error", writeErr)
	}

	brief, err := relay.Brief(ctx, result.MetaVerdict)
	if err != nil {
		return err
	}
	if writeErr := os.WriteFile(filepath.Join(outDir, "execution_brief.txt"), []byte(brief.Text), 0o644); writeErr != nil {
		slog.ErrorContext(ctx, "write execution brief failed", "error", writeErr)
	}

	slog.InfoContext(ctx, "pipeline complete", "run_id", runID, "out", outDir)
	return nil
}

// writeCycles dumps each cycle's verdict and full branch history, including
// failed branches in their legacy [ERROR]: form, for post-run inspection.
func writeCycles(ctx context.Context, outDir string, result *PipelineResult) {
	for _, cycle := range result.Cycles {
		if cycle.Verdict != nil {
			name := fmt.Sprintf("verdict_%d.txt", cycle.Cycle)
			if err := os.WriteFile(filepath.Join(outDir, name), []byte(cycle.Verdict.Text), 0o644); err != nil {
				slog.ErrorContext(ctx, "write verdict failed", "cycle", cycle.Cycle, "error", err)
			}
		}
		name := fmt.Sprintf("branches_%d.json", cycle.Cycle)
		if err := writeBranches(filepath.Join(outDir, name), cycle.Branches); err != nil {
			slog.ErrorContext(ctx, "write branches failed", "cycle", cycle.Cycle, "error", err)
		}
	}
}

func writeBranches(path string, branches []*Branch) error {
	type ideaDump struct {
		ID       string `json:"id"`
		Provider string `json:"provider"`
		Model    string `json:"model"`
		Text     string `json:"text"`
	}
	type branchDump struct {
		Index  int        `json:"index"`
		ID     string     `json:"id"`
		Failed bool       `json:"failed"`
		Error  string     `json:"error,omitempty"`
		Ideas  []ideaDump `json:"ideas"`
	}

	dump := make([]branchDump, 0, len(branches))
	for _, b := range branches {
		d := branchDump{Index: b.Index, ID: b.ID, Failed: b.Failed}
		if b.Failed {
			d.Error = LegacyString("", b.Err)
		}
		for _, idea := range b.Ideas {
			d.Ideas = append(d.Ideas, ideaDump(idea))
		}
		dump = append(dump, d)
	}

	raw, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// DefaultVariantProvider picks the provider used for paraphrasing the human
// prompt; groq when configured, else the first provider by name.
func DefaultVariantProvider(r *Registry) string {
	if _, err := r.Provider("groq"); err == nil {
		return "groq"
	}
	return r.Names()[0]
}

// DefaultVariantModel is the first model of the variant provider.
func DefaultVariantModel(r *Registry) string {
	p, err := r.Provider(DefaultVariantProvider(r))
	if err != nil {
		return ""
	}
	return p.Models[0]
}

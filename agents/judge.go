package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/exoplanet-explorer/backend/shared/id"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

// Judge defaults. Evaluation always runs on one fixed pair so verdicts are
// comparable across cycles; the random pair draw is for generation only.
const (
	DefaultJudgeProvider = "googleaistudio"
	DefaultJudgeModel    = "gemini-2.5-pro"
)

const ideaBlockHeader = "--- IDEA %d ---"

// Verdict is one judging cycle's ranked evaluation of that cycle's surviving
// ideas.
type Verdict struct {
	ID    string `json:"id"`
	Cycle int    `json:"cycle"`
	Text  string `json:"text"`
}

// Judge evaluates the final ideas of the surviving branches against the
// judge template.
type Judge struct {
	gw       Completer
	prompts  *Prompts
	provider string
	model    string
	retries  int
}

func NewJudge(gw Completer, prompts *Prompts, provider, model string, retries int) *Judge {
	if provider == "" {
		provider = DefaultJudgeProvider
	}
	if model == "" {
		model = DefaultJudgeModel
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	return &Judge{gw: gw, prompts: prompts, provider: provider, model: model, retries: retries}
}

// FormatIdeas renders the surviving branches' final ideas as numbered
// "--- IDEA n ---" blocks. Numbering follows branch index order and counts
// only survivors, so the judge sees a dense 1..K sequence.
func FormatIdeas(branches []*Branch) (string, int) {
	var sb strings.Builder
	n := 0
	for _, b := range branches {
		final := b.Final()
		if final == nil {
			continue
		}
		n++
		if n > 1 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, ideaBlockHeader, n)
		sb.WriteString("\n")
		sb.WriteString(final.Text)
	}
	return sb.String(), n
}

// Evaluate runs one judging pass over the surviving branches. Failed branches
// never reach the judge. Retries stay on the judge's fixed pair.
func (j *Judge) Evaluate(ctx context.Context, branches []*Branch, cycle int) (*Verdict, error) {
	block, count := FormatIdeas(branches)
	if count == 0 {
		return nil, ErrAllBranchesFailed
	}

	ctx, span := otel.Tracer("agents").Start(ctx, "judge.evaluate")
	defer span.End()

	prompt := j.prompts.FormatJudgePrompt(count, block)

	text, err := j.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("judge cycle %d: %w", cycle, err)
	}
	slog.InfoContext(ctx, "judge verdict", "cycle", cycle, "ideas", count)
	return &Verdict{ID: id.NewVerdict(), Cycle: cycle, Text: text}, nil
}

func (j *Judge) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for try := 0; try <= j.retries; try++ {
		text, err := j.gw.Complete(ctx, j.provider, j.model, j.prompts.System, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		slog.WarnContext(ctx, "judge attempt failed",
			"provider", j.provider, "model", j.model, "try", try, "error", err)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", j.retries+1, lastErr)
}

const verdictBlockHeader = "--- VERDICT %d ---"

const metaPromptTemplate = `You are an expert strategist supervising a panel of AI judges.
Your task is to analyze the following %d verdicts issued by different judges over candidate ideas for the NASA Space Apps Challenge.
Each judge analyzed an equivalent set of ideas but may have reached different conclusions.

Your goal is to synthesize these analyses into one final, definitive recommendation. Do not simply pick one verdict; instead:
1. Find the consensus: identify which ideas are consistently praised across multiple verdicts.
2. Evaluate the arguments: determine which judge presents the most solid, logical reasoning aligned with innovation, feasibility, and potential.
3. Resolve contradictions: where judges disagree, analyze their reasoning and decide which is more convincing.
4. Issue the meta-verdict: give a final verdict summarizing the findings and declaring the definitive winning idea, explaining why, based on the synthesis of the analyses.

Here are the verdicts to analyze:
%s`

// MetaVerdict is the meta-judge's synthesis over all judging cycles.
type MetaVerdict struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CycleResult is one complete tree+judge pass.
type CycleResult struct {
	Cycle    int
	Branches []*Branch
	Verdict  *Verdict
}

// PipelineResult is everything one full run produced.
type PipelineResult struct {
	Cycles      []CycleResult
	MetaVerdict *MetaVerdict
}

// MetaJudge runs the full tree+judge cycle N times and synthesizes the N
// verdicts into a final recommendation, on the same fixed pair as the judge.
type MetaJudge struct {
	tree   *SearchTree
	judge  *Judge
	cycles int
}

func NewMetaJudge(tree *SearchTree, judge *Judge, cycles int) (*MetaJudge, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("judgement cycles must be >= 1, got %d", cycles)
	}
	return &MetaJudge{tree: tree, judge: judge, cycles: cycles}, nil
}

func formatVerdicts(verdicts []*Verdict) string {
	var sb strings.Builder
	for i, v := range verdicts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, verdictBlockHeader, i+1)
		sb.WriteString("\n")
		sb.WriteString(v.Text)
	}
	return sb.String()
}

// Evaluate runs the N cycles and the final synthesis. Partial results are
// returned alongside the error so artifacts from completed cycles survive a
// late failure.
func (m *MetaJudge) Evaluate(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{}
	verdicts := make([]*Verdict, 0, m.cycles)

	for cycle := 1; cycle <= m.cycles; cycle++ {
		slog.InfoContext(ctx, "judging cycle started", "cycle", cycle, "of", m.cycles)

		branches, err := m.tree.Run(ctx)
		if err != nil {
			result.Cycles = append(result.Cycles, CycleResult{Cycle: cycle, Branches: branches})
			return result, fmt.Errorf("cycle %d: %w", cycle, err)
		}

		verdict, err := m.judge.Evaluate(ctx, branches, cycle)
		if err != nil {
			result.Cycles = append(result.Cycles, CycleResult{Cycle: cycle, Branches: branches})
			return result, err
		}

		result.Cycles = append(result.Cycles, CycleResult{Cycle: cycle, Branches: branches, Verdict: verdict})
		verdicts = append(verdicts, verdict)
	}

	prompt := fmt.Sprintf(metaPromptTemplate, len(verdicts), formatVerdicts(verdicts))
	text, err := m.judge.complete(ctx, prompt)
	if err != nil {
		return result, fmt.Errorf("meta-judge: %w", err)
	}

	result.MetaVerdict = &MetaVerdict{ID: id.NewMetaVerdict(), Text: text}
	slog.InfoContext(ctx, "meta verdict ready", "cycles", m.cycles)
	return result, nil
}

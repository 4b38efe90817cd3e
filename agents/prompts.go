package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	systemPromptFile  = "SYSTEM.txt"
	humanPromptFile   = "HUMAN.txt"
	judgeTemplateFile = "JUDGE_PROMPT.txt"

	placeholderBranchCount = "{X}"
	placeholderIdeas       = "{ideas_to_evaluate}"
)

// Prompts holds the three external prompt inputs. Their absence is fatal at
// startup; nothing in the pipeline can run without them.
type Prompts struct {
	System        string
	Human         string
	JudgeTemplate string
}

// LoadPrompts reads the prompt files from dir and validates that the judge
// template carries both placeholders it will be formatted with.
func LoadPrompts(dir string) (*Prompts, error) {
	read := func(name string) (string, error) {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	system, err := read(systemPromptFile)
	if err != nil {
		return nil, err
	}
	human, err := read(humanPromptFile)
	if err != nil {
		return nil, err
	}
	judge, err := read(judgeTemplateFile)
	if err != nil {
		return nil, err
	}

	for _, placeholder := range []string{placeholderBranchCount, placeholderIdeas} {
		if !strings.Contains(judge, placeholder) {
			return nil, fmt.Errorf("judge template %s: missing %s placeholder", judgeTemplateFile, placeholder)
		}
	}

	return &Prompts{System: system, Human: human, JudgeTemplate: judge}, nil
}

// FormatJudgePrompt fills the judge template with the branch count and the
// concatenated idea blocks.
func (p *Prompts) FormatJudgePrompt(count int, ideasBlock string) string {
	out := strings.ReplaceAll(p.JudgeTemplate, placeholderBranchCount, fmt.Sprintf("%d", count))
	return strings.ReplaceAll(out, placeholderIdeas, ideasBlock)
}

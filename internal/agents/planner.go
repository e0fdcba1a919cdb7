package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
)

const plannerSystemPrompt = `You are a research planning controller. Output STRICT JSON.
- Break the topic into focused, answerable research questions.
- Order questions logically: background first, then specifics.
- Keep each question self-contained; it will be researched in isolation.
- Return JSON: {"steps": ["question", ...]}`

// Planner generates and revises research plans with an LLM.
type Planner struct {
	llm      provider.Provider
	tele     *telemetry.Telemetry
	maxSteps int
}

// NewPlanner creates a planning agent.
func NewPlanner(llm provider.Provider, tele *telemetry.Telemetry, maxSteps int) *Planner {
	return &Planner{llm: llm, tele: tele, maxSteps: maxSteps}
}

// GeneratePlan asks the model for an ordered list of research questions.
func (p *Planner) GeneratePlan(ctx context.Context, topic string) ([]string, error) {
	user := fmt.Sprintf("TOPIC: %s\n\nProduce at most %d research questions.", topic, p.maxSteps)
	raw, usage, err := p.llm.GenerateJSON(ctx, plannerSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("planner completion: %w", err)
	}
	p.tele.RecordLLMUsage(p.llm.Model(), "planning", usage.InputTokens, usage.OutputTokens, 0)
	return p.parseSteps(raw)
}

// RevisePlan asks the model to rework the current plan for the topic.
func (p *Planner) RevisePlan(ctx context.Context, topic string, current []string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "TOPIC: %s\n\nCURRENT PLAN:\n", topic)
	for i, step := range current {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "\nRevise this plan. Keep what works, fix what does not. At most %d questions.", p.maxSteps)

	raw, usage, err := p.llm.GenerateJSON(ctx, plannerSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("planner revision: %w", err)
	}
	p.tele.RecordLLMUsage(p.llm.Model(), "planning", usage.InputTokens, usage.OutputTokens, 0)
	return p.parseSteps(raw)
}

func (p *Planner) parseSteps(raw string) ([]string, error) {
	var out struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(firstJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("bad JSON from model: %w; content=%s", err, raw)
	}
	var steps []string
	for _, s := range out.Steps {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("model returned an empty plan")
	}
	if len(steps) > p.maxSteps {
		steps = steps[:p.maxSteps]
	}
	return steps, nil
}

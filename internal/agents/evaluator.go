package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
)

const evaluatorSystemPrompt = `You judge research answers. Output STRICT JSON.
An answer is good when it actually settles the question with specifics from
sources, not filler. Be strict but fair.
Return JSON: {"good": true|false, "reasoning": "one or two sentences"}`

// Evaluator judges whether an answer settles its question.
type Evaluator struct {
	llm  provider.Provider
	tele *telemetry.Telemetry
}

// NewEvaluator creates the judging agent.
func NewEvaluator(llm provider.Provider, tele *telemetry.Telemetry) *Evaluator {
	return &Evaluator{llm: llm, tele: tele}
}

// Evaluate returns the model's verdict on (question, answer).
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (research.Evaluation, error) {
	user := fmt.Sprintf("QUESTION: %s\n\nANSWER:\n%s", question, answer)
	raw, usage, err := e.llm.GenerateJSON(ctx, evaluatorSystemPrompt, user)
	if err != nil {
		return research.Evaluation{}, fmt.Errorf("evaluator completion: %w", err)
	}
	e.tele.RecordLLMUsage(e.llm.Model(), "evaluation", usage.InputTokens, usage.OutputTokens, 0)

	var out struct {
		Good      bool   `json:"good"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(firstJSON(raw)), &out); err != nil {
		return research.Evaluation{}, fmt.Errorf("bad JSON from model: %w; content=%s", err, raw)
	}
	return research.Evaluation{Good: out.Good, Reasoning: out.Reasoning}, nil
}

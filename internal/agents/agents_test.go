package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
	"github.com/mohammad-safakhou/scout/tools/web_search/models"
)

// fakeLLM replays scripted completions.
type fakeLLM struct {
	responses []string
	i         int
	prompts   []string
}

func (f *fakeLLM) next(user string) (string, provider.Usage, error) {
	f.prompts = append(f.prompts, user)
	if f.i >= len(f.responses) {
		return "", provider.Usage{}, errors.New("llm script exhausted")
	}
	r := f.responses[f.i]
	f.i++
	return r, provider.Usage{InputTokens: 10, OutputTokens: 5}, nil
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, provider.Usage, error) {
	return f.next(user)
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user string) (string, provider.Usage, error) {
	return f.next(user)
}

func (f *fakeLLM) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

type fakeSearcher struct {
	queries []string
	results []models.Result
}

func (f *fakeSearcher) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	f.queries = append(f.queries, q)
	return f.results, nil
}

func newTele() *telemetry.Telemetry {
	return telemetry.NewTelemetry(config.TelemetryConfig{})
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Errorf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFirstJSONTrimsProse(t *testing.T) {
	in := `Sure, here is the plan: {"steps": ["a", "b"]} hope that helps`
	if got := firstJSON(in); got != `{"steps": ["a", "b"]}` {
		t.Fatalf("firstJSON = %q", got)
	}
	in = `{"reasoning": "braces {inside} strings \" stay"}`
	if got := firstJSON(in); got != in {
		t.Fatalf("firstJSON mangled string content: %q", got)
	}
}

func TestPlannerGeneratePlanParsesSteps(t *testing.T) {
	llm := &fakeLLM{responses: []string{"```json\n{\"steps\": [\"History\", \" Current tech \", \"\"]}\n```"}}
	p := NewPlanner(llm, newTele(), 7)

	steps, err := p.GeneratePlan(context.Background(), "solar")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(steps) != 2 || steps[0] != "History" || steps[1] != "Current tech" {
		t.Fatalf("unexpected steps: %v", steps)
	}
}

func TestPlannerCapsSteps(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"steps": ["1","2","3","4"]}`}}
	p := NewPlanner(llm, newTele(), 2)
	steps, err := p.GeneratePlan(context.Background(), "t")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(steps))
	}
}

func TestPlannerRejectsEmptyPlan(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"steps": []}`}}
	p := NewPlanner(llm, newTele(), 7)
	if _, err := p.GeneratePlan(context.Background(), "t"); err == nil {
		t.Fatalf("expected error for empty plan")
	}
}

func TestEvaluatorParsesVerdict(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"good": false, "reasoning": "too vague"}`}}
	e := NewEvaluator(llm, newTele())

	eval, err := e.Evaluate(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Good || eval.Reasoning != "too vague" {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}
}

func TestEvaluatorBadJSON(t *testing.T) {
	llm := &fakeLLM{responses: []string{"not json at all"}}
	e := NewEvaluator(llm, newTele())
	if _, err := e.Evaluate(context.Background(), "q", "a"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResearcherSearchWithoutHistorySkipsRefinement(t *testing.T) {
	llm := &fakeLLM{}
	searcher := &fakeSearcher{results: []models.Result{{Title: "T", URL: "https://x", Snippet: "S"}}}
	r := NewResearcher(llm, newTele(), searcher, "fake", nil, 8, 3)

	content, err := r.Search(context.Background(), "original query", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "original query" {
		t.Fatalf("expected unrefined query, got %v", searcher.queries)
	}
	if content == "" {
		t.Fatalf("expected snippet content")
	}
	if len(llm.prompts) != 0 {
		t.Fatalf("no LLM call expected without history")
	}
}

func TestResearcherSearchRefinesQueryFromHistory(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"query": "refined query"}`}}
	searcher := &fakeSearcher{results: []models.Result{{Title: "T", URL: "https://x", Snippet: "S"}}}
	r := NewResearcher(llm, newTele(), searcher, "fake", nil, 8, 3)

	history := []research.PreviousSearch{{Query: "original query", Reasoning: "too shallow"}}
	if _, err := r.Search(context.Background(), "original query", history); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "refined query" {
		t.Fatalf("expected refined query, got %v", searcher.queries)
	}
}

func TestResearcherSearchNoResults(t *testing.T) {
	r := NewResearcher(&fakeLLM{}, newTele(), &fakeSearcher{}, "fake", nil, 8, 3)
	if _, err := r.Search(context.Background(), "q", nil); err == nil {
		t.Fatalf("expected error for zero results")
	}
}

func TestAutoIntentSequenceThenConfirm(t *testing.T) {
	a := &AutoIntent{Sequence: []research.Intent{research.IntentUpdate}}
	opts := research.IntentOptions()

	got, err := a.SelectIntent(context.Background(), opts)
	if err != nil || got != research.IntentUpdate {
		t.Fatalf("first: %v %v", got, err)
	}
	got, err = a.SelectIntent(context.Background(), opts)
	if err != nil || got != research.IntentConfirm {
		t.Fatalf("second: %v %v", got, err)
	}
	got, err = a.SelectIntent(context.Background(), opts)
	if err != nil || got != research.IntentConfirm {
		t.Fatalf("exhausted selector must keep confirming: %v %v", got, err)
	}
}

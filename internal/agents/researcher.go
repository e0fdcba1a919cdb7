package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
	"github.com/mohammad-safakhou/scout/tools/web_fetch"
	"github.com/mohammad-safakhou/scout/tools/web_search"
)

const refineSystemPrompt = `You rewrite search queries. Output STRICT JSON.
Given a research question and the reasons previous answers were rejected,
produce ONE better web search query that avoids the failed angles.
Return JSON: {"query": "..."}`

const answerSystemPrompt = `You answer research questions from retrieved web content only.
- Use only the provided content; do not invent facts.
- Be concrete: numbers, dates and names where the content has them.
- If the content is thin, answer with what is there and say what is missing.
Respond with the answer text only, no preamble.`

// Researcher implements the search and answer-extraction capabilities: it
// discovers pages, pulls their readable text and asks the model to answer
// the question from that content.
type Researcher struct {
	llm        provider.Provider
	tele       *telemetry.Telemetry
	searcher   web_search.WebSearcher
	fetcher    web_fetch.Fetcher
	searchName string
	maxResults int
	fetchTopK  int
	logger     *log.Logger
}

// NewResearcher creates the research agent. fetcher may be nil, in which
// case only search snippets feed the answer.
func NewResearcher(llm provider.Provider, tele *telemetry.Telemetry, searcher web_search.WebSearcher, searchName string, fetcher web_fetch.Fetcher, maxResults, fetchTopK int) *Researcher {
	if maxResults <= 0 {
		maxResults = 8
	}
	if fetchTopK <= 0 {
		fetchTopK = 3
	}
	return &Researcher{
		llm:        llm,
		tele:       tele,
		searcher:   searcher,
		fetcher:    fetcher,
		searchName: searchName,
		maxResults: maxResults,
		fetchTopK:  fetchTopK,
		logger:     log.New(os.Stdout, "[RESEARCHER] ", log.LstdFlags),
	}
}

// Search retrieves content for the query. The failed-attempt history steers
// a query rewrite so repeated rounds stop hitting the same dead ends; the
// caller's query itself is never mutated.
func (r *Researcher) Search(ctx context.Context, query string, previous []research.PreviousSearch) (string, error) {
	effective := query
	if len(previous) > 0 {
		refined, err := r.refineQuery(ctx, query, previous)
		if err != nil {
			r.logger.Printf("query refinement failed, reusing original: %v", err)
		} else if refined != "" {
			effective = refined
		}
	}

	r.tele.RecordSearchRound(r.searchName)
	results, err := r.searcher.Discover(ctx, effective, r.maxResults)
	if err != nil {
		return "", fmt.Errorf("discover: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no results for %q", effective)
	}

	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, res.Title, res.URL, res.Snippet)
	}

	if r.fetcher != nil {
		fetched := 0
		for _, res := range results {
			if fetched >= r.fetchTopK {
				break
			}
			page, err := r.fetcher.Exec(ctx, res.URL)
			if err != nil || page.Text == "" {
				continue
			}
			fetched++
			fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n\n", page.Title, page.URL, page.Text)
		}
	}
	return b.String(), nil
}

// Answer extracts an answer to the question from the retrieved content.
func (r *Researcher) Answer(ctx context.Context, content, question string) (string, error) {
	user := fmt.Sprintf("QUESTION: %s\n\nCONTENT:\n%s", question, content)
	answer, usage, err := r.llm.Generate(ctx, answerSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("answer completion: %w", err)
	}
	r.tele.RecordLLMUsage(r.llm.Model(), "research", usage.InputTokens, usage.OutputTokens, 0)
	return strings.TrimSpace(answer), nil
}

func (r *Researcher) refineQuery(ctx context.Context, query string, previous []research.PreviousSearch) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n\nREJECTED ATTEMPTS:\n", query)
	for i, p := range previous {
		fmt.Fprintf(&b, "%d. query=%q rejected because: %s\n", i+1, p.Query, p.Reasoning)
	}

	raw, usage, err := r.llm.GenerateJSON(ctx, refineSystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	r.tele.RecordLLMUsage(r.llm.Model(), "research", usage.InputTokens, usage.OutputTokens, 0)

	var out struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(firstJSON(raw)), &out); err != nil {
		return "", fmt.Errorf("bad JSON from model: %w", err)
	}
	return strings.TrimSpace(out.Query), nil
}

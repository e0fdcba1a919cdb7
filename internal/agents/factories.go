package agents

import (
	"fmt"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/notes"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
	"github.com/mohammad-safakhou/scout/tools/web_fetch"
	"github.com/mohammad-safakhou/scout/tools/web_search"
)

// BuildDependencies wires the configured LLM providers, search and fetch
// tools into a complete collaborator set for the orchestrator. The caller
// supplies the intent selector (interactive or auto) and the artifact
// workspace; progress may be nil.
func BuildDependencies(cfg *config.Config, tele *telemetry.Telemetry, intents research.IntentSelector, ws research.Workspace, progress research.ProgressSink) (research.Dependencies, *notes.Index, error) {
	providers := make(map[string]provider.Provider)
	providerFor := func(task string) (provider.Provider, error) {
		key := cfg.LLM.Route(task)
		if key == "" {
			// Single-provider configs need no routing table.
			if len(cfg.LLM.Providers) == 1 {
				for k := range cfg.LLM.Providers {
					key = k
				}
			} else {
				return nil, fmt.Errorf("no LLM provider routed for %s", task)
			}
		}
		if p, ok := providers[key]; ok {
			return p, nil
		}
		pcfg, ok := cfg.LLM.Providers[key]
		if !ok {
			return nil, fmt.Errorf("unknown LLM provider %q for %s", key, task)
		}
		p, err := provider.NewProvider(pcfg)
		if err != nil {
			return nil, fmt.Errorf("building provider %q: %w", key, err)
		}
		providers[key] = p
		return p, nil
	}

	planningLLM, err := providerFor("planning")
	if err != nil {
		return research.Dependencies{}, nil, err
	}
	researchLLM, err := providerFor("research")
	if err != nil {
		return research.Dependencies{}, nil, err
	}
	evalLLM, err := providerFor("evaluation")
	if err != nil {
		return research.Dependencies{}, nil, err
	}
	synthesisLLM, err := providerFor("synthesis")
	if err != nil {
		return research.Dependencies{}, nil, err
	}

	searcher, searchName, err := newSearcher(cfg.Sources.WebSearch)
	if err != nil {
		return research.Dependencies{}, nil, err
	}
	fetcher, err := web_fetch.NewFetcher(web_fetch.Mode(cfg.Sources.WebFetch.Mode), cfg.Sources.WebFetch.Timeout, cfg.Sources.WebFetch.MaxChars)
	if err != nil {
		return research.Dependencies{}, nil, err
	}

	idx, err := notes.NewIndex()
	if err != nil {
		return research.Dependencies{}, nil, err
	}

	researcher := NewResearcher(researchLLM, tele, searcher, searchName, fetcher, cfg.Sources.WebSearch.MaxResults, cfg.Research.FetchTopK)

	deps := research.Dependencies{
		Planner:    NewPlanner(planningLLM, tele, cfg.Research.MaxPlanSteps),
		Intents:    intents,
		Searcher:   researcher,
		Answerer:   researcher,
		Evaluator:  NewEvaluator(evalLLM, tele),
		Summarizer: NewSummarizer(synthesisLLM, tele, idx),
		Workspace:  ws,
		Notes:      idx,
		Progress:   progress,
	}
	return deps, idx, nil
}

func newSearcher(cfg config.WebSearchConfig) (web_search.WebSearcher, string, error) {
	name := cfg.Provider
	if name == "" {
		if cfg.SerperAPIKey != "" {
			name = string(web_search.SerperProvider)
		} else {
			name = string(web_search.BraveProvider)
		}
	}
	var key string
	switch web_search.Provider(name) {
	case web_search.SerperProvider:
		key = cfg.SerperAPIKey
	case web_search.BraveProvider:
		key = cfg.BraveAPIKey
	}
	if key == "" {
		return nil, "", fmt.Errorf("no API key configured for search provider %q", name)
	}
	s, err := web_search.NewWebSearcher(web_search.Provider(name), key)
	if err != nil {
		return nil, "", err
	}
	return s, name, nil
}

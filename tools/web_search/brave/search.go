package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mohammad-safakhou/scout/tools/web_search/models"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Search queries the Brave web search API.
type Search struct {
	ApiKey   string
	Endpoint string       // override for tests
	HTTP     *http.Client // nil means http.DefaultClient
}

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpc := s.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}

	// https://api.search.brave.com/app/documentation/web-search
	target := fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(q), k)
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("brave status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave decode: %w", err)
	}

	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}

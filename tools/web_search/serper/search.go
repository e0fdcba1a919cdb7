package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/scout/tools/web_search/models"
)

const defaultEndpoint = "https://google.serper.dev/search"

// Search queries the serper.dev Google wrapper.
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

	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("serper status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper decode: %w", err)
	}

	var out []models.Result
	for i, item := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return out, nil
}

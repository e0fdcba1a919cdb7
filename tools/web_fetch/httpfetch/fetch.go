package httpfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/scout/tools/web_fetch/models"
)

// Fetch retrieves pages over plain HTTP and extracts article text.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
	HTTP     *http.Client // nil means a client with Timeout
}

func (f Fetch) Exec(ctx context.Context, target string) (models.Result, error) {
	if strings.TrimSpace(target) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	httpc := f.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: f.Timeout}
	}

	t0 := time.Now()
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("User-Agent", "scout/1.0 (+research)")

	resp, err := httpc.Do(req)
	if err != nil {
		return models.Result{URL: target, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.Result{URL: target, Status: resp.StatusCode, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), mustParseURL(target))
	if err != nil {
		return models.Result{URL: target, Status: resp.StatusCode, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return models.Result{
		URL:      target,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     text,
		Status:   resp.StatusCode,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

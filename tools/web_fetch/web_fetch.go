package web_fetch

import (
	"context"
	"errors"
	"time"

	chromedp_fetch "github.com/mohammad-safakhou/scout/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/scout/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/scout/tools/web_fetch/models"
)

// Fetcher retrieves a page and extracts its readable text.
type Fetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type Mode string

const (
	HTTPMode     Mode = "http"
	ChromedpMode Mode = "chromedp"
)

var ErrUnsupportedMode = errors.New("unsupported fetch mode")

func NewFetcher(mode Mode, timeout time.Duration, maxChars int) (Fetcher, error) {
	switch mode {
	case HTTPMode:
		return httpfetch.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	case ChromedpMode:
		return chromedp_fetch.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, ErrUnsupportedMode
	}
}

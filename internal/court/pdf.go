package court

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/courtlens/courtlens/pkg/logger"
)

// ErrForeignHost rejects PDF URLs that point away from the court site.
var ErrForeignHost = errors.New("pdf url is not on the court site")

// PDFFetcher streams order PDFs through the service so clients never talk to
// the court site directly. Only URLs on the configured court host are
// fetched.
type PDFFetcher struct {
	client *resty.Client
	host   string
	log    *logger.Logger
}

// NewPDFFetcher builds a fetcher pinned to the court site's host.
func NewPDFFetcher(baseURL, userAgent string, timeout time.Duration, log *logger.Logger) (*PDFFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid court base URL %q: %w", baseURL, err)
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("user-agent", userAgent)
	return &PDFFetcher{client: client, host: u.Hostname(), log: log}, nil
}

// Fetch retrieves the document at rawURL and returns its bytes and content
// type.
func (f *PDFFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid pdf url: %w", err)
	}
	if u.Hostname() != f.host {
		return nil, "", ErrForeignHost
	}

	res, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch pdf: %w", err)
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("pdf fetch returned status %d", res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	f.log.Debug("pdf fetched", "url", rawURL, "bytes", len(res.Body()))
	return res.Body(), contentType, nil
}

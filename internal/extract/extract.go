// Package extract turns a keyword into advertisement records by querying the
// TikTok ad library. The engine is an external collaborator from the
// pipeline's point of view: it is synchronous, blocking, and performs no
// retries of its own.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Engine searches the ad library for a keyword. Implementations may block
// on network I/O for a long time; callers are expected to invoke Search off
// any latency-sensitive path.
type Engine interface {
	Search(ctx context.Context, keyword, region string) ([]map[string]any, error)
}

const defaultBaseURL = "https://library.tiktok.com/api/v1/search"

// Options carries the tunable parts of an ad-library search.
type Options struct {
	// BaseURL overrides the ad library endpoint, used by tests.
	BaseURL string
	// PageSize is the number of ads requested per page.
	PageSize int
	// MaxPages bounds pagination so a broad keyword cannot run unbounded.
	MaxPages int
}

// AdLibrary queries the ad library search endpoint page by page and
// accumulates the returned ad records.
type AdLibrary struct {
	baseURL  string
	pageSize int
	maxPages int
	client   *http.Client
	logger   *slog.Logger
}

func NewAdLibrary(opts Options, logger *slog.Logger) *AdLibrary {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	return &AdLibrary{
		baseURL:  base,
		pageSize: pageSize,
		maxPages: maxPages,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type searchPage struct {
	Ads     []map[string]any `json:"ads"`
	HasMore bool             `json:"has_more"`
}

// Search fetches ads matching keyword in region, following pagination up to
// the configured page bound.
func (a *AdLibrary) Search(ctx context.Context, keyword, region string) ([]map[string]any, error) {
	var ads []map[string]any
	for page := 1; page <= a.maxPages; page++ {
		p, err := a.fetchPage(ctx, keyword, region, page)
		if err != nil {
			return nil, err
		}
		ads = append(ads, p.Ads...)
		if !p.HasMore {
			break
		}
	}
	a.logger.Info("ad library search finished", "keyword", keyword, "region", region, "ads", len(ads))
	return ads, nil
}

func (a *AdLibrary) fetchPage(ctx context.Context, keyword, region string, page int) (*searchPage, error) {
	q := url.Values{}
	q.Set("adv_name", keyword)
	q.Set("region", region)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(a.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ad library: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ad library: fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ad library: unexpected status %d for page %d", resp.StatusCode, page)
	}
	var p searchPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("ad library: decode page %d: %w", page, err)
	}
	a.logger.Debug("ad library page fetched", "keyword", keyword, "page", page, "ads", len(p.Ads))
	return &p, nil
}

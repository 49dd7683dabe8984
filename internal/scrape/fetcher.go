package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinStaticChars  = 100
	DefaultMaxContentChars = 8000
	DefaultFetchTimeout    = 15 * time.Second
	DefaultRenderTimeout   = 30 * time.Second
	DefaultConcurrency     = 4
	DefaultUserAgent       = "linkchat/1.0"
	defaultMaxBodyBytes    = 5 << 20
)

// Renderer loads a page in a real browser and returns its visible text.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

type Result struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

type Options struct {
	HTTPClient *http.Client
	// Renderer is used when the static text is shorter than MinStaticChars.
	// Nil disables the fallback.
	Renderer        Renderer
	MinStaticChars  int
	MaxContentChars int
	FetchTimeout    time.Duration
	RenderTimeout   time.Duration
	Concurrency     int
	UserAgent       string
	MaxBodyBytes    int64
	Logger          *zap.Logger
}

type Fetcher struct {
	client          *http.Client
	renderer        Renderer
	minStaticChars  int
	maxContentChars int
	fetchTimeout    time.Duration
	renderTimeout   time.Duration
	concurrency     int
	userAgent       string
	maxBodyBytes    int64
	logger          *zap.Logger
}

func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:          opts.HTTPClient,
		renderer:        opts.Renderer,
		minStaticChars:  opts.MinStaticChars,
		maxContentChars: opts.MaxContentChars,
		fetchTimeout:    opts.FetchTimeout,
		renderTimeout:   opts.RenderTimeout,
		concurrency:     opts.Concurrency,
		userAgent:       opts.UserAgent,
		maxBodyBytes:    opts.MaxBodyBytes,
		logger:          opts.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.minStaticChars <= 0 {
		f.minStaticChars = DefaultMinStaticChars
	}
	if f.maxContentChars <= 0 {
		f.maxContentChars = DefaultMaxContentChars
	}
	if f.fetchTimeout <= 0 {
		f.fetchTimeout = DefaultFetchTimeout
	}
	if f.renderTimeout <= 0 {
		f.renderTimeout = DefaultRenderTimeout
	}
	if f.concurrency <= 0 {
		f.concurrency = DefaultConcurrency
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = defaultMaxBodyBytes
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// FetchAll scrapes urls concurrently and returns the successful results in
// input order. Failed URLs are logged and left out.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	slots := make([]*Result, len(urls))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, pageURL := range urls {
		g.Go(func() error {
			result, err := f.Fetch(ctx, pageURL)
			if err != nil {
				f.logger.Warn("scrape failed, dropping url", zap.String("url", pageURL), zap.Error(err))
				return nil
			}
			slots[i] = &result
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(urls))
	for _, slot := range slots {
		if slot != nil {
			results = append(results, *slot)
		}
	}
	return results
}

// Fetch scrapes a single URL: static HTML first, the renderer when the
// static text looks like an empty shell.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Result, error) {
	content, err := f.fetchStatic(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}
	if f.renderer != nil && utf8.RuneCountInString(content) < f.minStaticChars {
		f.logger.Debug("static content too short, rendering", zap.String("url", pageURL), zap.Int("chars", utf8.RuneCountInString(content)))
		content, err = f.render(ctx, pageURL)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{URL: pageURL, Content: Truncate(content, f.maxContentChars)}, nil
}

func (f *Fetcher) fetchStatic(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: %s", pageURL, resp.Status)
	}
	return ExtractText(io.LimitReader(resp.Body, f.maxBodyBytes))
}

func (f *Fetcher) render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.renderTimeout)
	defer cancel()

	text, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return CollapseWhitespace(text), nil
}

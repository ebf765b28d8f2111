package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/helpers"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/readable"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/rod"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = config.TimeoutCeiling
)

// WebFetcher acquires a rendered document from a link.
type WebFetcher interface {
	Exec(ctx context.Context, link string, opts models.Options) (models.Result, error)
}

// Renderer drives one browser engine. Each call must own and release its browser.
type Renderer interface {
	Render(ctx context.Context, link string, opts models.Options) (models.Page, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
	RodFetcherType      FetcherType = "rod"
)

// ErrHostNotPermitted is returned for links outside the configured allow list.
var ErrHostNotPermitted = errors.New("host not permitted")

// Fetcher runs the shared acquisition pipeline on top of a Renderer.
type Fetcher struct {
	renderer Renderer
	cfg      config.FetchConfig
	logger   *log.Logger
}

// NewWebFetcher builds the engine named by cfg.Engine.
func NewWebFetcher(cfg config.FetchConfig) (*Fetcher, error) {
	cfg = cfg.Normalize()
	var r Renderer
	switch FetcherType(cfg.Engine) {
	case ChromedpFetcherType:
		r = &chromedp.Fetch{Headless: cfg.Headless, UserAgent: cfg.UserAgent, ExecPath: cfg.ChromePath}
	case RodFetcherType:
		r = &rod.Fetch{Headless: cfg.Headless, UserAgent: cfg.UserAgent, ExecPath: cfg.ChromePath}
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", cfg.Engine)
	}
	return NewWithRenderer(r, cfg), nil
}

// NewWithRenderer wires an arbitrary engine, mainly for tests.
func NewWithRenderer(r Renderer, cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		renderer: r,
		cfg:      cfg.Normalize(),
		logger:   log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

// ClampTimeout applies the default for non-positive values and caps at max,
// which itself never exceeds MaxTimeout.
func ClampTimeout(requested, def, max time.Duration) time.Duration {
	if def <= 0 {
		def = DefaultTimeout
	}
	if max <= 0 || max > MaxTimeout {
		max = MaxTimeout
	}
	if requested <= 0 {
		requested = def
	}
	if requested > max {
		return max
	}
	return requested
}

// Exec renders link and extracts its main document. Every failure is reported
// as a single errs.ErrAcquisition; nothing is retried.
func (f *Fetcher) Exec(ctx context.Context, link string, opts models.Options) (models.Result, error) {
	host, err := helpers.Hostname(link)
	if err != nil {
		return models.Result{}, errs.Validation("link: %v", err)
	}
	if !f.cfg.Permits(host) {
		return models.Result{}, errs.Acquisition(link, ErrHostNotPermitted)
	}

	opts.Timeout = ClampTimeout(opts.Timeout, f.cfg.DefaultTimeout, f.cfg.MaxTimeout)
	opts.WaitFor = strings.TrimSpace(opts.WaitFor)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	t0 := time.Now()

	page, err := f.renderer.Render(ctx, link, opts)
	if err != nil {
		f.logger.Printf("render %s failed after %s: %v", link, time.Since(t0).Round(time.Millisecond), err)
		return models.Result{}, errs.Acquisition(link, err)
	}
	if page.URL == "" {
		page.URL = link
	}

	doc, err := readable.Extract(page.HTML, page.URL)
	if err != nil {
		f.logger.Printf("readability %s: %v", link, err)
	}
	content := readable.Content(doc, page.InnerText)
	if content == "" {
		return models.Result{}, errs.Acquisition(link, errors.New("page has no text content"))
	}
	raw := strings.TrimSpace(page.InnerText)
	if raw == "" {
		raw = content
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = doc.Title
	}
	return models.Result{
		URL:      page.URL,
		Title:    title,
		RawText:  raw,
		Content:  content,
		HTML:     page.HTML,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

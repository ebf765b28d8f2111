package web_fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

type fakeRenderer struct {
	page    models.Page
	err     error
	gotOpts models.Options
	gotDL   time.Duration
	calls   int
}

func (f *fakeRenderer) Render(ctx context.Context, link string, opts models.Options) (models.Page, error) {
	f.calls++
	f.gotOpts = opts
	if dl, ok := ctx.Deadline(); ok {
		f.gotDL = time.Until(dl)
	}
	return f.page, f.err
}

func TestClampTimeout(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, 10 * time.Second},
		{-5 * time.Second, 10 * time.Second},
		{5 * time.Second, 5 * time.Second},
		{30 * time.Second, 30 * time.Second},
		{45 * time.Second, 30 * time.Second},
	}
	for _, c := range cases {
		if got := ClampTimeout(c.in, 0, 0); got != c.want {
			t.Fatalf("ClampTimeout(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := ClampTimeout(2*time.Minute, 0, 2*time.Minute); got != MaxTimeout {
		t.Fatalf("oversized max not capped: got %v", got)
	}
}

func TestExecExtractsContent(t *testing.T) {
	r := &fakeRenderer{page: models.Page{
		Title:     "Terms",
		InnerText: "Terms of Service\nLast updated March 3, 2024",
		HTML:      "<html><body><article><h1>Terms of Service</h1><p>Last updated March 3, 2024. By using the service you agree to these terms and to the arbitration clause described below in full detail.</p></article></body></html>",
	}}
	f := NewWithRenderer(r, config.FetchConfig{})
	res, err := f.Exec(context.Background(), "https://example.com/terms", models.Options{Timeout: 90 * time.Second, WaitFor: "  main "})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if r.gotOpts.Timeout != 30*time.Second {
		t.Fatalf("expected clamped timeout, got %v", r.gotOpts.Timeout)
	}
	if r.gotOpts.WaitFor != "main" {
		t.Fatalf("expected trimmed selector, got %q", r.gotOpts.WaitFor)
	}
	if r.gotDL <= 0 || r.gotDL > 30*time.Second {
		t.Fatalf("expected context deadline within clamp, got %v", r.gotDL)
	}
	if res.URL != "https://example.com/terms" || res.Title != "Terms" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.RawText, "Last updated") || res.Content == "" {
		t.Fatalf("expected raw text and content, got %+v", res)
	}
}

func TestExecRenderFailureIsAcquisitionError(t *testing.T) {
	r := &fakeRenderer{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	f := NewWithRenderer(r, config.FetchConfig{})
	_, err := f.Exec(context.Background(), "https://nonexistent.invalid/privacy", models.Options{})
	if !errors.Is(err, errs.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", r.calls)
	}
}

func TestExecRejectsBadLinkAndDisallowedHost(t *testing.T) {
	r := &fakeRenderer{}
	f := NewWithRenderer(r, config.FetchConfig{Disallow: []string{"blocked.com"}})
	if _, err := f.Exec(context.Background(), "ftp://example.com/x", models.Options{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.Exec(context.Background(), "https://www.blocked.com/privacy", models.Options{}); !errors.Is(err, ErrHostNotPermitted) {
		t.Fatalf("expected host not permitted, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("renderer should not be invoked, got %d calls", r.calls)
	}
}

func TestExecEmptyPage(t *testing.T) {
	f := NewWithRenderer(&fakeRenderer{page: models.Page{HTML: "<html><body></body></html>"}}, config.FetchConfig{})
	if _, err := f.Exec(context.Background(), "https://example.com/empty", models.Options{}); !errors.Is(err, errs.ErrAcquisition) {
		t.Fatalf("expected acquisition error for empty page, got %v", err)
	}
}

func TestNewWebFetcherEngines(t *testing.T) {
	for _, engine := range []string{"", "chromedp", "rod"} {
		if _, err := NewWebFetcher(config.FetchConfig{Engine: engine}); err != nil {
			t.Fatalf("engine %q: %v", engine, err)
		}
	}
	if _, err := NewWebFetcher(config.FetchConfig{Engine: "phantomjs"}); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}

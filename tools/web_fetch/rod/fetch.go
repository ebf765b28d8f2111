package rod

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

// Fetch renders pages with go-rod, launching a local Chrome per call and
// opening a stealth page in an incognito context.
type Fetch struct {
	Headless  bool
	UserAgent string
	ExecPath  string
}

func (f Fetch) Render(ctx context.Context, link string, opts models.Options) (models.Page, error) {
	l := launcher.New().
		Headless(f.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Context(ctx)
	if f.ExecPath != "" {
		l = l.Bin(f.ExecPath)
	}
	wsURL, err := l.Launch()
	if err != nil {
		return models.Page{}, fmt.Errorf("launch: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return models.Page{}, fmt.Errorf("connect: %w", err)
	}
	defer browser.Close()

	incognito, err := browser.Incognito()
	if err != nil {
		return models.Page{}, fmt.Errorf("incognito: %w", err)
	}
	p, err := stealth.Page(incognito)
	if err != nil {
		return models.Page{}, fmt.Errorf("page: %w", err)
	}
	defer p.Close()
	p = p.Context(ctx)

	if f.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.UserAgent}); err != nil {
			return models.Page{}, fmt.Errorf("user agent: %w", err)
		}
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(link); err != nil {
		return models.Page{}, fmt.Errorf("navigate: %w", err)
	}
	wait()

	if opts.WaitFor != "" {
		// best effort; a missing selector does not fail the acquisition
		_, _ = p.Timeout(models.SettleBudget(ctx)).Element(opts.WaitFor)
	} else {
		_ = p.Timeout(models.SettleBudget(ctx)).WaitIdle(models.IdleWait)
	}

	html, err := p.HTML()
	if err != nil {
		return models.Page{}, fmt.Errorf("html: %w", err)
	}
	text, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return models.Page{}, fmt.Errorf("inner text: %w", err)
	}
	var out models.Page
	if info, err := p.Info(); err == nil {
		out.URL = info.URL
		out.Title = info.Title
	}
	out.HTML = html
	out.InnerText = text.Value.Str()
	return out, nil
}

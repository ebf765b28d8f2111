package chromedp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

// Fetch renders pages with a fresh headless Chrome per call.
type Fetch struct {
	Headless  bool
	UserAgent string
	ExecPath  string
}

func (f Fetch) Render(ctx context.Context, link string, opts models.Options) (models.Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(f.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if f.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.ExecPath))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	idle := make(chan struct{})
	var idleOnce sync.Once
	chromedp.ListenTarget(bctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			idleOnce.Do(func() { close(idle) })
		}
	})

	if err := chromedp.Run(bctx,
		page.SetLifecycleEventsEnabled(true),
		navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return models.Page{}, fmt.Errorf("navigate: %w", err)
	}

	if opts.WaitFor != "" {
		wctx, cancel := context.WithTimeout(bctx, models.SettleBudget(ctx))
		// the selector may never appear; extraction proceeds regardless
		_ = chromedp.Run(wctx, chromedp.WaitVisible(opts.WaitFor, chromedp.ByQuery))
		cancel()
	} else {
		select {
		case <-idle:
		case <-time.After(models.SettleBudget(ctx)):
		case <-ctx.Done():
		}
	}

	var out models.Page
	if err := chromedp.Run(bctx,
		chromedp.Location(&out.URL),
		chromedp.Title(&out.Title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &out.InnerText),
		chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery),
	); err != nil {
		return models.Page{}, fmt.Errorf("extract: %w", err)
	}
	return out, nil
}

// navigate issues Page.navigate and returns once the navigation commits,
// surfacing DNS and network failures reported in errorText.
func navigate(link string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(link), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return errors.New(res.ErrorText)
		}
		return nil
	})
}

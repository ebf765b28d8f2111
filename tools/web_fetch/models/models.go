package models

import (
	"context"
	"time"
)

// IdleWait bounds the best-effort settle phase after DOMContentLoaded.
const IdleWait = 3 * time.Second

// SettleBudget returns the wait left for selector and idle waits: IdleWait,
// or half of what remains before ctx's deadline when that is shorter.
func SettleBudget(ctx context.Context) time.Duration {
	d := IdleWait
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline) / 2; left < d {
			d = left
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

// Options tunes a single acquisition.
type Options struct {
	Timeout time.Duration
	// WaitFor is an optional CSS selector awaited after navigation.
	WaitFor string
}

// Page is what a browser engine hands back after rendering.
type Page struct {
	URL       string
	Title     string
	HTML      string
	InnerText string
}

// Result is the acquired document.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	RawText  string `json:"raw_text"`
	Content  string `json:"content"`
	HTML     string `json:"html,omitempty"`
	RenderMS int    `json:"render_ms"`
}

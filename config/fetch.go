package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultUserAgent is a current desktop Chrome user agent. Many legal pages
// serve a consent wall or an empty shell to obvious automation.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// TimeoutCeiling is the largest acquisition timeout any configuration may allow.
const TimeoutCeiling = 30 * time.Second

// FetchConfig configures document acquisition.
type FetchConfig struct {
	Engine         string        `mapstructure:"engine"` // chromedp or rod
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	Headless       bool          `mapstructure:"headless"`
	UserAgent      string        `mapstructure:"user_agent"`
	ChromePath     string        `mapstructure:"chrome_path"`
	Allow          []string      `mapstructure:"allow"`
	Disallow       []string      `mapstructure:"disallow"`
}

// Normalize applies defaults and cleans the host lists.
func (c FetchConfig) Normalize() FetchConfig {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if c.Engine == "" {
		c.Engine = "chromedp"
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = TimeoutCeiling
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	c.Allow = hostList(c.Allow)
	c.Disallow = hostList(c.Disallow)
	return c
}

// Validate rejects unknown engines, timeouts above TimeoutCeiling and hosts
// listed both as allowed and disallowed.
func (c FetchConfig) Validate() error {
	switch c.Engine {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("fetch.engine must be chromedp or rod, got %q", c.Engine)
	}
	if c.MaxTimeout > TimeoutCeiling {
		return fmt.Errorf("fetch.max_timeout (%s) exceeds %s", c.MaxTimeout, TimeoutCeiling)
	}
	if c.DefaultTimeout > c.MaxTimeout {
		return fmt.Errorf("fetch.default_timeout (%s) exceeds fetch.max_timeout (%s)", c.DefaultTimeout, c.MaxTimeout)
	}
	allowed := make(map[string]struct{}, len(c.Allow))
	for _, h := range c.Allow {
		allowed[h] = struct{}{}
	}
	for _, h := range c.Disallow {
		if _, ok := allowed[h]; ok {
			return fmt.Errorf("fetch host %q present in both allow and disallow lists", h)
		}
	}
	return nil
}

// Permits reports whether host may be acquired. A host matches an entry when
// it equals it or is a subdomain of it. Disallow wins; a non-empty allow list
// restricts acquisition to its hosts.
func (c FetchConfig) Permits(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, h := range c.Disallow {
		if matchesHost(host, h) {
			return false
		}
	}
	if len(c.Allow) == 0 {
		return true
	}
	for _, h := range c.Allow {
		if matchesHost(host, h) {
			return true
		}
	}
	return false
}

func matchesHost(host, entry string) bool {
	return host == entry || strings.HasSuffix(host, "."+entry)
}

func hostList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		h := normalizeHost(raw)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil {
			value = u.Hostname()
		}
	}
	return strings.TrimPrefix(value, "www.")
}

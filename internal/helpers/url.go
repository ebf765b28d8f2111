package helpers

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// trackingParams are dropped from links before they are stored or compared.
var trackingParams = []string{"gclid", "dclid", "fbclid", "msclkid", "igshid", "mc_cid", "mc_eid"}

// CanonicalLink normalises a document link so the same page fetched through
// decorated URLs resolves to one stored link. The scheme defaults to https,
// scheme and host are lowercased, default ports, fragments and tracking
// parameters are removed and the remaining query is sorted.
func CanonicalLink(raw string) (string, error) {
	u, err := parseLink(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.Path == "" {
		u.Path = "/"
	}
	cleaned := path.Clean(u.Path)
	if cleaned != "/" && strings.HasSuffix(u.Path, "/") {
		cleaned += "/"
	}
	u.Path = cleaned
	u.RawPath = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || contains(trackingParams, lower) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Hostname returns the lowercased host of link without port.
func Hostname(raw string) (string, error) {
	u, err := parseLink(raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}

func parseLink(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("unsupported url scheme: " + u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("url missing host")
	}
	return u, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package openrouter

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = []string{"openrouter.ai", "api.openrouter.ai"}

// BaseURLError explains why a configured base URL was refused.
type BaseURLError struct {
	URL    string
	Reason string
}

func (e *BaseURLError) Error() string {
	return fmt.Sprintf("llm base url %q: %s", e.URL, e.Reason)
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL refuses anything but https on an allow-listed host: the
// API key travels with every request. An empty allow list means the public
// OpenRouter hosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	raw := normalizeBaseURL(baseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("llm base url: %w", err)
	}

	var reason string
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		reason = "absolute URL with host is required"
	case u.User != nil:
		reason = "userinfo is not allowed"
	case u.RawQuery != "" || u.Fragment != "" || u.ForceQuery:
		reason = "query and fragment are not allowed"
	case !strings.EqualFold(u.Scheme, "https"):
		reason = "https is required"
	default:
		host := strings.ToLower(u.Hostname())
		if !slices.Contains(hostAllowList(allowedHosts), host) {
			reason = fmt.Sprintf("host %q is not in the allowed hosts", host)
		}
	}
	if reason != "" {
		return &BaseURLError{URL: raw, Reason: reason}
	}
	return nil
}

// hostAllowList reduces entries such as "https://Proxy:8443/" to bare
// lower-case host names.
func hostAllowList(entries []string) []string {
	var out []string
	for _, e := range entries {
		h := strings.ToLower(strings.TrimSpace(e))
		if i := strings.Index(h, "://"); i >= 0 {
			h = h[i+3:]
		}
		h, _, _ = strings.Cut(h, "/")
		if host, _, err := net.SplitHostPort(h); err == nil {
			h = host
		}
		if h != "" && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLError represents an error that occurred while parsing a server URL.
type URLError struct {
	URL    string
	Reason string
	Hint   string
}

func (e *URLError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid server URL: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid server URL: %s", e.Reason)
}

func newURLError(raw, reason, hint string) *URLError {
	return &URLError{URL: raw, Reason: reason, Hint: hint}
}

// ParseURL validates a server root URL and returns it normalized: lower-case
// scheme and host, no trailing slash, no query or fragment.
func ParseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, newURLError(raw, "empty URL", "provide the server root, e.g. https://mycompany.odoo.com")
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(lower, "://") {
			return nil, newURLError(raw, "unsupported scheme", "use http:// or https://")
		}
		return nil, newURLError(raw, "missing scheme", "prefix the host with https://, e.g. https://"+trimmed)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, newURLError(raw, err.Error(), "check the URL for stray characters")
	}
	if u.User != nil {
		return nil, newURLError(raw, "credentials embedded in URL", "pass the login and password separately")
	}
	if u.Hostname() == "" {
		return nil, newURLError(raw, "missing host", "format should be https://host[:port]")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, newURLError(raw, "query or fragment not allowed", "use only the server root, e.g. https://host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connection describes how to reach one Odoo server: the endpoint,
// database, login, credential and client-side tunables. A Descriptor is an
// immutable value; every check runs in Validate, before any network call.
package connection

import (
	"fmt"
	"strings"
	"time"

	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/retry"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// Protocol selects the wire protocol. ProtocolAuto probes the server.
type Protocol string

const (
	ProtocolAuto   Protocol = "auto"
	ProtocolLegacy Protocol = "legacy"
	ProtocolDirect Protocol = "direct"
)

// ParseProtocol maps a user-supplied name to a Protocol. The empty string is auto.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProtocolAuto:
		return ProtocolAuto, nil
	case ProtocolLegacy, "jsonrpc", "json-rpc":
		return ProtocolLegacy, nil
	case ProtocolDirect, "json2", "json-2":
		return ProtocolDirect, nil
	default:
		return "", odooerr.Configuration("unknown protocol %q (use auto, legacy or direct)", s)
	}
}

// Secret holds a password or API key. It never renders its value.
type Secret string

// Reveal returns the raw credential for the wire.
func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return `connection.Secret("***")` }

// MarshalText keeps encoders from leaking the value.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// RateLimit caps outgoing requests per facade. Zero RPS disables limiting.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Enabled reports whether requests should be throttled.
func (r RateLimit) Enabled() bool { return r.RPS > 0 }

// Descriptor carries everything needed to reach and authenticate against a server.
type Descriptor struct {
	URL        string
	Database   string
	Username   string
	Credential Secret
	// DefaultActorID is the user id callers act on behalf of when none is
	// given explicitly. Zero means unset.
	DefaultActorID int64

	Timeout   time.Duration
	Retry     retry.Policy
	RateLimit RateLimit
	Protocol  Protocol
}

// New returns a descriptor with default tunables.
func New(url, database, username string, credential Secret) Descriptor {
	return Descriptor{
		URL:        url,
		Database:   database,
		Username:   username,
		Credential: credential,
		Timeout:    DefaultTimeout,
		Retry:      retry.Default(),
		Protocol:   ProtocolAuto,
	}
}

// Validate reports a *odooerr.ConfigurationError for missing or malformed
// settings. URL problems wrap a *URLError carrying a hint.
func (d Descriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(d.Database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(d.Username) == "" {
		missing = append(missing, "username")
	}
	if d.Credential == "" {
		missing = append(missing, "credential")
	}
	if len(missing) > 0 {
		return odooerr.Configuration("missing required settings: %s", strings.Join(missing, ", "))
	}

	if _, err := ParseURL(d.URL); err != nil {
		return &odooerr.ConfigurationError{Message: "invalid server url", Err: err}
	}
	if d.DefaultActorID < 0 {
		return odooerr.Configuration("default user id must be positive (got %d)", d.DefaultActorID)
	}
	if d.Timeout < 0 {
		return odooerr.Configuration("timeout must not be negative (got %s)", d.Timeout)
	}
	if d.RateLimit.RPS < 0 || d.RateLimit.Burst < 0 {
		return odooerr.Configuration("rate limit must not be negative")
	}
	if _, err := ParseProtocol(string(d.Protocol)); err != nil {
		return err
	}
	return d.Retry.Validate()
}

// BaseURL returns the normalized server root, without trailing slash.
// It assumes Validate succeeded.
func (d Descriptor) BaseURL() string {
	u, err := ParseURL(d.URL)
	if err != nil {
		return strings.TrimRight(d.URL, "/")
	}
	return u.String()
}

// Insecure reports whether the credential would travel over plain HTTP to a
// non-loopback host.
func (d Descriptor) Insecure() bool {
	u, err := ParseURL(d.URL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" && !isLoopback(u.Hostname())
}

// EffectiveTimeout returns Timeout or DefaultTimeout when unset.
func (d Descriptor) EffectiveTimeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (db=%s, user=%s)", d.BaseURL(), d.Database, d.Username)
}

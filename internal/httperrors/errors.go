// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors classifies network failures and explains them in
// user-friendly terms.
package httperrors

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"vodoo/cli/pkg/odooerr"
)

// Category is the broad cause of a network failure.
type Category int

const (
	CategoryOther Category = iota
	CategoryTimeout
	CategoryDNS
	CategoryRefused
	CategoryTLS
	CategoryServer
	CategoryRateLimited
)

// Classify inspects err and its chain for a known network failure.
func Classify(err error) Category {
	if err == nil {
		return CategoryOther
	}
	if isTimeoutError(err) {
		return CategoryTimeout
	}
	if isDNSError(err) {
		return CategoryDNS
	}
	if isConnectionRefusedError(err) {
		return CategoryRefused
	}
	if isSSLError(err) {
		return CategoryTLS
	}
	if code := statusCode(err); code == 429 {
		return CategoryRateLimited
	} else if code >= 500 && code < 600 {
		return CategoryServer
	}
	if isServerError(err.Error()) {
		return CategoryServer
	}
	return CategoryOther
}

// Explanation is a headline plus troubleshooting hints.
type Explanation struct {
	Title string
	Hints []string
}

// Explain returns the user-facing explanation of a network failure against host.
func Explain(err error, host string) Explanation {
	if host == "" {
		host = "the server"
	}
	switch Classify(err) {
	case CategoryTimeout:
		return Explanation{
			Title: "Connection timeout",
			Hints: []string{
				"The server took too long to respond. This could mean:",
				"  • Slow internet connection",
				"  • Server is under heavy load",
				"  • Network firewall is blocking the connection",
				"Raise ODOO_TIMEOUT or try again in a few moments.",
			},
		}
	case CategoryDNS:
		return Explanation{
			Title: "Cannot resolve server address",
			Hints: []string{
				"Unable to look up " + host + ". Please check:",
				"  • The server URL is spelled correctly",
				"  • Your internet connection is working",
				"  • DNS settings are correct",
			},
		}
	case CategoryRefused:
		return Explanation{
			Title: "Connection refused",
			Hints: []string{
				host + " is not accepting connections. This could mean:",
				"  • The Odoo service is down or restarting",
				"  • Wrong server address or port",
				"  • Firewall is blocking the connection",
			},
		}
	case CategoryTLS:
		return Explanation{
			Title: "Secure connection failed",
			Hints: []string{
				"Cannot establish a secure HTTPS connection. This could mean:",
				"  • SSL/TLS certificate issue",
				"  • Network proxy interfering with HTTPS",
				"  • System clock is incorrect",
			},
		}
	case CategoryServer:
		return Explanation{
			Title: "Server error",
			Hints: []string{
				host + " encountered an internal error.",
				"  • The request was retried where it was safe to do so",
				"  • Check the Odoo server logs for details",
			},
		}
	case CategoryRateLimited:
		return Explanation{
			Title: "Too many requests",
			Hints: []string{
				host + " is throttling requests.",
				"  • Lower ODOO_RATE_LIMIT or wait before retrying",
			},
		}
	}
	return Explanation{
		Title: "Cannot reach " + host,
		Hints: []string{
			"Please check:",
			"  • Your internet connection",
			"  • Whether " + host + " is accessible from your network",
			"  • Firewall settings that might block HTTP requests",
		},
	}
}

func statusCode(err error) int {
	var te *odooerr.TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError checks if the message indicates a server-side problem (5xx errors).
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout")
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}

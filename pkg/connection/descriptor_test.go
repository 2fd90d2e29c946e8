// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodoo/cli/pkg/odooerr"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        string
		wantReason  string
		expectError bool
	}{
		{name: "https root", url: "https://example.odoo.com", want: "https://example.odoo.com"},
		{name: "trailing slash", url: "https://example.odoo.com/", want: "https://example.odoo.com"},
		{name: "port and path", url: "http://localhost:8069/odoo/", want: "http://localhost:8069/odoo"},
		{name: "mixed case", url: "HTTPS://Example.COM", want: "https://example.com"},
		{name: "surrounding spaces", url: "  https://a.b  ", want: "https://a.b"},
		{name: "empty", url: "", expectError: true, wantReason: "empty URL"},
		{name: "no scheme", url: "example.com", expectError: true, wantReason: "missing scheme"},
		{name: "ftp scheme", url: "ftp://example.com", expectError: true, wantReason: "unsupported scheme"},
		{name: "embedded credentials", url: "https://u:p@example.com", expectError: true, wantReason: "credentials embedded in URL"},
		{name: "missing host", url: "https://", expectError: true, wantReason: "missing host"},
		{name: "query", url: "https://example.com?db=x", expectError: true, wantReason: "query or fragment not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURL(tt.url)
			if tt.expectError {
				var ue *URLError
				require.True(t, errors.As(err, &ue), "got %v", err)
				assert.Equal(t, tt.wantReason, ue.Reason)
				assert.NotEmpty(t, ue.Hint)
				assert.Contains(t, ue.Error(), "Hint:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestValidateMissingFields(t *testing.T) {
	err := Descriptor{}.Validate()
	require.Error(t, err)
	assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))
	assert.Contains(t, err.Error(), "url, database, username, credential")
}

func TestValidateBadURL(t *testing.T) {
	d := New("example.com", "db", "admin", "secret")
	err := d.Validate()
	require.Error(t, err)
	assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))

	var ue *URLError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "missing scheme", ue.Reason)
}

func TestValidateTunables(t *testing.T) {
	base := New("https://example.com", "db", "admin", "secret")
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"negative timeout", func(d *Descriptor) { d.Timeout = -time.Second }},
		{"negative actor", func(d *Descriptor) { d.DefaultActorID = -1 }},
		{"negative rate", func(d *Descriptor) { d.RateLimit.RPS = -1 }},
		{"unknown protocol", func(d *Descriptor) { d.Protocol = "xmlrpc" }},
		{"negative retries", func(d *Descriptor) { d.Retry.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))
		})
	}
}

func TestSecretNeverRenders(t *testing.T) {
	d := New("https://example.com", "db", "admin", "hunter2")
	for _, s := range []string{
		fmt.Sprint(d.Credential),
		fmt.Sprintf("%v", d),
		fmt.Sprintf("%+v", d),
		fmt.Sprintf("%#v", d),
		d.String(),
	} {
		assert.False(t, strings.Contains(s, "hunter2"), "leaked in %q", s)
	}
	assert.Equal(t, "hunter2", d.Credential.Reveal())
}

func TestInsecure(t *testing.T) {
	assert.True(t, New("http://example.com", "db", "u", "p").Insecure())
	assert.False(t, New("http://localhost:8069", "db", "u", "p").Insecure())
	assert.False(t, New("http://127.0.0.1:8069", "db", "u", "p").Insecure())
	assert.False(t, New("https://example.com", "db", "u", "p").Insecure())
}

func TestParseProtocol(t *testing.T) {
	for in, want := range map[string]Protocol{
		"":         ProtocolAuto,
		"AUTO":     ProtocolAuto,
		"legacy":   ProtocolLegacy,
		"json-rpc": ProtocolLegacy,
		"direct":   ProtocolDirect,
		"json2":    ProtocolDirect,
	} {
		got, err := ParseProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseProtocol("xmlrpc")
	assert.Error(t, err)
}

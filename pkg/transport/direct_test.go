// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/odootest"
)

func TestDirectBody(t *testing.T) {
	vals := Values{"name": "Acme"}
	tests := []struct {
		name   string
		method string
		args   []any
		kwargs map[string]any
		want   map[string]any
	}{
		{
			name:   "search takes a domain",
			method: "search",
			args:   []any{Domain{Cond("name", "=", "x")}},
			kwargs: map[string]any{"limit": 1},
			want:   map[string]any{"domain": Domain{Cond("name", "=", "x")}, "limit": 1},
		},
		{
			name:   "search_count takes a domain",
			method: "search_count",
			args:   []any{Domain{}},
			want:   map[string]any{"domain": Domain{}},
		},
		{
			name:   "search_read with fields kwarg",
			method: "search_read",
			args:   []any{Domain{}},
			kwargs: map[string]any{"fields": []string{"name"}},
			want:   map[string]any{"domain": Domain{}, "fields": []string{"name"}},
		},
		{
			name:   "read takes ids and fields",
			method: "read",
			args:   []any{[]int64{1, 2}, []string{"name"}},
			want:   map[string]any{"ids": []int64{1, 2}, "fields": []string{"name"}},
		},
		{
			name:   "create wraps a single mapping in vals_list",
			method: "create",
			args:   []any{vals},
			want:   map[string]any{"vals_list": []any{vals}},
		},
		{
			name:   "create keeps a list as vals_list",
			method: "create",
			args:   []any{[]Values{vals, vals}},
			want:   map[string]any{"vals_list": []Values{vals, vals}},
		},
		{
			name:   "write takes ids and vals",
			method: "write",
			args:   []any{[]int64{3}, vals},
			want:   map[string]any{"ids": []int64{3}, "vals": vals},
		},
		{
			name:   "unlink takes ids",
			method: "unlink",
			args:   []any{[]int64{3}},
			want:   map[string]any{"ids": []int64{3}},
		},
		{
			name:   "other methods take leading ids",
			method: "action_confirm",
			args:   []any{[]int64{7}},
			kwargs: map[string]any{"context": map[string]any{"lang": "en_US"}},
			want:   map[string]any{"ids": []int64{7}, "context": map[string]any{"lang": "en_US"}},
		},
		{
			name:   "other methods ignore a scalar first argument",
			method: "do_something",
			args:   []any{"x"},
			want:   map[string]any{},
		},
		{
			name:   "name_search renames args to domain",
			method: "name_search",
			kwargs: map[string]any{"name": "Ac", "args": Domain{}, "limit": 7},
			want:   map[string]any{"name": "Ac", "domain": Domain{}, "limit": 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := directBody(tt.method, tt.args, tt.kwargs)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("directBody() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDirect(t *testing.T) {
	tests := []struct {
		body string
		want any
	}{
		{"", nil},
		{"null", nil},
		{"false", false},
		{" true\n", true},
		{"42", float64(42)},
		{"3.5", 3.5},
		{`"ok"`, "ok"},
		{"[1,2]", []any{float64(1), float64(2)}},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseDirect([]byte(tt.body))); diff != "" {
			t.Errorf("parseDirect(%q) mismatch (-want +got):\n%s", tt.body, diff)
		}
	}
}

func TestDirectSendsHeaders(t *testing.T) {
	srv := odootest.New(t, odootest.Config{Database: "prod", Password: "key-123"})
	dd := NewDirect(descriptorFor(srv), Options{UserAgent: "vodoo/test", Clock: &recordingClock{}})
	require.NoError(t, dd.Authenticate(context.Background()))
	assert.Equal(t, int64(2), dd.ActorID())

	header, body := srv.LastDirectRequest()
	assert.Equal(t, "bearer key-123", header.Get("Authorization"))
	assert.Equal(t, "prod", header.Get("X-Odoo-Database"))
	assert.Equal(t, "vodoo/test", header.Get("User-Agent"))
	assert.Contains(t, header.Get("Content-Type"), "application/json")
	_, err := uuid.Parse(header.Get("X-Request-Id"))
	assert.NoError(t, err)
	assert.Equal(t, []any{[]any{"login", "=", "admin"}}, body["domain"])
	assert.Equal(t, float64(1), body["limit"])
	assert.Zero(t, srv.AuthCount(), "no login exchange")
}

func TestDirectCreateSendsValsList(t *testing.T) {
	srv := odootest.New(t, odootest.Config{})
	dd := NewDirect(descriptorFor(srv), testOptions(nil))

	id, err := CreateOne(context.Background(), dd, "res.partner", Values{"name": "Acme Corp"})
	require.NoError(t, err)
	assert.Positive(t, id)

	_, body := srv.LastDirectRequest()
	assert.Equal(t, []any{map[string]any{"name": "Acme Corp"}}, body["vals_list"])
	assert.Equal(t, "Acme Corp", srv.Get("res.partner", id)["name"])
}

func TestDirectRejectedKey(t *testing.T) {
	srv := odootest.New(t, odootest.Config{})
	d := descriptorFor(srv)
	d.Credential = "bad"

	err := NewDirect(d, testOptions(nil)).Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, odooerr.KindAuthentication, odooerr.KindOf(err))
	var te *odooerr.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.Code)
}

func TestDirectUnknownLogin(t *testing.T) {
	srv := odootest.New(t, odootest.Config{})
	d := descriptorFor(srv)
	d.Username = "ghost"

	err := NewDirect(d, testOptions(nil)).Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, odooerr.KindAuthentication, odooerr.KindOf(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestDirectRetriesTransientStatus(t *testing.T) {
	srv := odootest.New(t, odootest.Config{})
	seedPartners(srv)
	clock := &recordingClock{}
	dd := NewDirect(descriptorFor(srv), testOptions(clock))

	srv.FailNext(1, http.StatusTooManyRequests)
	recs, err := dd.SearchRead(context.Background(), "res.partner", nil, []string{"name"}, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	assert.Len(t, clock.delays(), 1)
}

func TestDirectErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   odooerr.Kind
		code   int
	}{
		{"exception dict", `{"name":"odoo.exceptions.ValidationError","message":"bad","arguments":["bad"]}`, 422, odooerr.KindValidation, 422},
		{"nested data", `{"message":"x","data":{"name":"odoo.exceptions.AccessError","message":"no"}}`, 403, odooerr.KindAccess, 403},
		{"unnamed 401", `{"message":"expired"}`, 401, odooerr.KindAuthentication, 401},
		{"plain 401", `Invalid apikey`, 401, odooerr.KindAuthentication, 401},
		{"html 404", `<html>not found</html>`, 404, odooerr.KindTransport, 404},
		{"unmapped", `{"name":"builtins.KeyError","message":"k"}`, 500, odooerr.KindTransport, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := directError(&response{status: tt.status, body: []byte(tt.body)})
			assert.Equal(t, tt.want, odooerr.KindOf(err))
			var te *odooerr.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.code, te.Code)
		})
	}

	err := directError(&response{status: 404, body: []byte(`<html>not found</html>`)})
	assert.Equal(t, "[404] Not Found", err.Error())
	assert.True(t, Unsupported(err))
}

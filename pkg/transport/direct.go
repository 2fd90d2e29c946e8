// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

// Direct speaks the JSON-2 protocol of Odoo 19+: one endpoint per model
// method, keyword arguments as the body, and a bearer API key on every
// request instead of a login exchange.
type Direct struct {
	operations

	x        *exchanger
	base     string
	database string
	username string
	secret   connection.Secret

	mu  sync.RWMutex
	uid int64
}

// NewDirect returns a JSON-2 adapter. Authenticate resolves the user id.
func NewDirect(d connection.Descriptor, opts Options) *Direct {
	opts = opts.withDefaults(d)
	dd := &Direct{
		x:        newExchanger(connection.ProtocolDirect, d, opts),
		base:     d.BaseURL() + opts.Endpoints.DirectPrefix,
		database: d.Database,
		username: d.Username,
		secret:   d.Credential,
	}
	dd.operations = operations{exec: dd}
	return dd
}

func (d *Direct) Protocol() connection.Protocol { return connection.ProtocolDirect }

func (d *Direct) ActorID() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.uid
}

// Authenticate looks up the login user. The key itself is checked by the
// server on every request, so this is also the protocol probe used by Detect.
func (d *Direct) Authenticate(ctx context.Context) error {
	if d.ActorID() != 0 {
		return nil
	}
	return d.probe(ctx)
}

func (d *Direct) Reauthenticate(ctx context.Context) error {
	d.mu.Lock()
	d.uid = 0
	d.mu.Unlock()
	return d.probe(ctx)
}

func (d *Direct) Close() error {
	d.mu.Lock()
	d.uid = 0
	d.mu.Unlock()
	d.x.closeIdle()
	return nil
}

func (d *Direct) probe(ctx context.Context) error {
	ids, err := d.Search(ctx, "res.users", Domain{Cond("login", "=", d.username)}, SearchOptions{Limit: 1})
	if err == nil && len(ids) == 0 {
		err = &odooerr.AuthenticationError{Message: fmt.Sprintf("user %q not found on database %q", d.username, d.database)}
	}
	d.x.obs.ObserveAuth(connection.ProtocolDirect, err)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.uid = ids[0]
	d.mu.Unlock()
	d.x.log.Debug("authenticated", zap.Int64("uid", ids[0]))
	return nil
}

func (d *Direct) executeKW(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	body, err := json.Marshal(directBody(method, args, kwargs))
	if err != nil {
		return nil, &odooerr.TransportError{Code: codeNoResponse, Message: "encode request", Err: err}
	}
	endpoint := d.base + "/" + url.PathEscape(model) + "/" + url.PathEscape(method)

	header := http.Header{}
	header.Set("Authorization", "bearer "+d.secret.Reveal())
	if d.database != "" {
		header.Set("X-Odoo-Database", d.database)
	}
	header.Set("X-Request-Id", uuid.NewString())

	return d.x.do(ctx, method, func(ctx context.Context) (any, error) {
		resp, err := d.x.post(ctx, endpoint, body, header)
		if err != nil {
			return nil, err
		}
		if !resp.ok() {
			return nil, directError(resp)
		}
		return parseDirect(resp.body), nil
	})
}

// directBody maps execute_kw positional arguments onto the keyword body
// JSON-2 expects. Explicit kwargs win; an "args" kwarg is renamed "domain".
func directBody(method string, args []any, kwargs map[string]any) map[string]any {
	body := map[string]any{}
	at := func(i int) (any, bool) {
		if i < len(args) {
			return args[i], true
		}
		return nil, false
	}
	switch method {
	case "search", "search_read", "search_count":
		if v, ok := at(0); ok {
			body["domain"] = v
		}
		if v, ok := at(1); ok && method == "search_read" {
			body["fields"] = v
		}
	case "read":
		if v, ok := at(0); ok {
			body["ids"] = v
		}
		if v, ok := at(1); ok {
			body["fields"] = v
		}
	case "create":
		if v, ok := at(0); ok {
			if !isList(v) {
				v = []any{v}
			}
			body["vals_list"] = v
		}
	case "write":
		if v, ok := at(0); ok {
			body["ids"] = v
		}
		if v, ok := at(1); ok {
			body["vals"] = v
		}
	case "unlink":
		if v, ok := at(0); ok {
			body["ids"] = v
		}
	case "name_search", "fields_get":
	default:
		if v, ok := at(0); ok && isList(v) {
			body["ids"] = v
		}
	}
	for k, v := range kwargs {
		body[k] = v
	}
	if v, ok := body["args"]; ok {
		body["domain"] = v
		delete(body, "args")
	}
	return body
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// parseDirect decodes a JSON-2 result body. Besides JSON values the server
// may answer with bare numbers or strings; an empty body or null means no
// result.
func parseDirect(body []byte) any {
	raw := bytes.TrimSpace(body)
	switch string(raw) {
	case "", "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if v, err := decodeValue(raw); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return f
	}
	return string(raw)
}

// directError maps a non-2xx JSON-2 response. The body is either the
// exception dict {name, message, arguments, ...} or {data: {...}}.
func directError(resp *response) error {
	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil || payload == nil {
		te := statusError(resp)
		if resp.status == http.StatusUnauthorized {
			return &odooerr.AuthenticationError{Message: "API key rejected", Err: te}
		}
		return te
	}

	data := payload
	if inner, ok := payload["data"].(map[string]any); ok {
		data = inner
	}
	message, _ := payload["message"].(string)
	if message == "" {
		message = http.StatusText(resp.status)
	}
	if name, _ := data["name"].(string); name == "" && resp.status == http.StatusUnauthorized {
		return &odooerr.AuthenticationError{
			Message: "API key rejected",
			Err:     &odooerr.TransportError{Code: resp.status, Message: message, Data: data},
		}
	}
	return odooerr.FromEnvelope(resp.status, message, data)
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

// legacyParams is the params object of a /jsonrpc "call" request.
type legacyParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

// Legacy speaks the JSON-RPC protocol of Odoo 14 to 18: one endpoint, an
// envelope per request, and a uid obtained by a prior login exchange.
type Legacy struct {
	operations

	x        *exchanger
	url      string
	database string
	username string
	secret   connection.Secret
	sess     *session
}

// NewLegacy returns an unauthenticated legacy adapter. The first call logs in.
func NewLegacy(d connection.Descriptor, opts Options) *Legacy {
	opts = opts.withDefaults(d)
	l := &Legacy{
		x:        newExchanger(connection.ProtocolLegacy, d, opts),
		url:      d.BaseURL() + opts.Endpoints.Legacy,
		database: d.Database,
		username: d.Username,
		secret:   d.Credential,
	}
	l.operations = operations{exec: l}
	l.sess = newSession(l.login)
	return l
}

func (l *Legacy) Protocol() connection.Protocol { return connection.ProtocolLegacy }

func (l *Legacy) ActorID() int64 {
	st, ok := l.sess.current()
	if !ok {
		return 0
	}
	return st.uid
}

func (l *Legacy) Authenticate(ctx context.Context) error {
	_, err := l.sess.ensure(ctx)
	return err
}

func (l *Legacy) Reauthenticate(ctx context.Context) error {
	l.sess.clear()
	return l.Authenticate(ctx)
}

func (l *Legacy) Close() error {
	l.sess.clear()
	l.x.closeIdle()
	return nil
}

// ServerVersion returns the common.version payload. It needs no login.
func (l *Legacy) ServerVersion(ctx context.Context) (map[string]any, error) {
	res, err := l.rpc(ctx, "version", legacyParams{Service: "common", Method: "version", Args: []any{}})
	if err != nil {
		return nil, err
	}
	info, ok := res.(map[string]any)
	if !ok {
		return nil, malformed("common", "version", res, nil)
	}
	return info, nil
}

func (l *Legacy) login(ctx context.Context) (int64, error) {
	params := legacyParams{
		Service: "common",
		Method:  "authenticate",
		Args:    []any{l.database, l.username, l.secret.Reveal(), map[string]any{}},
	}
	res, err := l.rpc(ctx, "authenticate", params)
	if err == nil {
		uid, ok := toInt64(res)
		if !ok || uid <= 0 {
			err = &odooerr.AuthenticationError{
				Message: fmt.Sprintf("invalid credentials for %q on database %q", l.username, l.database),
			}
		} else {
			l.x.log.Debug("authenticated", zap.Int64("uid", uid))
			l.x.obs.ObserveAuth(connection.ProtocolLegacy, nil)
			return uid, nil
		}
	} else if odooerr.IsKind(err, odooerr.KindAccessDenied) {
		err = &odooerr.AuthenticationError{Message: "access denied", Err: err}
	}
	l.x.obs.ObserveAuth(connection.ProtocolLegacy, err)
	return 0, err
}

// executeKW runs object.execute_kw with the cached uid. A call rejected as
// unauthenticated invalidates that session and is retried once after a
// fresh login.
func (l *Legacy) executeKW(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	call := func(st sessionState) (any, error) {
		return l.rpc(ctx, method, legacyParams{
			Service: "object",
			Method:  "execute_kw",
			Args:    []any{l.database, st.uid, l.secret.Reveal(), model, method, args, kwargs},
		})
	}

	st, err := l.sess.ensure(ctx)
	if err != nil {
		return nil, err
	}
	res, err := call(st)
	if err == nil || !needsReauth(err) || ctx.Err() != nil {
		return res, err
	}

	l.x.log.Debug("session rejected, authenticating again",
		zap.String("model", model), zap.String("method", method), zap.Error(err))
	l.sess.invalidate(st)
	st, err = l.sess.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return call(st)
}

func needsReauth(err error) bool {
	return odooerr.IsKind(err, odooerr.KindAuthentication) || odooerr.IsKind(err, odooerr.KindAccessDenied)
}

// rpc sends one envelope under the retry policy of method.
func (l *Legacy) rpc(ctx context.Context, method string, params legacyParams) (any, error) {
	body, err := json2.EncodeClientRequest("call", params)
	if err != nil {
		return nil, &odooerr.TransportError{Code: codeNoResponse, Message: "encode request", Err: err}
	}
	return l.x.do(ctx, method, func(ctx context.Context) (any, error) {
		resp, err := l.x.post(ctx, l.url, body, nil)
		if err != nil {
			return nil, err
		}
		if !resp.ok() {
			return nil, statusError(resp)
		}
		return decodeLegacy(resp)
	})
}

// decodeLegacy unwraps a JSON-RPC response envelope. Error envelopes are
// mapped through the error taxonomy; a null result decodes to nil.
func decodeLegacy(resp *response) (any, error) {
	var raw json.RawMessage
	err := json2.DecodeClientResponse(bytes.NewReader(resp.body), &raw)
	if errors.Is(err, json2.ErrNullResult) {
		return nil, nil
	}
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		data, _ := rpcErr.Data.(map[string]any)
		return nil, odooerr.FromEnvelope(int(rpcErr.Code), rpcErr.Message, data)
	}
	if err != nil {
		return nil, &odooerr.TransportError{Code: resp.status, Message: "malformed response", Err: err}
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, &odooerr.TransportError{Code: resp.status, Message: "malformed result", Err: err}
	}
	return v, nil
}

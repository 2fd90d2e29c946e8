// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

// Detect validates d and returns an authenticated adapter for the server.
//
// Unless d.Protocol forces one, the JSON-2 probe runs first. Only a clear
// "endpoint not served" answer (see Unsupported) falls back to legacy
// JSON-RPC, which then logs in once. Every other probe failure, including
// network errors and rejected keys, is returned as is.
func Detect(ctx context.Context, d connection.Descriptor, opts Options) (Transport, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults(d)
	log := opts.Logger

	proto, _ := connection.ParseProtocol(string(d.Protocol))
	switch proto {
	case connection.ProtocolLegacy:
		return authenticated(ctx, NewLegacy(d, opts))
	case connection.ProtocolDirect:
		return authenticated(ctx, NewDirect(d, opts))
	}

	direct := NewDirect(d, opts)
	err := direct.Authenticate(ctx)
	if err == nil {
		log.Debug("selected protocol", zap.String("protocol", string(connection.ProtocolDirect)), zap.Int64("uid", direct.ActorID()))
		return direct, nil
	}
	if !Unsupported(err) {
		return nil, err
	}

	log.Debug("json-2 endpoint not served, using legacy json-rpc", zap.Error(err))
	legacy, err := authenticated(ctx, NewLegacy(d, opts))
	if err != nil {
		return nil, err
	}
	log.Debug("selected protocol", zap.String("protocol", string(connection.ProtocolLegacy)), zap.Int64("uid", legacy.ActorID()))
	return legacy, nil
}

func authenticated(ctx context.Context, t Transport) (Transport, error) {
	if err := t.Authenticate(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

// Unsupported reports whether err is the server saying the JSON-2 endpoint
// does not exist: 404, 405 or 501 with no exception name in the payload.
func Unsupported(err error) bool {
	var te *odooerr.TransportError
	if !errors.As(err, &te) || te.Name() != "" {
		return false
	}
	switch te.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}

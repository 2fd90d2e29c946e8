// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package odootest runs an in-memory Odoo server for tests. It speaks both the
// legacy JSON-RPC endpoint and the JSON-2 endpoint over the same record store,
// so the two client adapters can be compared against identical data. Faults
// (server exceptions, transient HTTP statuses, expired sessions) can be
// injected per call.
package odootest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// Exception names the server reports in error payloads.
const (
	ExcUserError       = "odoo.exceptions.UserError"
	ExcAccessDenied    = "odoo.exceptions.AccessDenied"
	ExcAccessError     = "odoo.exceptions.AccessError"
	ExcMissingError    = "odoo.exceptions.MissingError"
	ExcValidationError = "odoo.exceptions.ValidationError"
	ExcSessionExpired  = "odoo.http.SessionExpiredException"
)

const notFoundPage = `<!doctype html>
<html lang=en><title>404 Not Found</title>
<h1>Not Found</h1>
<p>The requested URL was not found on the server.</p>`

// Config describes the fake server's single database and user.
type Config struct {
	Database string
	Login    string
	Password string
	// UID is the id of the login user in res.users. Defaults to 2.
	UID int64
	// LegacyOnly disables the JSON-2 endpoint, like a server older than 19.0.
	LegacyOnly bool
}

type fault struct {
	name    string
	message string
	code    int // legacy envelope code
	status  int // JSON-2 HTTP status
}

func newFault(name, message string) *fault {
	f := &fault{name: name, message: message, code: 200, status: http.StatusInternalServerError}
	switch name {
	case ExcUserError, ExcValidationError:
		f.status = http.StatusUnprocessableEntity
	case ExcAccessError:
		f.status = http.StatusForbidden
	case ExcMissingError:
		f.status = http.StatusNotFound
	case ExcAccessDenied:
		f.status = http.StatusUnauthorized
	case ExcSessionExpired:
		f.code = 100
		f.status = http.StatusUnauthorized
	}
	return f
}

func missing(modelName string, id int64) *fault {
	return newFault(ExcMissingError, fmt.Sprintf("Record does not exist or has been deleted.\n(Record: %s(%d,), User: 2)", modelName, id))
}

func valueError(msg string) *fault { return newFault("builtins.ValueError", msg) }

func typeError(msg string) *fault { return newFault("builtins.TypeError", msg) }

func (f *fault) payload() map[string]any {
	return map[string]any{
		"name":      f.name,
		"message":   f.message,
		"arguments": []any{f.message},
		"context":   map[string]any{},
		"debug":     "Traceback (most recent call last):\n  ...\n" + f.name + ": " + f.message,
	}
}

// Server is a running fake Odoo server.
type Server struct {
	*httptest.Server

	cfg   Config
	mu    sync.Mutex
	store *store

	expired   bool
	injected  map[string][]*fault
	failNext  []int
	authDelay time.Duration

	lastHeader http.Header
	lastBody   map[string]any

	authCount   atomic.Int64
	legacyCalls atomic.Int64
	directCalls atomic.Int64
}

var ginMode sync.Once

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB, cfg Config) *Server {
	t.Helper()
	s := Start(cfg)
	t.Cleanup(s.Close)
	return s
}

// Start starts a server; the caller must Close it.
func Start(cfg Config) *Server {
	if cfg.Database == "" {
		cfg.Database = "odoo"
	}
	if cfg.Login == "" {
		cfg.Login = "admin"
	}
	if cfg.Password == "" {
		cfg.Password = "admin"
	}
	if cfg.UID == 0 {
		cfg.UID = 2
	}

	s := &Server{cfg: cfg, store: newStore(), injected: map[string][]*fault{}}
	users := s.store.model("res.users")
	users.nextID = cfg.UID
	s.store.create("res.users", map[string]any{"login": cfg.Login, "name": "Administrator"})

	ginMode.Do(func() { gin.SetMode(gin.TestMode) })
	r := gin.New()
	r.Use(s.transientFaults)
	r.POST("/jsonrpc", s.handleLegacy)
	if !cfg.LegacyOnly {
		r.POST("/json/2/:model/:method", s.handleDirect)
	}
	r.NoRoute(func(c *gin.Context) {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(notFoundPage))
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// Relate declares field on modelName as a many2one to target.
func (s *Server) Relate(modelName, field, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.model(modelName).relations[field] = target
}

// Seed stores a record directly and returns its id.
func (s *Server) Seed(modelName string, vals map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.create(modelName, vals)
}

// Get returns a stored record, or nil.
func (s *Server) Get(modelName string, id int64) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.store.model(modelName).rows[id]
	if !ok {
		return nil
	}
	out := Record{}
	for k, v := range row {
		out[k] = v
	}
	return out
}

// InjectError makes the next call of method (on any model, any protocol)
// fail with the named server exception.
func (s *Server) InjectError(method, name, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected[method] = append(s.injected[method], newFault(name, message))
}

// FailNext makes the next n requests to any endpoint fail with HTTP status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failNext = append(s.failNext, status)
	}
}

// ExpireSessions makes legacy calls fail with a session-expired error until
// the next authentication.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// SetAuthDelay slows down legacy authentication.
func (s *Server) SetAuthDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authDelay = d
}

// AuthCount returns the number of legacy authentication exchanges served.
func (s *Server) AuthCount() int { return int(s.authCount.Load()) }

// LegacyCalls returns the number of requests served on /jsonrpc.
func (s *Server) LegacyCalls() int { return int(s.legacyCalls.Load()) }

// DirectCalls returns the number of requests served on /json/2.
func (s *Server) DirectCalls() int { return int(s.directCalls.Load()) }

// LastDirectRequest returns the headers and decoded body of the most recent
// JSON-2 request.
func (s *Server) LastDirectRequest() (http.Header, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeader, s.lastBody
}

func (s *Server) transientFaults(c *gin.Context) {
	s.mu.Lock()
	var status int
	if len(s.failNext) > 0 {
		status, s.failNext = s.failNext[0], s.failNext[1:]
	}
	s.mu.Unlock()
	if status != 0 {
		c.Data(status, "text/plain; charset=utf-8", []byte(http.StatusText(status)))
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) takeInjected(method string) *fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.injected[method]
	if len(q) == 0 {
		return nil
	}
	s.injected[method] = q[1:]
	return q[0]
}

type legacyRequest struct {
	ID     json.RawMessage `json:"id"`
	Params struct {
		Service string `json:"service"`
		Method  string `json:"method"`
		Args    []any  `json:"args"`
	} `json:"params"`
}

func (s *Server) handleLegacy(c *gin.Context) {
	s.legacyCalls.Add(1)
	var req legacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "bad request: %v", err)
		return
	}
	result, f := s.legacy(req.Params.Service, req.Params.Method, req.Params.Args)
	if f != nil {
		c.JSON(http.StatusOK, gin.H{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": gin.H{
				"code":    f.code,
				"message": "Odoo Server Error",
				"data":    f.payload(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (s *Server) legacy(service, method string, args []any) (any, *fault) {
	switch service {
	case "common":
		switch method {
		case "version":
			return map[string]any{"server_version": "17.0", "protocol_version": 1}, nil
		case "authenticate", "login":
			return s.authenticate(args), nil
		}
	case "object":
		if method == "execute_kw" || method == "execute" {
			return s.executeKW(args)
		}
	}
	return nil, newFault("builtins.KeyError", fmt.Sprintf("service %s has no method %s", service, method))
}

func (s *Server) authenticate(args []any) any {
	s.authCount.Add(1)
	s.mu.Lock()
	delay := s.authDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if len(args) < 3 || args[0] != s.cfg.Database || args[1] != s.cfg.Login || args[2] != s.cfg.Password {
		return false
	}
	s.mu.Lock()
	s.expired = false
	s.mu.Unlock()
	return s.cfg.UID
}

func (s *Server) executeKW(args []any) (any, *fault) {
	if len(args) < 5 {
		return nil, typeError("execute_kw() missing required positional arguments")
	}
	db, _ := args[0].(string)
	uid, _ := toID(args[1])
	password, _ := args[2].(string)
	modelName, _ := args[3].(string)
	method, _ := args[4].(string)

	if db != s.cfg.Database || uid != s.cfg.UID || password != s.cfg.Password {
		return nil, newFault(ExcAccessDenied, "Access Denied")
	}
	s.mu.Lock()
	expired := s.expired
	s.mu.Unlock()
	if expired {
		return nil, newFault(ExcSessionExpired, "Session expired")
	}

	var pos []any
	if len(args) > 5 {
		pos, _ = args[5].([]any)
	}
	kw := map[string]any{}
	if len(args) > 6 {
		if m, ok := args[6].(map[string]any); ok {
			kw = m
		}
	}
	return s.dispatch(modelName, method, fromPositional(method, pos, kw))
}

// fromPositional folds legacy positional arguments into the keyword form
// used by JSON-2.
func fromPositional(method string, args []any, kw map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range kw {
		out[k] = v
	}
	at := func(i int) (any, bool) {
		if i < len(args) {
			return args[i], true
		}
		return nil, false
	}
	switch method {
	case "search", "search_read", "search_count":
		if v, ok := at(0); ok {
			out["domain"] = v
		}
		if v, ok := at(1); ok && method == "search_read" {
			out["fields"] = v
		}
	case "read":
		if v, ok := at(0); ok {
			out["ids"] = v
		}
		if v, ok := at(1); ok {
			out["fields"] = v
		}
	case "create":
		if v, ok := at(0); ok {
			out["vals_list"] = v
		}
	case "write":
		if v, ok := at(0); ok {
			out["ids"] = v
		}
		if v, ok := at(1); ok {
			out["vals"] = v
		}
	case "name_search":
		if v, ok := at(0); ok {
			out["name"] = v
		}
	default:
		if v, ok := at(0); ok {
			out["ids"] = v
		}
	}
	if v, ok := out["args"]; ok {
		out["domain"] = v
		delete(out, "args")
	}
	return out
}

func (s *Server) handleDirect(c *gin.Context) {
	s.directCalls.Add(1)
	raw, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	body := map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			c.String(http.StatusBadRequest, "body must be a JSON object")
			return
		}
	}
	s.mu.Lock()
	s.lastHeader = c.Request.Header.Clone()
	s.lastBody = body
	s.mu.Unlock()

	auth := c.GetHeader("Authorization")
	scheme, key, _ := strings.Cut(auth, " ")
	if !strings.EqualFold(scheme, "bearer") || key != s.cfg.Password {
		c.String(http.StatusUnauthorized, "Invalid apikey")
		return
	}
	if db := c.GetHeader("X-Odoo-Database"); db != "" && db != s.cfg.Database {
		c.String(http.StatusBadRequest, "database %q not found", db)
		return
	}

	result, f := s.dispatch(c.Param("model"), c.Param("method"), body)
	if f != nil {
		c.JSON(f.status, f.payload())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) dispatch(modelName, method string, kw map[string]any) (any, *fault) {
	if f := s.takeInjected(method); f != nil {
		return nil, f
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	domain, _ := kw["domain"].([]any)
	params := searchParams{domain: domain, limit: toInt(kw["limit"]), offset: toInt(kw["offset"])}
	params.order, _ = kw["order"].(string)

	switch method {
	case "search":
		return s.store.search(modelName, params)
	case "search_count":
		ids, f := s.store.search(modelName, params)
		return len(ids), f
	case "search_read":
		ids, f := s.store.search(modelName, params)
		if f != nil {
			return nil, f
		}
		return s.store.read(modelName, ids, toStrings(kw["fields"]))
	case "read":
		ids, ok := toIDs(kw["ids"])
		if !ok {
			return nil, typeError("read() missing required argument: 'ids'")
		}
		return s.store.read(modelName, ids, toStrings(kw["fields"]))
	case "create":
		return s.create(modelName, kw)
	case "write":
		ids, ok := toIDs(kw["ids"])
		vals, vok := kw["vals"].(map[string]any)
		if !ok || !vok {
			return nil, typeError("write() missing required arguments: 'ids', 'vals'")
		}
		if f := s.store.write(modelName, ids, vals); f != nil {
			return nil, f
		}
		return true, nil
	case "unlink":
		ids, ok := toIDs(kw["ids"])
		if !ok {
			return nil, typeError("unlink() missing required argument: 'ids'")
		}
		if f := s.store.unlink(modelName, ids); f != nil {
			return nil, f
		}
		return true, nil
	case "name_search":
		name, _ := kw["name"].(string)
		limit := params.limit
		if limit == 0 {
			limit = 100
		}
		params.limit = 0
		ids, f := s.store.search(modelName, params)
		if f != nil {
			return nil, f
		}
		pairs := make([]any, 0, len(ids))
		for _, id := range ids {
			display := s.store.displayName(modelName, id)
			if name != "" && !strings.Contains(strings.ToLower(display), strings.ToLower(name)) {
				continue
			}
			pairs = append(pairs, []any{id, display})
			if len(pairs) == limit {
				break
			}
		}
		return pairs, nil
	case "check_access_rights":
		// The fake user may do anything but delete.
		op, _ := kw["operation"].(string)
		if op == "unlink" && kw["raise_exception"] != false {
			return nil, newFault(ExcAccessError, fmt.Sprintf("You are not allowed to delete '%s' records.", modelName))
		}
		return op != "unlink", nil
	}
	return nil, newFault("builtins.AttributeError", fmt.Sprintf("The method '%s.%s' does not exist", modelName, method))
}

func (s *Server) create(modelName string, kw map[string]any) (any, *fault) {
	switch v := kw["vals_list"].(type) {
	case map[string]any:
		return s.store.create(modelName, v), nil
	case []any:
		ids := make([]int64, 0, len(v))
		for _, e := range v {
			vals, ok := e.(map[string]any)
			if !ok {
				return nil, typeError("create() vals_list must contain mappings")
			}
			ids = append(ids, s.store.create(modelName, vals))
		}
		return ids, nil
	}
	return nil, typeError("create() missing required argument: 'vals_list'")
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"vodoo/cli/pkg/odooerr"
)

// Domain is a search filter in Odoo's prefix notation: a list of
// [field, operator, value] terms and "&", "|", "!" operators.
type Domain []any

// Cond builds one domain term.
func Cond(field, op string, value any) []any { return []any{field, op, value} }

// Values maps field names to values for create and write.
type Values map[string]any

// Record is one row as decoded from the server. Numbers are float64;
// many2one fields are [id, display_name] or false.
type Record map[string]any

// ID returns the record's id, or 0 when absent.
func (r Record) ID() int64 {
	id, _ := toInt64(r["id"])
	return id
}

// SearchOptions are the optional paging and ordering arguments of a search.
type SearchOptions struct {
	Limit   int
	Offset  int
	Order   string
	Context map[string]any
}

func (o SearchOptions) kwargs() map[string]any {
	kw := map[string]any{}
	if o.Limit > 0 {
		kw["limit"] = o.Limit
	}
	if o.Offset > 0 {
		kw["offset"] = o.Offset
	}
	if o.Order != "" {
		kw["order"] = o.Order
	}
	if len(o.Context) > 0 {
		kw["context"] = o.Context
	}
	return kw
}

// NamePair is one name_search result.
type NamePair struct {
	ID   int64
	Name string
}

// executor performs one logical execute_kw call on the wire.
type executor interface {
	executeKW(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
}

// operations implements the uniform operation set once on top of an executor.
type operations struct {
	exec executor
}

// Call invokes an arbitrary model method and returns the decoded result as is.
func (o operations) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	if strings.TrimSpace(model) == "" {
		return nil, odooerr.Configuration("model name is required")
	}
	if strings.TrimSpace(method) == "" {
		return nil, odooerr.Configuration("method name is required")
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return o.exec.executeKW(ctx, model, method, args, kwargs)
}

// Search returns the ids of records matching domain.
func (o operations) Search(ctx context.Context, model string, domain Domain, opts SearchOptions) ([]int64, error) {
	res, err := o.Call(ctx, model, "search", []any{domainArg(domain)}, opts.kwargs())
	if err != nil {
		return nil, err
	}
	ids, err := toIDList(res)
	if err != nil {
		return nil, malformed(model, "search", res, err)
	}
	return ids, nil
}

// SearchRead returns the given fields of records matching domain. Empty
// fields reads every field.
func (o operations) SearchRead(ctx context.Context, model string, domain Domain, fields []string, opts SearchOptions) ([]Record, error) {
	kw := opts.kwargs()
	if len(fields) > 0 {
		kw["fields"] = fields
	}
	res, err := o.Call(ctx, model, "search_read", []any{domainArg(domain)}, kw)
	if err != nil {
		return nil, err
	}
	recs, err := toRecords(res)
	if err != nil {
		return nil, malformed(model, "search_read", res, err)
	}
	return recs, nil
}

// Read returns the given fields of the records with ids, in server order.
// A requested id without a row yields *odooerr.RecordNotFoundError.
func (o operations) Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	args := []any{ids}
	if len(fields) > 0 {
		args = append(args, fields)
	}
	res, err := o.Call(ctx, model, "read", args, nil)
	if err != nil {
		if len(ids) == 1 && odooerr.IsKind(err, odooerr.KindMissing) {
			return nil, &odooerr.RecordNotFoundError{Model: model, ID: ids[0], Err: err}
		}
		return nil, err
	}
	recs, err := toRecords(res)
	if err != nil {
		return nil, malformed(model, "read", res, err)
	}
	if len(recs) < len(ids) {
		seen := make(map[int64]bool, len(recs))
		for _, r := range recs {
			seen[r.ID()] = true
		}
		for _, id := range ids {
			if !seen[id] {
				return nil, &odooerr.RecordNotFoundError{Model: model, ID: id}
			}
		}
	}
	return recs, nil
}

// Create creates one record per values and returns the new ids in order.
func (o operations) Create(ctx context.Context, model string, values ...Values) ([]int64, error) {
	if len(values) == 0 {
		return nil, &odooerr.RecordOperationError{Model: model, Method: "create", Message: "no values given"}
	}
	var arg any = values[0]
	if len(values) > 1 {
		arg = values
	}
	res, err := o.Call(ctx, model, "create", []any{arg}, nil)
	if err != nil {
		return nil, err
	}
	ids, err := toIDList(res)
	if err != nil || len(ids) != len(values) {
		return nil, &odooerr.RecordOperationError{
			Model:   model,
			Method:  "create",
			Message: fmt.Sprintf("unexpected result %s", preview(res)),
			Err:     err,
		}
	}
	return ids, nil
}

// Write updates the records with ids and reports the server's success flag.
func (o operations) Write(ctx context.Context, model string, ids []int64, values Values) (bool, error) {
	if len(ids) == 0 {
		return false, &odooerr.RecordOperationError{Model: model, Method: "write", Message: "no record ids given"}
	}
	if values == nil {
		values = Values{}
	}
	res, err := o.Call(ctx, model, "write", []any{ids, values}, nil)
	if err != nil {
		return false, err
	}
	return truthy(res), nil
}

// Unlink deletes the records with ids and reports the server's success flag.
func (o operations) Unlink(ctx context.Context, model string, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return false, &odooerr.RecordOperationError{Model: model, Method: "unlink", Message: "no record ids given"}
	}
	res, err := o.Call(ctx, model, "unlink", []any{ids}, nil)
	if err != nil {
		return false, err
	}
	return truthy(res), nil
}

// CreateOne creates a single record and returns its id.
func CreateOne(ctx context.Context, t Transport, model string, values Values) (int64, error) {
	ids, err := t.Create(ctx, model, values)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// SearchCount returns the number of records matching domain.
func SearchCount(ctx context.Context, t Transport, model string, domain Domain) (int64, error) {
	res, err := t.Call(ctx, model, "search_count", []any{domainArg(domain)}, nil)
	if err != nil {
		return 0, err
	}
	n, ok := toInt64(res)
	if !ok {
		return 0, malformed(model, "search_count", res, nil)
	}
	return n, nil
}

// NameSearch runs the autocomplete search and returns (id, display name)
// pairs. Malformed pairs are skipped.
func NameSearch(ctx context.Context, t Transport, model, name string, domain Domain, limit int) ([]NamePair, error) {
	if limit <= 0 {
		limit = 7
	}
	res, err := t.Call(ctx, model, "name_search", nil, map[string]any{
		"name":  name,
		"args":  domainArg(domain),
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	list, _ := res.([]any)
	pairs := make([]NamePair, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		id, idOK := toInt64(pair[0])
		label, nameOK := pair[1].(string)
		if idOK && nameOK {
			pairs = append(pairs, NamePair{ID: id, Name: label})
		}
	}
	return pairs, nil
}

func domainArg(d Domain) Domain {
	if d == nil {
		return Domain{}
	}
	return d
}

// decodeValue decodes a JSON result the same way for both protocols.
func decodeValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

// toIDList accepts a bare id or a list of ids.
func toIDList(v any) ([]int64, error) {
	if v == nil {
		return []int64{}, nil
	}
	if id, ok := toInt64(v); ok {
		return []int64{id}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of ids, got %T", v)
	}
	ids := make([]int64, 0, len(list))
	for i, e := range list {
		id, ok := toInt64(e)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not an id", i, e)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toRecords(v any) ([]Record, error) {
	if v == nil {
		return []Record{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of records, got %T", v)
	}
	recs := make([]Record, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a record", i, e)
		}
		recs = append(recs, Record(m))
	}
	return recs, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case []any:
		return len(x) > 0
	}
	return true
}

func malformed(model, method string, res any, err error) error {
	return &odooerr.TransportError{
		Code:    codeNoResponse,
		Message: fmt.Sprintf("unexpected %s result from %s: %s", method, model, preview(res)),
		Err:     err,
	}
}

func preview(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	s := string(b)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package fields parses command-line field assignments such as
// "name=Acme", "priority+=1" or "tag_ids=json:[[6,0,[4,5]]]" into typed
// record values.
package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/transport"
)

// Assignment operators.
const (
	OpSet = "="
	OpAdd = "+="
	OpSub = "-="
	OpMul = "*="
	OpDiv = "/="
)

const jsonPrefix = "json:"

var assignmentRe = regexp.MustCompile(`(?s)^([^=+\-*/]+)([+\-*/]?=)(.+)$`)

// Assignment is one parsed "field<op>value" expression.
type Assignment struct {
	Field    string
	Operator string
	Value    any
}

// Compound reports whether the assignment needs the field's current value.
func (a Assignment) Compound() bool { return a.Operator != OpSet }

// Reader fetches records; both the transport adapters and the client facade satisfy it.
type Reader interface {
	Read(ctx context.Context, model string, ids []int64, fields []string) ([]transport.Record, error)
}

// Split breaks an expression into its field, operator and raw value.
func Split(expr string) (field, op, raw string, err error) {
	m := assignmentRe.FindStringSubmatch(expr)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", "", "", &odooerr.FieldParsingError{
			Message: fmt.Sprintf("Invalid format '%s'. Use field=value or field+=value", expr),
		}
	}
	return strings.TrimSpace(m[1]), m[2], strings.TrimSpace(m[3]), nil
}

// Parse splits expr and types its value.
func Parse(expr string) (Assignment, error) {
	field, op, raw, err := Split(expr)
	if err != nil {
		return Assignment{}, err
	}
	v, err := ParseValue(field, raw)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{Field: field, Operator: op, Value: v}, nil
}

// ParseValue types a raw value: a "json:" prefix decodes the remainder,
// integers become int64, decimals float64, true/false bool, and surrounding
// quotes are stripped. Anything else stays a string.
func ParseValue(field, raw string) (any, error) {
	switch {
	case strings.HasPrefix(raw, jsonPrefix):
		var v any
		if err := json.Unmarshal([]byte(raw[len(jsonPrefix):]), &v); err != nil {
			return nil, &odooerr.FieldParsingError{
				Field:   field,
				Message: fmt.Sprintf("Invalid JSON for field '%s'", field),
				Err:     err,
			}
		}
		return v, nil
	case isInteger(raw):
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return raw, nil
	case isDecimal(raw):
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return raw, nil
	case strings.EqualFold(raw, "true"):
		return true, nil
	case strings.EqualFold(raw, "false"):
		return false, nil
	case len(raw) >= 2 && (raw[0] == '"' && raw[len(raw)-1] == '"' || raw[0] == '\'' && raw[len(raw)-1] == '\''):
		return raw[1 : len(raw)-1], nil
	}
	return raw, nil
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func isDecimal(s string) bool {
	s = strings.Replace(s, ".", "", 1)
	s = strings.Replace(s, "-", "", 1)
	return s != "" && strings.Trim(s, "0123456789") == ""
}

// Apply combines a compound operator's operand with the current field value.
// Integral operands give an int64 result; division yields a float64 unless
// it divides evenly.
func Apply(field, op string, operand, current any) (any, error) {
	if current == nil {
		return nil, &odooerr.FieldParsingError{Field: field, Message: fmt.Sprintf("Field '%s' not found or is None", field)}
	}
	cur, curInt, ok := number(current)
	if !ok {
		return nil, &odooerr.FieldParsingError{Field: field, Message: fmt.Sprintf("Field '%s' has non-numeric value: %v", field, current)}
	}
	val, valInt, ok := number(operand)
	if !ok {
		return nil, &odooerr.FieldParsingError{Field: field, Message: fmt.Sprintf("Operator '%s' requires numeric value, got: %v", op, operand)}
	}
	integral := curInt && valInt

	var res float64
	switch op {
	case OpAdd:
		res = cur + val
	case OpSub:
		res = cur - val
	case OpMul:
		res = cur * val
	case OpDiv:
		if val == 0 {
			return nil, &odooerr.FieldParsingError{Field: field, Message: "Division by zero"}
		}
		res = cur / val
		integral = integral && res == math.Trunc(res)
	default:
		return nil, &odooerr.FieldParsingError{Field: field, Message: fmt.Sprintf("unsupported operator '%s'", op)}
	}
	if integral {
		return int64(res), nil
	}
	return res, nil
}

// number reports v as a float and whether it is integral. JSON numbers
// decoded from a server response arrive as float64; those without a
// fractional part count as integers.
func number(v any) (float64, bool, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case float64:
		return n, n == math.Trunc(n) && !math.IsInf(n, 0), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return float64(i), true, true
		}
		f, err := n.Float64()
		return f, false, err == nil
	}
	return 0, false, false
}

// Values parses assignments for a new record. Compound operators are
// rejected since there is no current value to combine with.
func Values(exprs []string) (transport.Values, error) {
	vals := transport.Values{}
	for _, expr := range exprs {
		a, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		if a.Compound() {
			return nil, &odooerr.FieldParsingError{
				Field:   a.Field,
				Message: fmt.Sprintf("Operator '%s' needs an existing record", a.Operator),
			}
		}
		vals[a.Field] = a.Value
	}
	return vals, nil
}

// Resolve parses assignments against an existing record, reading current
// values once for every field touched by a compound operator. Assignments
// to the same field apply in order.
func Resolve(ctx context.Context, r Reader, model string, id int64, exprs []string) (transport.Values, error) {
	parsed := make([]Assignment, 0, len(exprs))
	var need []string
	seen := map[string]bool{}
	for _, expr := range exprs {
		a, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		if a.Compound() && !seen[a.Field] {
			seen[a.Field] = true
			need = append(need, a.Field)
		}
		parsed = append(parsed, a)
	}

	current := transport.Values{}
	if len(need) > 0 {
		recs, err := r.Read(ctx, model, []int64{id}, need)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			for _, f := range need {
				current[f] = recs[0][f]
			}
		}
	}

	vals := transport.Values{}
	for _, a := range parsed {
		if !a.Compound() {
			vals[a.Field] = a.Value
			current[a.Field] = a.Value
			continue
		}
		v, err := Apply(a.Field, a.Operator, a.Value, current[a.Field])
		if err != nil {
			return nil, err
		}
		vals[a.Field] = v
		current[a.Field] = v
	}
	return vals, nil
}

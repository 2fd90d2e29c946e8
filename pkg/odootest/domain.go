// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package odootest

import (
	"errors"
	"fmt"
	"strings"
)

// match evaluates a prefix-notation domain against row. Terms are implicitly
// and-ed; "&", "|" and "!" take the following one or two expressions.
func (s *store) match(m *model, row Record, domain []any) (bool, error) {
	if len(domain) == 0 {
		return true, nil
	}
	pos := 0
	result := true
	for pos < len(domain) {
		ok, next, err := s.eval(m, row, domain, pos)
		if err != nil {
			return false, err
		}
		result = result && ok
		pos = next
	}
	return result, nil
}

func (s *store) eval(m *model, row Record, domain []any, pos int) (bool, int, error) {
	if pos >= len(domain) {
		return false, pos, errors.New("incomplete domain")
	}
	switch t := domain[pos].(type) {
	case string:
		switch t {
		case "!":
			ok, next, err := s.eval(m, row, domain, pos+1)
			return !ok, next, err
		case "&", "|":
			left, next, err := s.eval(m, row, domain, pos+1)
			if err != nil {
				return false, next, err
			}
			right, next, err := s.eval(m, row, domain, next)
			if err != nil {
				return false, next, err
			}
			if t == "&" {
				return left && right, next, nil
			}
			return left || right, next, nil
		}
		return false, pos, fmt.Errorf("invalid domain operator %q", t)
	case []any:
		if len(t) != 3 {
			return false, pos, fmt.Errorf("invalid domain term %v", t)
		}
		field, _ := t[0].(string)
		op, _ := t[1].(string)
		ok, err := s.term(m, row, field, op, t[2])
		return ok, pos + 1, err
	}
	return false, pos, fmt.Errorf("invalid domain element %v", domain[pos])
}

// term evaluates one leaf. Dotted paths follow many2one relations.
func (s *store) term(m *model, row Record, field, op string, want any) (bool, error) {
	if head, rest, dotted := strings.Cut(field, "."); dotted {
		target, ok := m.relations[head]
		if !ok {
			return false, fmt.Errorf("invalid field %s.%s in leaf", m.name, head)
		}
		id, ok := toID(row[head])
		if !ok {
			return false, nil
		}
		related, ok := s.model(target).rows[id]
		if !ok {
			return false, nil
		}
		return s.term(s.model(target), related, rest, op, want)
	}

	got := row[field]
	if _, rel := m.relations[field]; rel {
		if id, ok := toID(got); ok {
			got = float64(id)
		}
	}

	switch op {
	case "=", "==":
		return equal(got, want), nil
	case "!=", "<>":
		return !equal(got, want), nil
	case "<":
		return orderable(got, want) && compare(got, want) < 0, nil
	case "<=":
		return orderable(got, want) && compare(got, want) <= 0, nil
	case ">":
		return orderable(got, want) && compare(got, want) > 0, nil
	case ">=":
		return orderable(got, want) && compare(got, want) >= 0, nil
	case "in", "not in":
		list, ok := want.([]any)
		if !ok {
			list = []any{want}
		}
		found := false
		for _, v := range list {
			if equal(got, v) {
				found = true
				break
			}
		}
		return found == (op == "in"), nil
	case "like", "ilike", "not ilike", "=like", "=ilike":
		g, _ := got.(string)
		w, _ := want.(string)
		if strings.Contains(op, "ilike") {
			g, w = strings.ToLower(g), strings.ToLower(w)
		}
		var ok bool
		if strings.HasPrefix(op, "=") {
			ok = g == strings.ReplaceAll(w, "%", "")
		} else {
			ok = strings.Contains(g, w)
		}
		if strings.HasPrefix(op, "not") {
			return !ok, nil
		}
		return ok, nil
	}
	return false, fmt.Errorf("invalid domain operator %q", op)
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	}
	return false
}

func equal(a, b any) bool {
	if isFalsy(a) && isFalsy(b) {
		return true
	}
	if orderable(a, b) {
		return compare(a, b) == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func orderable(a, b any) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	}
	return false
}

func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		y, _ := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	}
	if isFalsy(a) && !isFalsy(b) {
		return -1
	}
	if !isFalsy(a) && isFalsy(b) {
		return 1
	}
	return 0
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package odootest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Record is one stored row. Values hold JSON-decoded data (numbers are float64);
// many2one fields hold the target id.
type Record map[string]any

type model struct {
	name      string
	relations map[string]string
	rows      map[int64]Record
	nextID    int64
}

type store struct {
	models map[string]*model
}

func newStore() *store {
	return &store{models: map[string]*model{}}
}

func (s *store) model(name string) *model {
	m, ok := s.models[name]
	if !ok {
		m = &model{name: name, relations: map[string]string{}, rows: map[int64]Record{}, nextID: 1}
		s.models[name] = m
	}
	return m
}

// jsonify converts Go values to the shapes a wire round-trip would produce.
func jsonify(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func (s *store) create(modelName string, vals map[string]any) int64 {
	m := s.model(modelName)
	id := m.nextID
	m.nextID++
	row := Record{}
	for k, v := range vals {
		if k == "id" {
			continue
		}
		row[k] = jsonify(v)
	}
	row["id"] = float64(id)
	m.rows[id] = row
	return id
}

func (s *store) write(modelName string, ids []int64, vals map[string]any) *fault {
	m := s.model(modelName)
	if f := m.requireAll(ids); f != nil {
		return f
	}
	for _, id := range ids {
		for k, v := range vals {
			if k == "id" {
				continue
			}
			m.rows[id][k] = jsonify(v)
		}
	}
	return nil
}

func (s *store) unlink(modelName string, ids []int64) *fault {
	m := s.model(modelName)
	if f := m.requireAll(ids); f != nil {
		return f
	}
	for _, id := range ids {
		delete(m.rows, id)
	}
	return nil
}

func (m *model) requireAll(ids []int64) *fault {
	for _, id := range ids {
		if _, ok := m.rows[id]; !ok {
			return missing(m.name, id)
		}
	}
	return nil
}

func (s *store) read(modelName string, ids []int64, fields []string) ([]Record, *fault) {
	m := s.model(modelName)
	if f := m.requireAll(ids); f != nil {
		return nil, f
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.render(m, m.rows[id], fields))
	}
	return out, nil
}

// render projects a row onto fields, expanding many2one ids to [id, name].
func (s *store) render(m *model, row Record, fields []string) Record {
	if len(fields) == 0 {
		fields = make([]string, 0, len(row))
		for k := range row {
			fields = append(fields, k)
		}
	}
	out := Record{"id": row["id"]}
	for _, f := range fields {
		v, ok := row[f]
		if !ok || v == nil {
			out[f] = false
			continue
		}
		if target, rel := m.relations[f]; rel {
			id, _ := toID(v)
			out[f] = []any{float64(id), s.displayName(target, id)}
			continue
		}
		out[f] = v
	}
	return out
}

func (s *store) displayName(modelName string, id int64) string {
	if row, ok := s.model(modelName).rows[id]; ok {
		if name, ok := row["name"].(string); ok {
			return name
		}
	}
	return fmt.Sprintf("%s,%d", modelName, id)
}

type searchParams struct {
	domain []any
	limit  int
	offset int
	order  string
}

func (s *store) search(modelName string, p searchParams) ([]int64, *fault) {
	m := s.model(modelName)
	var ids []int64
	for id, row := range m.rows {
		ok, err := s.match(m, row, p.domain)
		if err != nil {
			return nil, valueError(err.Error())
		}
		if ok {
			ids = append(ids, id)
		}
	}
	if err := s.sortIDs(m, ids, p.order); err != nil {
		return nil, valueError(err.Error())
	}
	if p.offset > 0 {
		if p.offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[p.offset:]
		}
	}
	if p.limit > 0 && len(ids) > p.limit {
		ids = ids[:p.limit]
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *store) sortIDs(m *model, ids []int64, order string) error {
	field, desc := "id", false
	if order = strings.TrimSpace(order); order != "" {
		parts := strings.Fields(strings.Split(order, ",")[0])
		field = parts[0]
		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "desc":
				desc = true
			case "asc":
			default:
				return fmt.Errorf("invalid order %q", order)
			}
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := m.rows[ids[i]][field], m.rows[ids[j]][field]
		c := compare(a, b)
		if c == 0 {
			c = compare(float64(ids[i]), float64(ids[j]))
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func toID(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), x > 0
	case int64:
		return x, x > 0
	case int:
		return int64(x), x > 0
	case []any:
		if len(x) > 0 {
			return toID(x[0])
		}
	}
	return 0, false
}

func toIDs(v any) ([]int64, bool) {
	switch x := v.(type) {
	case []any:
		ids := make([]int64, 0, len(x))
		for _, e := range x {
			id, ok := toID(e)
			if !ok {
				return nil, false
			}
			ids = append(ids, id)
		}
		return ids, true
	default:
		if id, ok := toID(v); ok {
			return []int64{id}, true
		}
	}
	return nil, false
}

func toStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vodoo/cli/pkg/client"
	"vodoo/cli/pkg/odooerr"
)

// parseIDs converts positional record ids. Commas also separate ids.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, &odooerr.FieldParsingError{Field: "id", Message: fmt.Sprintf("invalid record id %q", part)}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseDomain decodes a JSON domain such as [["is_company","=",true]].
func parseDomain(s string) (client.Domain, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var d client.Domain
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, &odooerr.FieldParsingError{Field: "domain", Message: "domain must be a JSON list", Err: err}
	}
	return d, nil
}

func parseJSONList(name, s string) ([]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var v []any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, &odooerr.FieldParsingError{Field: name, Message: name + " must be a JSON list", Err: err}
	}
	return v, nil
}

func parseJSONObject(name, s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, &odooerr.FieldParsingError{Field: name, Message: name + " must be a JSON object", Err: err}
	}
	return v, nil
}

// splitFields turns "name, email" into ["name","email"].
func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

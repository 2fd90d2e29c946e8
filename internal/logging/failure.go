// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"vodoo/cli/internal/httperrors"
	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

// Failure is the user-facing rendering of an error.
type Failure struct {
	Title   string
	Lines   []string
	Action  string
	Details string
}

// Describe explains err for a user talking to host. Details are masked.
func Describe(err error, host string) Failure {
	f := Failure{Details: Mask(err.Error())}

	switch kind := odooerr.KindOf(err); {
	case kind == odooerr.KindConfiguration:
		f.Title = "Configuration Problem"
		f.Lines = []string{"The connection settings are incomplete or invalid."}
		var ue *connection.URLError
		if errors.As(err, &ue) {
			f.Lines = append(f.Lines, "  • "+ue.Hint)
		}
		f.Action = "Check ODOO_* variables, config.yaml and the selected instance profile"

	case kind == odooerr.KindAuthentication:
		f.Title = "Authentication Failed"
		f.Lines = []string{
			"The server rejected the credentials. This usually means:",
			"  • Wrong username, password or API key",
			"  • Wrong database name",
			"  • JSON-2 servers need an API key rather than a password",
		}
		f.Action = "Fix the credentials and try again"

	case kind == odooerr.KindRecordNotFound:
		f.Title = "Record Not Found"
		var nf *odooerr.RecordNotFoundError
		if errors.As(err, &nf) {
			f.Lines = []string{fmt.Sprintf("%s has no record with id %d, or you cannot see it.", nf.Model, nf.ID)}
		}

	case kind == odooerr.KindRecordOperation:
		f.Title = "Operation Rejected"
		f.Lines = []string{"The server did not apply the change."}

	case kind == odooerr.KindFieldParsing:
		f.Title = "Invalid Field Value"
		f.Lines = []string{
			"Use field=value, or field+=n / -= / *= / /= for numeric fields.",
			"Prefix JSON values with json:, e.g. tag_ids=json:[[6,0,[1,2]]]",
		}

	case kind.Is(odooerr.KindUser) || kind == odooerr.KindAccessDenied:
		f.Title = "Server Refused the Request"
		var te *odooerr.TransportError
		if errors.As(err, &te) {
			f.Lines = []string{Mask(te.Message)}
			if name := te.Name(); name != "" {
				f.Lines = append(f.Lines, "("+name+")")
			}
		}

	case kind == odooerr.KindTransport:
		e := httperrors.Explain(err, host)
		f.Title = e.Title
		f.Lines = e.Hints
		f.Action = "Please try again in a few moments"

	default:
		f.Title = "Unexpected Error"
	}
	return f
}

// Format renders a Failure with pterm styles.
func (f Failure) Format() string {
	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(f.Title))
	builder.WriteString("\n")
	if len(f.Lines) > 0 {
		builder.WriteString("\n")
		for _, l := range f.Lines {
			builder.WriteString(l)
			builder.WriteString("\n")
		}
	}
	if f.Action != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + f.Action))
		builder.WriteString("\n")
	}
	if strings.TrimSpace(f.Details) != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + f.Details))
	}
	return builder.String()
}

// PresentError formats an error without a known kind as one masked line.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// PresentFailure prints err for the user.
func PresentFailure(err error, host string) {
	pterm.Println()
	pterm.Println(Describe(err, host).Format())
	pterm.Println()
}

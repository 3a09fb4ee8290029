package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Output formats understood by WriteReport.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WriteReport renders r to w in the given format.
func WriteReport(w io.Writer, r history.Report, format string) error {
	if format == "" || format == FormatText {
		return writeText(w, r)
	}
	return WriteStructured(w, r, format)
}

// WriteReports renders a list of reports, one line each in text format.
func WriteReports(w io.Writer, rs []history.Report, format string) error {
	if format != "" && format != FormatText {
		return WriteStructured(w, rs, format)
	}
	for _, r := range rs {
		if _, err := fmt.Fprintf(w, "%s  #%-4d %-9s %4d modules  %d errors  %s\n",
			r.Started.Format("2006-01-02 15:04:05"), r.ExecutionID, r.Outcome,
			len(r.Modules), len(r.Errors), r.Duration()); err != nil {
			return err
		}
	}
	return nil
}

// WriteStructured encodes v as indented JSON or YAML.
func WriteStructured(w io.Writer, v any, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, r history.Report) error {
	fmt.Fprintf(w, "run %s (#%d) %s in %s\n", r.RunID, r.ExecutionID, r.Outcome, r.Duration())
	for _, m := range r.Modules {
		line := fmt.Sprintf("  %-32s %s", m.Module, m.Outcome)
		switch {
		case m.Reason != "":
			line += " (" + string(m.Reason) + ")"
		case m.Iterations > 0:
			line += fmt.Sprintf(" after %d iterations", m.Iterations)
		}
		if m.Duration > 0 {
			line += " " + m.Duration.String()
		}
		fmt.Fprintln(w, line)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "errors:")
		ids := make([]moduleid.ID, 0, len(r.Errors))
		for id := range r.Errors {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, r.Errors[id])
		}
	}
	if r.Fatal != "" {
		_, err := fmt.Fprintf(w, "fatal: %s\n", r.Fatal)
		return err
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCONTAINER\tFILE\tLINE")
	for _, s := range syms {
		name := s.Name
		if s.Scope != "" {
			name = s.Scope + "." + s.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", name, s.Kind, s.Container, s.File, s.StartLine)
	}
	tw.Flush()
}

func formatThreadsText(w io.Writer, threads []CLIThread) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD\tPARAMS\tLINE")
	for _, th := range threads {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", th.Name, strings.Join(th.Params, " "), th.Line)
	}
	tw.Flush()
}

// formatEditsText formats rename edits as "file:line:col-line:col -> text".
func formatEditsText(w io.Writer, edits []CLIEdit) {
	for _, e := range edits {
		fmt.Fprintf(w, "%s:%d:%d-%d:%d -> %s\n", e.File, e.StartLine, e.StartCol, e.EndLine, e.EndCol, e.NewText)
	}
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s\n", d.File, d.Line, d.Col, d.Message)
	}
}

func formatStatsText(w io.Writer, st CLIStats) {
	fmt.Fprintf(w, "Name: %s\n", st.Name)
	fmt.Fprintf(w, "Definitions: %d\n", st.Definitions)
	fmt.Fprintf(w, "References: %d\n", st.References)
	fmt.Fprintf(w, "Declarations: %d\n", st.Declarations)
	if len(st.Files) > 0 {
		fmt.Fprintln(w, "Files:")
		for _, f := range st.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if len(st.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(st.Suggestions, ", "))
	}
}

func formatIndexSummaryText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Loaded: %d scripts\n", s.Loaded)
	fmt.Fprintf(w, "Database: %s (%d files re-exported)\n", s.Database, s.Exported)
	fmt.Fprintf(w, "Totals: %d files, %d symbols, %d references\n", s.Files, s.Symbols, s.References)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(result CLIResult) error {
	w := stdout

	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIThread:
		formatThreadsText(w, v)
	case []CLIEdit:
		formatEditsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case CLIIndexSummary:
		formatIndexSummaryText(w, v)
	case nil:
		// Scripts may end without a value.
	default:
		fmt.Fprintf(w, "%v\n", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}

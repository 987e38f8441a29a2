package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus"
	"github.com/jward/morpheus/internal/document"
)

var flagWrite bool

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line> <col> <new-name>",
	Short: "Rename the symbol at a position across the workspace",
	Long:  "Prints the edits a rename would make. With --write the edits are applied to the files on disk.",
	Args:  cobra.ExactArgs(4),
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().BoolVar(&flagWrite, "write", false, "apply the edits to disk")
	renameCmd.Flags().StringVar(&flagRoot, "root", "", "workspace root (default: repo root of the file)")
}

func runRename(cmd *cobra.Command, args []string) error {
	engine, uri, pos, err := positionArgs(context.Background(), flagRoot, args[:3])
	if err != nil {
		return outputError("rename", err)
	}
	defer engine.Close()

	edit, err := engine.Rename(uri, pos, args[3])
	if err != nil {
		return outputError("rename", err)
	}
	if edit == nil {
		return outputError("rename", fmt.Errorf("nothing to rename at %s:%s:%s", args[0], args[1], args[2]))
	}

	uris := make([]string, 0, len(edit.Changes))
	for u := range edit.Changes {
		uris = append(uris, u)
	}
	sort.Strings(uris)

	out := []CLIEdit{}
	for _, u := range uris {
		for _, te := range edit.Changes[u] {
			out = append(out, CLIEdit{
				CLILocation: locationToCLI(protocol.Location{URI: u, Range: te.Range}),
				NewText:     te.NewText,
			})
		}
		if flagWrite {
			if err := writeEdits(u, edit.Changes[u]); err != nil {
				return outputError("rename", err)
			}
		}
	}
	n := len(out)
	return outputResult(CLIResult{Command: "rename", Results: out, TotalCount: &n})
}

func writeEdits(uri string, edits []protocol.TextEdit) error {
	path, err := morpheus.PathFromURI(uri)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(applyEdits(string(content), edits)), info.Mode().Perm())
}

// applyEdits applies non-overlapping edits to text, last edit first so
// earlier offsets stay valid.
func applyEdits(text string, edits []protocol.TextEdit) string {
	lines := document.NewLineIndex(text)
	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, len(edits))
	for i, e := range edits {
		spans[i] = span{lines.Offset(e.Range.Start), lines.Offset(e.Range.End), e.NewText}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	for _, s := range spans {
		text = text[:s.start] + s.text + text[s.end:]
	}
	return text
}

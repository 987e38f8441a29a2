package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus"
)

// newEngine builds an initialised engine from the loaded configuration.
func newEngine(ctx context.Context) (*morpheus.Engine, error) {
	engine := morpheus.New(cfg.EngineOptions()...)
	if err := engine.Init(ctx); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// loadWorkspace builds an engine and indexes every script under root.
// Per-file failures are reported but do not abort the load.
func loadWorkspace(ctx context.Context, root string) (*morpheus.Engine, int, error) {
	engine, err := newEngine(ctx)
	if err != nil {
		return nil, 0, err
	}
	n, err := engine.LoadDirectory(ctx, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
	}
	return engine, n, nil
}

// openFile opens a script in engine as an editor would, so position-based
// queries see its current text. It returns the document URI.
func openFile(engine *morpheus.Engine, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	uri, err := morpheus.URIFromPath(path)
	if err != nil {
		return "", err
	}
	engine.OpenDocument(uri, string(content), 1)
	return uri, nil
}

// positionArgs parses <file> <line> <col> and loads the file's workspace:
// the --root flag if given, else the repo containing the file.
func positionArgs(ctx context.Context, root string, args []string) (*morpheus.Engine, string, protocol.Position, error) {
	var pos protocol.Position
	file, err := resolveFilePath(args[0])
	if err != nil {
		return nil, "", pos, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, "", pos, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, "", pos, err
	}
	pos = protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}

	if root == "" {
		root = findRepoRoot(filepath.Dir(file))
	}
	engine, _, err := loadWorkspace(ctx, root)
	if err != nil {
		return nil, "", pos, err
	}
	uri, err := openFile(engine, file)
	if err != nil {
		engine.Close()
		return nil, "", pos, err
	}
	return engine, uri, pos, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// displayPath turns a file URI back into a path; other URIs pass through.
func displayPath(uri string) string {
	if path, err := morpheus.PathFromURI(uri); err == nil {
		return path
	}
	return uri
}

func locationToCLI(loc protocol.Location) CLILocation {
	return CLILocation{
		File:      displayPath(loc.URI),
		StartLine: int(loc.Range.Start.Line),
		StartCol:  int(loc.Range.Start.Character),
		EndLine:   int(loc.Range.End.Line),
		EndCol:    int(loc.Range.End.Character),
	}
}

func symbolToCLI(s morpheus.Symbol) CLISymbol {
	return CLISymbol{
		Name:      s.Name,
		Kind:      string(s.Kind),
		Scope:     s.Scope,
		Container: s.Container,
		Params:    s.Params,
		File:      displayPath(s.URI),
		StartLine: int(s.Range.Start.Row),
		StartCol:  int(s.Range.Start.Column),
		EndLine:   int(s.Range.End.Row),
		EndCol:    int(s.Range.End.Column),
	}
}

package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Report syntax errors in scripts",
	Long:  "Parses each script, or every script under each directory, and reports syntax errors. Exits non-zero when any are found.",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}
	var files []string
	for _, arg := range args {
		found, err := scriptFiles(arg)
		if err != nil {
			return outputError("check", err)
		}
		files = append(files, found...)
	}
	sort.Strings(files)

	engine, err := newEngine(context.Background())
	if err != nil {
		return outputError("check", err)
	}
	defer engine.Close()

	out := []CLIDiagnostic{}
	for _, file := range files {
		uri, err := openFile(engine, file)
		if err != nil {
			return outputError("check", err)
		}
		for _, d := range engine.Diagnostics(uri) {
			out = append(out, CLIDiagnostic{
				File:    file,
				Line:    int(d.Range.Start.Line),
				Col:     int(d.Range.Start.Character),
				Message: d.Message,
			})
		}
		engine.CloseDocument(uri)
	}

	n := len(out)
	if err := outputResult(CLIResult{Command: "check", Results: out, TotalCount: &n}); err != nil {
		return err
	}
	if n > 0 {
		errorHandled = true
		return fmt.Errorf("%d syntax error(s) in %d file(s)", n, len(files))
	}
	return nil
}

// scriptFiles returns path itself when it is a file, or every script under
// it when it is a directory.
func scriptFiles(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("not found: %s", abs)
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}

	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.ContainsFunc(cfg.Index.Extensions, func(ext string) bool {
			return strings.EqualFold(filepath.Ext(p), ext)
		}) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

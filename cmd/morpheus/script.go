package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/morpheus/internal/runtime"
	"github.com/jward/morpheus/internal/store"
	"github.com/jward/morpheus/scripts"
)

var flagScriptDB string

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor>",
	Short: "Run a Risor script against the workspace index",
	Long: `Loads the workspace and runs a Risor script with host functions over the
index (definitions, references, stats, ...) and the parser (parse, query, ...).
A name that is not a file on disk runs the bundled script of that name.
With --db the snapshot database is also available (db_symbols, db_query, ...).`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().StringVar(&flagRoot, "root", "", "workspace root (default: repo root of cwd)")
	scriptCmd.Flags().StringVar(&flagScriptDB, "db", "", "snapshot database to expose to the script")
}

func runScript(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return outputError("script", err)
	}
	ctx := context.Background()
	engine, _, err := loadWorkspace(ctx, root)
	if err != nil {
		return outputError("script", err)
	}
	defer engine.Close()

	opts := []runtime.RuntimeOption{runtime.WithParser(engine)}
	if flagScriptDB != "" {
		s, err := store.NewStore(resolveDBPath(flagScriptDB, root))
		if err != nil {
			return outputError("script", err)
		}
		defer s.Close()
		opts = append(opts, runtime.WithStore(s))
	}

	path := args[0]
	scriptsDir := ""
	if _, err := os.Stat(path); err == nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			return outputError("script", err)
		}
		scriptsDir, path = filepath.Dir(abs), filepath.Base(abs)
	} else {
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
	}

	rt := runtime.NewRuntime(engine, scriptsDir, opts...)
	defer rt.Close()

	value, err := rt.RunScript(ctx, path, nil)
	if err != nil {
		return outputError("script", err)
	}
	return outputResult(CLIResult{Command: "script", Results: value})
}

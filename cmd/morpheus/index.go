package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/morpheus/internal/store"
)

var (
	flagIndexDB    string
	flagIndexForce bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a script tree and export a snapshot database",
	Long:  "Loads every script under path, then writes the definitions and references to a SQLite snapshot. Unchanged files are skipped on re-export.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexDB, "db", "", "snapshot path (default: .morpheus/index.db relative to repo root)")
	indexCmd.Flags().BoolVar(&flagIndexForce, "force", false, "delete the snapshot and export from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(flagIndexDB, repoRoot)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("index", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}
	if flagIndexForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError("index", fmt.Errorf("removing snapshot for --force: %w", err))
		}
	}

	ctx := context.Background()
	engine, loaded, err := loadWorkspace(ctx, targetDir)
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()
	loadDuration := time.Since(start)

	s, err := store.NewStore(dbPath)
	if err != nil {
		return outputError("index", err)
	}
	defer s.Close()

	exported, err := engine.Export(s)
	if err != nil {
		return outputError("index", err)
	}
	files, symbols, refs, err := s.Counts()
	if err != nil {
		return outputError("index", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s (load: %s)\n",
		targetDir,
		time.Since(start).Round(time.Millisecond),
		loadDuration.Round(time.Millisecond),
	)

	return outputResult(CLIResult{
		Command: "index",
		Results: CLIIndexSummary{
			Root:       targetDir,
			Loaded:     loaded,
			Database:   dbPath,
			Exported:   exported,
			Files:      files,
			Symbols:    symbols,
			References: refs,
		},
	})
}

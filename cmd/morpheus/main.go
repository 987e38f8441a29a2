package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	// Must include a backend implementation for commonlog
	_ "github.com/tliron/commonlog/simple"

	"github.com/jward/morpheus/internal/config"
)

var (
	flagFormat  string
	flagConfig  string
	flagVerbose int
)

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg = config.DefaultConfig()

// stdout is where results go; tests swap it.
var stdout io.Writer = os.Stdout

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "morpheus",
	Short:         "Navigation and analysis for Morpheus .scr scripts",
	Long:          "Morpheus indexes game scripts with an error-tolerant parser and answers definition, reference and rename queries across a workspace.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setup()
	},
	// No Run, so it prints help.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|yaml")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .morpheus.yaml in the repo root)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the configuration for the current repo and configures logging.
// Logs always go to stderr or the configured file so stdout stays clean for
// results and the language server.
func setup() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	loaded, err := config.Load(findRepoRoot(cwd), flagConfig)
	if err != nil {
		return err
	}
	cfg = loaded

	verbosity := min(cfg.Log.Verbosity+flagVerbose, 5)
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(verbosity, path)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to work on.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the snapshot path from a --db flag value or the
// default under repoRoot.
func resolveDBPath(flag, repoRoot string) string {
	if flag != "" {
		if filepath.IsAbs(flag) {
			return flag
		}
		return filepath.Join(repoRoot, flag)
	}
	return filepath.Join(repoRoot, ".morpheus", "index.db")
}

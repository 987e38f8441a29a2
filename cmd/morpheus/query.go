package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/morpheus"
	"github.com/jward/morpheus/internal/store"
)

var (
	flagRoot               string
	flagKind               string
	flagSymbolsDB          string
	flagIncludeDeclaration bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a script workspace",
	Long:  "Run navigation queries against a script tree. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "workspace root (default: repo root of the file or cwd)")

	referencesCmd.Flags().BoolVar(&flagIncludeDeclaration, "include-declaration", true, "include definition sites")
	symbolsCmd.Flags().StringVar(&flagKind, "kind", "", "filter by kind: thread|label|variable")
	symbolsCmd.Flags().StringVar(&flagSymbolsDB, "db", "", "read from a snapshot database instead of the scripts")

	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(statsCmd)
	queryCmd.AddCommand(threadsCmd)
}

// --- Output ---

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	switch flagFormat {
	case "text":
		return outputResultText(result)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In text mode it goes to stderr; otherwise it is
// written to stdout as a CLIResult envelope.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	_ = outputResult(CLIResult{
		Command: command,
		Error:   err.Error(),
	})
	return err
}

func workspaceRoot() (string, error) {
	if flagRoot != "" {
		return resolveTargetDir([]string{flagRoot})
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// --- Position commands ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	engine, uri, pos, err := positionArgs(context.Background(), flagRoot, args)
	if err != nil {
		return outputError("definition", err)
	}
	defer engine.Close()

	locs := engine.ProvideDefinition(uri, pos)
	out := make([]CLILocation, len(locs))
	for i, loc := range locs {
		out[i] = locationToCLI(loc)
	}
	n := len(out)
	return outputResult(CLIResult{Command: "definition", Results: out, TotalCount: &n})
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "Find every reference to the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runReferences,
}

func runReferences(cmd *cobra.Command, args []string) error {
	engine, uri, pos, err := positionArgs(context.Background(), flagRoot, args)
	if err != nil {
		return outputError("references", err)
	}
	defer engine.Close()

	locs := engine.ProvideReferences(uri, pos, flagIncludeDeclaration)
	out := make([]CLILocation, len(locs))
	for i, loc := range locs {
		out[i] = locationToCLI(loc)
	}
	n := len(out)
	return outputResult(CLIResult{Command: "references", Results: out, TotalCount: &n})
}

// --- Workspace commands ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols [file]",
	Short: "List definitions, for one file or the whole workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	var file string
	if len(args) > 0 {
		abs, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("symbols", err)
		}
		file = abs
	}

	var (
		out []CLISymbol
		err error
	)
	if flagSymbolsDB != "" {
		out, err = snapshotSymbols(file)
	} else {
		out, err = workspaceSymbols(file)
	}
	if err != nil {
		return outputError("symbols", err)
	}
	n := len(out)
	return outputResult(CLIResult{Command: "symbols", Results: out, TotalCount: &n})
}

func workspaceSymbols(file string) ([]CLISymbol, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	engine, _, err := loadWorkspace(context.Background(), root)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	uris := engine.IndexedDocuments()
	if file != "" {
		uri, err := openFile(engine, file)
		if err != nil {
			return nil, err
		}
		uris = []string{uri}
	}
	sort.Strings(uris)

	out := []CLISymbol{}
	for _, uri := range uris {
		for _, s := range engine.IndexedSymbols(uri) {
			if flagKind == "" || string(s.Kind) == flagKind {
				out = append(out, symbolToCLI(s))
			}
		}
	}
	return out, nil
}

func snapshotSymbols(file string) ([]CLISymbol, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(flagSymbolsDB, root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot not found: %s (run 'morpheus index' first)", dbPath)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var files []*store.File
	if file != "" {
		uri, err := morpheus.URIFromPath(file)
		if err != nil {
			return nil, err
		}
		f, err := s.FileByURI(uri)
		if err != nil {
			return nil, err
		}
		if f != nil {
			files = append(files, f)
		}
	} else if files, err = s.Files(); err != nil {
		return nil, err
	}

	out := []CLISymbol{}
	for _, f := range files {
		syms, err := s.SymbolsByFile(f.ID)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			if flagKind != "" && sym.Kind != flagKind {
				continue
			}
			out = append(out, CLISymbol{
				Name:      sym.Name,
				Kind:      sym.Kind,
				Scope:     sym.Scope,
				Container: sym.Container,
				Params:    sym.Params,
				File:      displayPath(f.URI),
				StartLine: sym.StartLine,
				StartCol:  sym.StartCol,
				EndLine:   sym.EndLine,
				EndCol:    sym.EndCol,
			})
		}
	}
	return out, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Count definitions and references of a name",
	Long:  "Variables are named with their scope, e.g. level.score. Unknown names get spelling suggestions.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return outputError("stats", err)
	}
	engine, _, err := loadWorkspace(context.Background(), root)
	if err != nil {
		return outputError("stats", err)
	}
	defer engine.Close()

	st := engine.GetSymbolStats(args[0])
	out := CLIStats{
		Name:         st.Name,
		Definitions:  st.Definitions,
		References:   st.References,
		Declarations: st.Declarations,
		Files:        make([]string, 0, len(st.Files)),
	}
	for _, f := range st.Files {
		out.Files = append(out.Files, displayPath(f))
	}
	if st.Definitions == 0 && cfg.Query.Suggestions > 0 {
		out.Suggestions = engine.Suggest(args[0], cfg.Query.Suggestions)
	}
	return outputResult(CLIResult{Command: "stats", Results: out})
}

var threadsCmd = &cobra.Command{
	Use:   "threads <file>",
	Short: "List the threads of a script with their parameters",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreads,
}

func runThreads(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("threads", err)
	}
	engine, err := newEngine(context.Background())
	if err != nil {
		return outputError("threads", err)
	}
	defer engine.Close()

	uri, err := openFile(engine, file)
	if err != nil {
		return outputError("threads", err)
	}
	out := []CLIThread{}
	for _, th := range engine.GetThreads(uri) {
		out = append(out, CLIThread{
			Name:   th.Name,
			Params: th.Params,
			File:   filepath.Clean(file),
			Line:   int(th.Range.Start.Row),
		})
	}
	n := len(out)
	return outputResult(CLIResult{Command: "threads", Results: out, TotalCount: &n})
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/morpheus"
	"github.com/jward/morpheus/internal/lsp"
)

var (
	flagNoLoad bool
	flagDebug  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server on stdio",
	Long:  "Serves definition, references and rename over the language server protocol on stdin/stdout. Logs go to stderr or the configured log file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := morpheus.New(cfg.EngineOptions()...)
		defer engine.Close()
		return lsp.New(engine,
			lsp.WithWorkspaceLoad(!flagNoLoad),
			lsp.WithDebug(flagDebug),
		).RunStdio()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagNoLoad, "no-load", false, "do not index the client's workspace folder on initialize")
	serveCmd.Flags().BoolVar(&flagDebug, "debug", false, "log protocol messages")
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/quasr/internal/config"
	"github.com/AngelCh415/quasr/internal/dsl"
	"github.com/AngelCh415/quasr/internal/models"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type globals struct {
	cfg      config.Config
	log      *slog.Logger
	logLevel string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "quasr",
		Short:         "Marketing analytics query compiler and server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.cfg = config.FromEnv()
			if cmd.Flags().Changed("log-level") {
				g.cfg.LogLevel = config.ParseLevel(g.logLevel)
			}
			// stdout carries query results, so logs go to stderr.
			g.log = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: g.cfg.LogLevel}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newSQLCmd(g))
	root.AddCommand(newRunCmd(g))
	root.AddCommand(newFetchCmd(g))
	return root
}

// readRequest loads a DSL document from path ("-" reads stdin). YAML files,
// by extension, are converted to the JSON wire form.
func readRequest(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var req dsl.Request
		if err := yaml.Unmarshal(b, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", dsl.ErrInvalidQuery, err)
		}
		return json.Marshal(req)
	}
	return b, nil
}

func loadQuery(cmd *cobra.Command, path string) (models.Query, error) {
	b, err := readRequest(cmd, path)
	if err != nil {
		return models.Query{}, err
	}
	return dsl.ParseBytes(b)
}

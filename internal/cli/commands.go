package cli

import (
	"bufio"
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AngelCh415/quasr/internal/client"
	"github.com/AngelCh415/quasr/internal/export"
	"github.com/AngelCh415/quasr/internal/sqlgen"
)

func newServeCmd(g *globals) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				g.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, app, err := NewServer(ctx, g.cfg, g.log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
			if err != nil {
				return err
			}
			defer app.Close()
			return Serve(ctx, srv, g.log, 10*time.Second)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}

func newSQLCmd(g *globals) *cobra.Command {
	var (
		file    string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the SQL statement compiled from a query file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := loadQuery(cmd, file)
			if err != nil {
				return err
			}
			stmt := sqlgen.NewBuilder(sqlgen.WithPlatformTag(g.cfg.PlatformTag)).Build(q)
			out := cmd.OutOrStdout()
			if !explain {
				_, err = fmt.Fprintln(out, stmt)
				return err
			}
			for _, p := range sqlgen.ParseFilters(stmt) {
				if _, err := fmt.Fprintln(out, p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Query file (.json, .yaml or - for stdin)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print one WHERE predicate per line")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRunCmd(g *globals) *cobra.Command {
	var (
		file   string
		driver string
		dsn    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a query file against the configured database and print CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := loadQuery(cmd, file)
			if err != nil {
				return err
			}
			cfg := g.cfg
			if driver != "" {
				cfg.DBDriver = driver
			}
			if dsn != "" {
				cfg.DatabaseURL = dsn
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
			defer cancel()
			app, err := OpenApp(ctx, cfg, g.log)
			if err != nil {
				return err
			}
			defer app.Close()

			rows, err := app.Service.Run(ctx, q)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			if err := export.WriteCSV(w, rows); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Query file (.json, .yaml or - for stdin)")
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver (overrides DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN (overrides DATABASE_URL)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFetchCmd(g *globals) *cobra.Command {
	var (
		file    string
		host    string
		retries int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Send a query file to a remote server and print the CSV response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			c := client.New(host, g.cfg.HTTPTimeout, client.WithRetries(retries, 200*time.Millisecond))
			out, err := c.Query(cmd.Context(), body)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Query file (.json, .yaml or - for stdin)")
	cmd.Flags().StringVar(&host, "host", "http://localhost:8080", "Server base URL")
	cmd.Flags().IntVar(&retries, "retries", 2, "Retries on transport errors and 5xx responses")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

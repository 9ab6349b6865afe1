package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/packhouse/packhouse/internal/server"
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the package index over HTTP",
	Long: `Serve scans every configured repository, then exposes the index over an
HTTP API with a websocket event stream. Repository roots are watched for
changes and re-indexed live unless --no-watch is given.

Endpoints:
  GET  /api/repositories
  POST /api/repositories/{repo}/scan
  GET  /api/repositories/{repo}/packages
  GET  /api/repositories/{repo}/invalid
  GET  /api/repositories/{repo}/packages/{identifier}
  GET  /api/repositories/{repo}/packages/{identifier}/archive
  GET  /ws`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable live re-indexing on filesystem changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	m, err := buildManager(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.ScanAll(ctx); err != nil {
		return err
	}

	if !serveNoWatch {
		stopWatch, err := watchRepositories(ctx, cfg, m, log)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	srv := server.New(m, cfg.Server.Host, cfg.Server.Port, log)
	return srv.Start(ctx)
}

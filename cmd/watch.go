package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/packhouse/packhouse/internal/config"
	"github.com/packhouse/packhouse/internal/manager"
	"github.com/packhouse/packhouse/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Scan repositories and re-index on filesystem changes",
	Long: `Watch performs an initial scan of every configured repository, then keeps
the index current: a change inside an indexed package re-walks just that
package, any other change triggers a re-scan of the owning repository.
Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
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

	stopWatch, err := watchRepositories(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer stopWatch()

	log.Info("watching repositories", "count", len(m.Repositories()))
	<-ctx.Done()
	return nil
}

// watchRepositories starts a debounced watcher over every repository root,
// routing each change batch to the owning repositories. The returned
// function stops the watcher.
func watchRepositories(ctx context.Context, cfg *config.Config, m *manager.Manager, log *slog.Logger) (func(), error) {
	w, err := watcher.New(cfg.Watch.Debounce, log)
	if err != nil {
		return nil, err
	}

	w.AddHandler(func(events []watcher.Event) {
		for _, repo := range m.Repositories() {
			root := repo.Root()
			for _, ev := range events {
				if !strings.HasPrefix(ev.Path, root) {
					continue
				}
				if err := repo.HandleChange(ctx, ev.Path); err != nil {
					log.Warn("re-index failed", "repository", repo.Name(), "error", err)
				}
			}
		}
	})

	for _, repo := range m.Repositories() {
		if err := w.AddRecursive(repo.Root()); err != nil {
			w.Close()
			return nil, err
		}
	}
	w.Start(ctx)
	return func() { _ = w.Close() }, nil
}

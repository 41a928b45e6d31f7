package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/cstudio/internal/buildinfo"
	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/server"
	"github.com/aidanlsb/cstudio/internal/session"
	"github.com/aidanlsb/cstudio/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the index over a local HTTP API",
	Long: `Starts the HTTP API used by editors and tools: search, dependencies,
analytics, validation, rebuilds, a websocket stream of index updates, health
probes, and Prometheus metrics.

The content directory is watched so the index stays current; pass
--no-watch to only rebuild on request.

Examples:
  cstudio serve
  cstudio serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pc := getProjectConfig()
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = pc.Server.Addr
		}
		noWatch, _ := cmd.Flags().GetBool("no-watch")

		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: buildinfo.Get().Version})
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()

		p, err := openProject(ctx, openOptions{metrics: observe.DefaultMetrics()})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		p.saveIfChanged()

		srv, err := server.New(server.Config{
			Session:   p.session,
			Query:     p.queryOptions(),
			Addr:      addr,
			RateLimit: pc.Server.RateLimit,
			Burst:     pc.Server.Burst,
			Logger:    p.logger,
		})
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if !jsonOutput {
			printLine(ui.Infof("Serving %s on http://%s", ui.FilePath(getProjectPath()), addr))
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		if noWatch {
			g.Go(func() error { return saveOnUpdate(ctx, p) })
		} else {
			g.Go(func() error {
				return runWatch(ctx, p, func(session.Update) {
					if err := p.save(); err != nil {
						p.logger.Warn("index snapshot not saved", slog.Any("error", err))
					}
				})
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return handleError(ErrInternal, err, "")
		}
		return nil
	},
}

// saveOnUpdate keeps the snapshot current when rebuilds only come through
// the API.
func saveOnUpdate(ctx context.Context, p *project) error {
	updates, unsubscribe := p.session.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			if err := p.save(); err != nil {
				p.logger.Warn("index snapshot not saved", slog.Any("error", err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr in studio.yaml)")
	serveCmd.Flags().Bool("no-watch", false, "Do not watch the content directory")
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/cstudio/internal/session"
	"github.com/aidanlsb/cstudio/internal/ui"
	"github.com/aidanlsb/cstudio/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index up to date as files change",
	Long: `Watches the content directory and re-indexes documents as they are saved,
created, or deleted. Schema file changes re-validate their type. Every
rebuild is printed (one JSON object per line with --json) and the saved
index is kept current.

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := openProject(ctx, openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		p.saveIfChanged()

		if !jsonOutput {
			stats := p.session.Index().Stats()
			printLine(ui.Infof("Watching %s %s", ui.FilePath(p.content.Root()),
				ui.Hint(fmt.Sprintf("(%d entities, %d references)", stats.Entities, stats.References))))
			printLine(ui.Hint("Press Ctrl+C to stop"))
		}

		err = runWatch(ctx, p, func(u session.Update) {
			if err := p.save(); err != nil {
				p.logger.Warn("index snapshot not saved", slog.Any("error", err))
			}
			printUpdate(u)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return handleError(ErrInternal, err, "")
		}
		return nil
	},
}

// runWatch feeds filesystem events into the session until ctx is done,
// calling onUpdate after every swap.
func runWatch(ctx context.Context, p *project, onUpdate func(session.Update)) error {
	w, err := watcher.New(watcher.Config{
		Content:  p.content,
		Debounce: p.cfg.DebounceDuration(),
		Logger:   p.logger,
	})
	if err != nil {
		return err
	}
	updates, unsubscribe := p.session.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Start(ctx) })
	g.Go(func() error {
		err := p.session.Run(ctx, w.Events())
		if errors.Is(err, session.ErrClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				onUpdate(u)
			}
		}
	})
	return g.Wait()
}

func printUpdate(u session.Update) {
	if jsonOutput {
		outputLine(u)
		return
	}
	what := string(u.Kind)
	if len(u.Paths) > 0 {
		what += " " + strings.Join(u.Paths, ", ")
	}
	line := fmt.Sprintf("%s %s %s", u.At.Local().Format("15:04:05"), what,
		ui.Hint(fmt.Sprintf("(%d entities, %d references)", u.Entities, u.References)))
	if u.Failed > 0 {
		printLine(ui.Warning(line + " " + ui.Count(u.Failed, "parse failure", "parse failures")))
		return
	}
	printLine(ui.Check(line))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

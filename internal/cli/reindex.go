package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/store"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// reindexResult is the JSON payload of `cstudio reindex`.
type reindexResult struct {
	Mode       string              `json:"mode"`
	BuildID    string              `json:"build_id"`
	Entities   int                 `json:"entities"`
	References int                 `json:"references"`
	Documents  int                 `json:"documents"`
	Refreshed  []string            `json:"refreshed,omitempty"`
	Failed     []*model.ParseError `json:"failed"`
	DryRun     bool                `json:"dry_run,omitempty"`
	Saved      bool                `json:"saved"`
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the reference index",
	Long: `Parses every content document and rebuilds the reference index.

By default, performs an incremental reindex: the saved index is loaded and
only documents that are new, modified, or deleted since it was saved are
re-read. Use --full to ignore the saved index and re-read everything.

Examples:
  # Incremental reindex (default)
  cstudio reindex

  # Full reindex
  cstudio reindex --full

  # See which documents are stale without saving anything
  cstudio reindex --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		full, _ := cmd.Flags().GetBool("full")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var spinner *ui.Spinner
		if !jsonOutput {
			if full {
				printf("Full reindexing project: %s\n", ui.FilePath(getProjectPath()))
			} else {
				printf("Reindexing project: %s\n", ui.FilePath(getProjectPath()))
			}
			if !dryRun {
				spinner = ui.NewSpinner("Indexing documents")
				spinner.Start()
			}
		}

		start := time.Now()
		p, err := openProject(ctx, openOptions{full: full})
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()

		idx := p.session.Index()
		stats := idx.Stats()
		result := reindexResult{
			Mode:       "incremental",
			BuildID:    p.session.BuildID(),
			Entities:   stats.Entities,
			References: stats.References,
			Documents:  stats.Documents,
			Refreshed:  p.refreshed,
			Failed:     idx.Failed(),
			DryRun:     dryRun,
		}
		if p.report != nil {
			result.Mode = "full"
		}

		var warnings []Warning
		if !dryRun {
			// A full build always rewrites the snapshot; an incremental one
			// only when something was stale.
			if err := p.save(); err != nil {
				if errors.Is(err, store.ErrLocked) {
					return handleError(ErrIndexLocked, err, "Another cstudio process is writing the index; try again")
				}
				return handleError(ErrDatabaseError, err, "")
			}
			result.Saved = true
			if p.changed() {
				p.logAudit(p.audit.LogReindex(result.Mode, result.Entities, len(result.Failed)))
			}
		}
		for _, pe := range result.Failed {
			warnings = append(warnings, Warning{Code: WarnParseFailed, Message: pe.Error(), Ref: pe.Path})
		}
		dupWarnings := duplicateWarnings(idx)
		warnings = append(warnings, dupWarnings...)

		elapsed := time.Since(start)
		if jsonOutput {
			outputSuccessWithWarnings(result, warnings, &Meta{Count: result.Entities, QueryTimeMs: elapsed.Milliseconds()})
			return nil
		}

		if dryRun {
			if len(result.Refreshed) == 0 && result.Mode == "incremental" {
				printLine(ui.Check("Index is up to date"))
			}
			for _, rel := range result.Refreshed {
				printf("  Would reindex: %s\n", rel)
			}
			if result.Mode == "full" {
				printf("  Would index %d documents\n", result.Documents)
			}
			return nil
		}

		if result.Mode == "incremental" && len(result.Refreshed) > 0 {
			printLine(ui.Infof("Re-read %d changed documents", len(result.Refreshed)))
		}
		for _, pe := range result.Failed {
			printLine(ui.Warning(pe.Error()))
		}
		for _, w := range dupWarnings {
			printLine(ui.Warning(w.Message))
		}
		printLine(ui.Successf("Indexed %d entities and %d references from %d documents %s",
			result.Entities, result.References, result.Documents,
			ui.Hint("("+elapsed.Round(time.Millisecond).String()+")")))
		return nil
	},
}

func init() {
	reindexCmd.Flags().Bool("full", false, "Ignore the saved index and re-read every document")
	reindexCmd.Flags().Bool("dry-run", false, "Report what would be reindexed without saving")
	rootCmd.AddCommand(reindexCmd)
}

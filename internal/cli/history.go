package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/audit"
	"github.com/aidanlsb/cstudio/internal/config"
	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/dates"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// historyResult is the JSON payload of `cstudio history`.
type historyResult struct {
	Enabled bool          `json:"enabled"`
	Entries []audit.Entry `json:"entries"`
}

var historyCmd = &cobra.Command{
	Use:   "history [<type> <id>]",
	Short: "Show the audit log of created, deleted and reindexed content",
	Long: `Lists entries from .cstudio/audit.log, oldest first. Pass an entity to
see only its entries.

Examples:
  cstudio history
  cstudio history rooms/cellar
  cstudio history --since 3d --limit 20`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 0 {
			return handleErrorMsg(ErrInvalidInput, "--limit must not be negative", "")
		}

		var from time.Time
		if since != "" {
			var err error
			from, err = dates.ParseSince(since, time.Now())
			if err != nil {
				return handleError(ErrInvalidInput, err, "")
			}
		}

		pc := getProjectConfig()
		logger := audit.New(filepath.Join(getProjectPath(), content.StateDir), pc.IsAuditLogEnabled())

		var (
			entries []audit.Entry
			err     error
		)
		if len(args) > 0 {
			var key model.EntityKey
			key, err = resolveEntityArgs(args)
			if err != nil {
				return handleError(ErrInvalidInput, err, knownTypesHint())
			}
			entries, err = logger.ReadForEntity(key)
		} else {
			entries, err = logger.ReadSince(from)
		}
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		entries = filterEntries(entries, from, limit)

		res := historyResult{Enabled: pc.IsAuditLogEnabled(), Entries: entries}
		if jsonOutput {
			outputSuccess(res, &Meta{Count: len(entries)})
			return nil
		}

		if !res.Enabled {
			printLine(ui.Info("The audit log is disabled (audit_log: false in " + config.ProjectFile + ")"))
			return nil
		}
		if len(entries) == 0 {
			printLine(ui.Hint("No audit entries"))
			return nil
		}
		tbl := ui.NewTable(3)
		for _, e := range entries {
			tbl.AddRow(ui.Hint(e.Timestamp.Local().Format("2006-01-02 15:04:05")), e.Operation, describeEntry(e))
		}
		printLine(tbl.String())
		return nil
	},
}

// filterEntries drops entries before from and keeps the newest limit
// entries (0 keeps all).
func filterEntries(entries []audit.Entry, from time.Time, limit int) []audit.Entry {
	out := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(from) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func describeEntry(e audit.Entry) string {
	if e.Operation == audit.OpReindex {
		return fmt.Sprintf("%v build, %v entities, %v failed", e.Extra["mode"], e.Extra["entities"], e.Extra["failed"])
	}
	s := ui.EntityKey(e.EntityType, e.EntityID) + " " + ui.FilePath(e.Path)
	if broken, ok := e.Extra["broken"].([]interface{}); ok && len(broken) > 0 {
		s += " " + ui.Warningf("broke %d references", len(broken))
	}
	return s
}

func init() {
	historyCmd.Flags().String("since", "", "Only entries since: today, yesterday, a duration (6h, 3d) or YYYY-MM-DD")
	historyCmd.Flags().IntP("limit", "n", 0, "Show only the newest N entries (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

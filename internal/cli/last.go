package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/lastquery"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/ui"
)

var lastCmd = &cobra.Command{
	Use:   "last [numbers]",
	Short: "Show the results of the last search",
	Long: `Prints the numbered results of the most recent 'cstudio search'. Pass
numbers to pick some of them: "2", "1,3" or "2-4".

Result numbers also work wherever an entity is expected:
  cstudio search goblin
  cstudio deps 2`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lq, err := lastquery.Read(stateDir())
		if err != nil {
			if errors.Is(err, lastquery.ErrNoLastQuery) {
				return handleError(ErrInvalidInput, err, "Run 'cstudio search <text>' first")
			}
			return handleError(ErrFileReadError, err, "")
		}

		entries := lq.Results
		if len(args) > 0 {
			nums, err := lastquery.ParseNumbers(strings.Join(args, ","))
			if err != nil {
				return handleError(ErrInvalidInput, err, "")
			}
			if entries, err = lq.GetByNumbers(nums); err != nil {
				return handleError(ErrInvalidInput, err, "")
			}
		}
		if entries == nil {
			entries = []lastquery.ResultEntry{}
		}

		if jsonOutput {
			outputSuccess(map[string]interface{}{
				"command":   lq.Command,
				"query":     lq.Query,
				"timestamp": lq.Timestamp,
				"results":   entries,
			}, &Meta{Count: len(entries)})
			return nil
		}

		printLine(ui.Header(fmt.Sprintf("Last %s: %s", lq.Command, lq.Query)) + " " +
			ui.Hint(lq.Timestamp.Local().Format("2006-01-02 15:04")))
		tbl := ui.NewTable(3)
		for _, e := range entries {
			tbl.AddRow(ui.FormatRowNum(e.Num, len(lq.Results)), ui.EntityKey(e.EntityType, e.EntityID), ui.FilePath(e.Path))
		}
		printLine(tbl.String())
		return nil
	},
}

func stateDir() string {
	return filepath.Join(getProjectPath(), content.StateDir)
}

// resolveEntityArgs is parseEntityArgs plus result numbers from the last
// search: "cstudio deps 2".
func resolveEntityArgs(args []string) (model.EntityKey, error) {
	if len(args) != 1 || !lastquery.IsNumberRef(args[0]) {
		return parseEntityArgs(args)
	}
	nums, err := lastquery.ParseNumbers(args[0])
	if err != nil {
		return model.EntityKey{}, err
	}
	lq, err := lastquery.Read(stateDir())
	if err != nil {
		return model.EntityKey{}, err
	}
	entries, err := lq.GetByNumbers(nums)
	if err != nil {
		return model.EntityKey{}, err
	}
	return entries[0].Key(), nil
}

// saveLastQuery records search results for 'cstudio last'. Failure only
// costs the numbering, so it is logged.
func saveLastQuery(p *project, text string, results []query.SearchResult) {
	lq := &lastquery.LastQuery{Command: "search", Query: text, Results: make([]lastquery.ResultEntry, len(results))}
	for i, r := range results {
		lq.Results[i] = lastquery.ResultEntry{EntityType: r.EntityType, EntityID: r.EntityID, Path: r.SourcePath}
	}
	if err := lastquery.Write(filepath.Join(p.path, content.StateDir), lq); err != nil {
		p.logger.Warn("last query not saved", slog.Any("error", err))
	}
}

func init() {
	rootCmd.AddCommand(lastCmd)
}

package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// searchResult is the JSON payload of `cstudio search`.
type searchResult struct {
	Query   string               `json:"query"`
	Results []query.SearchResult `json:"results"`
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find entities by id, name, or any field value",
	Long: `Ranks entities against the search text. Matching is case-insensitive:
an exact id scores highest, then an exact match on any other field, then
an id that starts with the text, then any field containing it.

Examples:
  cstudio search tavern
  cstudio search goblin --type npcs --type npc_spawns
  cstudio search sword --limit 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		typeNames, _ := cmd.Flags().GetStringSlice("type")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 0 {
			return handleErrorMsg(ErrInvalidInput, "--limit must not be negative", "")
		}
		types, err := parseTypes(typeNames)
		if err != nil {
			return handleError(ErrTypeNotFound, err, knownTypesHint())
		}

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		warnings := p.saveIfChanged()

		start := time.Now()
		results, err := p.engine().Search(text, query.SearchOptions{Types: types, Limit: limit})
		if err != nil {
			if errors.Is(err, query.ErrEmptyQuery) {
				return handleError(ErrInvalidInput, err, "")
			}
			return handleError(ErrInternal, err, "")
		}
		elapsed := time.Since(start)
		saveLastQuery(p, text, results)

		if jsonOutput {
			outputSuccessWithWarnings(searchResult{Query: text, Results: results}, warnings,
				&Meta{Count: len(results), QueryTimeMs: elapsed.Milliseconds()})
			return nil
		}

		if len(results) == 0 {
			printLine(ui.Info(fmt.Sprintf("No entities match %q", text)))
			return nil
		}
		printLine(ui.Header(fmt.Sprintf("Search: %s", text)) + " " + ui.Hint(ui.Count(len(results), "match", "matches")))
		tbl := ui.NewResultsTable(ui.NewDisplayContext(), ui.SearchLayout)
		for i, r := range results {
			tbl.AddRow(ui.ResultRow{Num: i + 1, Cells: []string{
				ui.EntityKey(r.EntityType, r.EntityID) + " " + ui.Hint(r.DisplayName),
				fmt.Sprintf("%s %.0f", r.MatchedField, r.Score),
				r.SourcePath,
			}})
		}
		printLine(tbl.Render())
		return nil
	},
}

// parseTypes validates --type values. Unknown names are rejected here; the
// query engine itself treats them as matching nothing.
func parseTypes(names []string) ([]model.ContentType, error) {
	var types []model.ContentType
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, ok := model.ParseContentType(name)
		if !ok {
			return nil, fmt.Errorf("unknown content type %q", name)
		}
		types = append(types, t)
	}
	return types, nil
}

func knownTypesHint() string {
	names := make([]string, 0, len(model.AllTypes()))
	for _, t := range model.AllTypes() {
		names = append(names, string(t))
	}
	return "Known types: " + strings.Join(names, ", ")
}

func init() {
	searchCmd.Flags().StringSliceP("type", "t", nil, "Restrict results to a content type (repeatable)")
	searchCmd.Flags().IntP("limit", "n", 0, "Maximum number of results (0 = all)")
	rootCmd.AddCommand(searchCmd)
}

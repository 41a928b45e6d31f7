package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// analyticsResult is the JSON payload of `cstudio analytics`. The orphan
// count covers every orphan; the list omits leaf types unless --all.
type analyticsResult struct {
	*query.AnalyticsResult
	HiddenOrphans int `json:"hidden_orphan_count,omitempty"`
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Report broken references, orphans, and the most referenced entities",
	Long: `Summarises the health of the whole reference graph.

Orphans of leaf types (leaf_types in studio.yaml, default: areas) are
expected and hidden from the list unless --all is given.

Examples:
  cstudio analytics
  cstudio analytics --all --top 20
  cstudio analytics --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		showAll, _ := cmd.Flags().GetBool("all")
		top, _ := cmd.Flags().GetInt("top")
		if top < 0 {
			return handleErrorMsg(ErrInvalidInput, "--top must not be negative", "")
		}

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		warnings := p.saveIfChanged()

		opts := p.queryOptions()
		if top > 0 {
			opts.TopReferenced = top
		}
		start := time.Now()
		res := query.New(p.session.Index(), opts).Analytics()
		out := filterOrphans(res, p.cfg.IsLeafType, showAll)

		if jsonOutput {
			outputSuccessWithWarnings(out, warnings, &Meta{
				Count:       res.TotalEntities,
				QueryTimeMs: time.Since(start).Milliseconds(),
			})
			return nil
		}
		printAnalytics(out)
		return nil
	},
}

// filterOrphans drops leaf-type orphans from the listing unless showAll.
func filterOrphans(res *query.AnalyticsResult, isLeaf func(string) bool, showAll bool) analyticsResult {
	out := analyticsResult{AnalyticsResult: res}
	if showAll {
		return out
	}
	kept := make([]query.EntitySummary, 0, len(res.OrphanedEntities))
	for _, o := range res.OrphanedEntities {
		if isLeaf(string(o.EntityType)) {
			out.HiddenOrphans++
			continue
		}
		kept = append(kept, o)
	}
	filtered := *res
	filtered.OrphanedEntities = kept
	out.AnalyticsResult = &filtered
	return out
}

func printAnalytics(res analyticsResult) {
	printLine(ui.Header("Entities") + " " + ui.Hint(fmt.Sprintf("(%d total)", res.TotalEntities)))
	tbl := ui.NewTable(2)
	for _, t := range model.AllTypes() {
		if n := res.EntitiesByType[string(t)]; n > 0 {
			tbl.AddRow(string(t), fmt.Sprintf("%d", n))
		}
	}
	printLine(tbl.String())

	printLine(ui.Header("Broken references") + " " + ui.Hint(ui.Count(res.BrokenReferenceCount, "reference", "references")))
	if len(res.BrokenReferences) == 0 {
		printLine(ui.Check("No broken references"))
	}
	for _, b := range res.BrokenReferences {
		line := fmt.Sprintf("%s %s -> %s  %s",
			ui.EntityKey(b.SourceType, b.SourceID),
			ui.Bold.Render(b.FieldPath),
			ui.EntityKey(b.TargetType, b.TargetID),
			ui.FilePath(b.SourcePath))
		if b.Suggestion != "" {
			line += " " + ui.Hint(fmt.Sprintf("(did you mean %s?)", b.Suggestion))
		}
		printLine(ui.Error(line))
	}
	printLine()

	printLine(ui.Header("Orphaned entities") + " " + ui.Hint(ui.Count(res.OrphanedEntityCount, "entity", "entities")))
	if len(res.OrphanedEntities) == 0 && res.HiddenOrphans == 0 {
		printLine(ui.Check("Every entity is referenced"))
	}
	for _, o := range res.OrphanedEntities {
		printLine(ui.Warning(fmt.Sprintf("%s  %s", ui.EntityKey(o.EntityType, o.EntityID), ui.FilePath(o.SourcePath))))
	}
	if res.HiddenOrphans > 0 {
		printLine(ui.Hint(fmt.Sprintf("  %d leaf-type orphans hidden (use --all to show)", res.HiddenOrphans)))
	}
	printLine()

	printLine(ui.Header("Most referenced"))
	if len(res.MostReferencedEntities) == 0 {
		printLine(ui.Hint("  none"))
	}
	for i, r := range res.MostReferencedEntities {
		printf("%s  %s %s\n",
			ui.FormatRowNum(i+1, len(res.MostReferencedEntities)),
			ui.EntityKey(r.EntityType, r.EntityID),
			ui.Hint(ui.Count(r.Count, "reference", "references")))
	}
}

func init() {
	analyticsCmd.Flags().Bool("all", false, "Include orphans of leaf types")
	analyticsCmd.Flags().Int("top", 0, "Length of the most-referenced list (default: top_referenced)")
	rootCmd.AddCommand(analyticsCmd)
}

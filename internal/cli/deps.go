package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/ui"
)

var depsCmd = &cobra.Command{
	Use:   "deps <type> <id>",
	Short: "Show what an entity references and what references it",
	Long: `Lists the entity's outgoing references and every entity that references
it. An entity is safe to delete when nothing references it.

The entity may be given as two arguments, as type/id, or as a result
number from the last search.

Examples:
  cstudio deps rooms tavern
  cstudio deps npcs/goblin --json
  cstudio deps 2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := resolveEntityArgs(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, knownTypesHint())
		}

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		warnings := p.saveIfChanged()

		start := time.Now()
		res, err := p.engine().Dependencies(key.Type, key.ID)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}

		if jsonOutput {
			outputSuccessWithWarnings(res, warnings, &Meta{
				Count:       len(res.ReferencedBy),
				QueryTimeMs: time.Since(start).Milliseconds(),
			})
			return nil
		}
		printDependencies(res)
		return nil
	},
}

// parseEntityArgs accepts "<type> <id>" or "<type>/<id>".
func parseEntityArgs(args []string) (model.EntityKey, error) {
	var typeName, id string
	switch len(args) {
	case 1:
		var ok bool
		typeName, id, ok = strings.Cut(args[0], "/")
		if !ok {
			return model.EntityKey{}, fmt.Errorf("expected <type> <id> or <type>/<id>, got %q", args[0])
		}
	case 2:
		typeName, id = args[0], args[1]
	default:
		return model.EntityKey{}, fmt.Errorf("expected <type> <id>")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return model.EntityKey{}, query.ErrEmptyID
	}
	t, ok := model.ParseContentType(strings.TrimSpace(typeName))
	if !ok {
		return model.EntityKey{}, fmt.Errorf("unknown content type %q", typeName)
	}
	return model.EntityKey{Type: t, ID: id}, nil
}

func printDependencies(res *query.DependencyResult) {
	title := ui.EntityKey(res.EntityType, res.EntityID)
	if !res.Exists {
		title += " " + ui.Hint("(does not exist)")
	}
	printLine(title)
	printLine()

	printLine(ui.Header("References") + " " + ui.Hint(ui.Count(len(res.References), "edge", "edges")))
	printReferenceRows(res.References, func(r model.Reference) model.EntityKey { return r.Target() })
	printLine()

	printLine(ui.Header("Referenced by") + " " + ui.Hint(ui.Count(len(res.ReferencedBy), "edge", "edges")))
	printReferenceRows(res.ReferencedBy, func(r model.Reference) model.EntityKey { return r.Source() })
	printLine()

	if res.SafeToDelete {
		printLine(ui.Check("Safe to delete"))
	} else {
		printLine(ui.Warningf("Not safe to delete: %s would break",
			ui.Count(len(res.BlockingReferences), "reference", "references")))
	}
}

func printReferenceRows(refs []model.Reference, other func(model.Reference) model.EntityKey) {
	if len(refs) == 0 {
		printLine(ui.Hint("  none"))
		return
	}
	tbl := ui.NewResultsTable(ui.NewDisplayContext(), ui.ReferenceLayout)
	for i, r := range refs {
		k := other(r)
		tbl.AddRow(ui.ResultRow{Num: i + 1, Cells: []string{
			ui.EntityKey(k.Type, k.ID),
			r.FieldPath,
			r.SourcePath,
		}})
	}
	printLine(tbl.Render())
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

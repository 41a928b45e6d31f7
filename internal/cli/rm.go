package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// rmResult is the JSON payload of `cstudio rm`.
type rmResult struct {
	EntityType model.ContentType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Path       string            `json:"path"`

	// Broken lists the references the deletion left dangling (--force).
	Broken []model.Reference `json:"broken_references"`
}

var rmCmd = &cobra.Command{
	Use:     "rm <type> <id>",
	Aliases: []string{"delete"},
	Short:   "Delete an entity's document if nothing references it",
	Long: `Deletes the document an entity lives in. The deletion is refused when
other entities still reference it; --force deletes anyway and reports the
references it broke.

Documents holding several entities (npc_spawns, item_instances) are never
deleted whole; edit them instead.

Examples:
  cstudio rm items rusty_key
  cstudio rm rooms/cellar --force`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		key, err := resolveEntityArgs(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, knownTypesHint())
		}

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()

		idx := p.session.Index()
		ent, ok := idx.Entity(key)
		if !ok {
			p.saveIfChanged()
			return handleErrorMsg(ErrEntityNotFound, fmt.Sprintf("%s does not exist", key), "Run 'cstudio search "+key.ID+"' to look for it")
		}
		if doc, ok := idx.Document(ent.SourcePath); ok && len(doc.Entities) > 1 {
			p.saveIfChanged()
			return handleErrorMsg(ErrInvalidInput,
				fmt.Sprintf("%s holds %d entities; remove %s from it by hand", ent.SourcePath, len(doc.Entities), key),
				"")
		}

		deps, err := p.engine().Dependencies(key.Type, key.ID)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		if !deps.SafeToDelete && !force {
			p.saveIfChanged()
			return handleErrorWithDetails(ErrDeleteBlocked,
				fmt.Sprintf("%s is referenced by %d other entities", key, len(deps.BlockingReferences)),
				"Remove the references first, or use --force",
				map[string]interface{}{"blocking_references": deps.BlockingReferences})
		}

		if err := p.content.RemoveDocument(ent.SourcePath); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		if _, err := p.session.RebuildOne(ent.SourcePath); err != nil {
			return handleError(ErrIndexError, err, "")
		}
		warnings := p.saveWarnings()

		var broken []model.Reference
		if !deps.SafeToDelete {
			broken = deps.BlockingReferences
		}
		p.logAudit(p.audit.LogDelete(key, ent.SourcePath, broken))

		res := rmResult{EntityType: key.Type, EntityID: key.ID, Path: ent.SourcePath, Broken: []model.Reference{}}
		if !deps.SafeToDelete {
			res.Broken = deps.BlockingReferences
			warnings = append(warnings, Warning{
				Code:    WarnHasReferrers,
				Message: fmt.Sprintf("%d references to %s are now broken", len(deps.BlockingReferences), key),
				Ref:     key.String(),
			})
		}

		if jsonOutput {
			outputSuccessWithWarnings(res, warnings, nil)
			return nil
		}
		printLine(ui.Successf("Deleted %s %s", ui.EntityKey(key.Type, key.ID), ui.FilePath(ent.SourcePath)))
		for _, r := range res.Broken {
			printLine(ui.Warning(fmt.Sprintf("%s %s now dangles", ui.EntityKey(r.SourceType, r.SourceID), r.FieldPath)))
		}
		return nil
	},
}

func init() {
	rmCmd.Flags().Bool("force", false, "Delete even when other entities reference it")
	rootCmd.AddCommand(rmCmd)
}

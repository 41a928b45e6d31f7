package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/slugs"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// newResult is the JSON payload of `cstudio new`.
type newResult struct {
	EntityType model.ContentType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Path       string            `json:"path"`
}

var newCmd = &cobra.Command{
	Use:   "new <type> <id>",
	Short: "Create a document from the type's schema",
	Long: `Writes a new document for one entity. The primary key (and --name) come
first, then every schema field with a default, then required fields with an
empty placeholder.

The file is named after the id: rooms/dark_cellar.yaml. Without an id, one
is derived from --name. Existing files and ids already in the index are
never overwritten.

Examples:
  cstudio new rooms cellar --name "The Cellar"
  cstudio new rooms --name "The Dark Cellar"   # rooms/the_dark_cellar
  cstudio new items rusty_key --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		key, err := parseNewArgs(args, name)
		if err != nil {
			return handleError(ErrInvalidInput, err, knownTypesHint())
		}
		pk, _ := extract.PrimaryKey(key.Type)

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()

		if existing, ok := p.session.Index().Entity(key); ok {
			return handleErrorWithDetails(ErrEntityExists,
				fmt.Sprintf("%s already exists", key),
				"Pick another id, or edit "+existing.SourcePath,
				map[string]interface{}{"path": existing.SourcePath})
		}

		sch, err := p.session.Schemas().Get(key.Type)
		if err != nil {
			p.logger.Warn("schema not loaded, scaffolding without defaults",
				slog.String("type", string(key.Type)), slog.Any("error", err))
			sch = nil
		}
		body, err := content.RenderScaffold(pk, key.ID, name, sch)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		rel := p.content.ScaffoldPath(key.Type, key.ID)
		if err := p.content.CreateDocument(rel, body); err != nil {
			if errors.Is(err, content.ErrExists) {
				return handleErrorMsg(ErrEntityExists, fmt.Sprintf("file already exists: %s", rel), "")
			}
			return handleError(ErrFileWriteError, err, "")
		}

		if _, err := p.session.RebuildOne(rel); err != nil {
			return handleError(ErrIndexError, err, "")
		}
		warnings := p.saveWarnings()
		p.logAudit(p.audit.LogCreate(key, rel))

		res := newResult{EntityType: key.Type, EntityID: key.ID, Path: rel}
		if jsonOutput {
			outputSuccessWithWarnings(res, warnings, nil)
			return nil
		}
		printLine(ui.Successf("Created %s %s", ui.EntityKey(key.Type, key.ID), ui.FilePath(rel)))
		return nil
	},
}

// parseNewArgs accepts the usual entity arguments, or a bare type when the
// id can be derived from the display name.
func parseNewArgs(args []string, name string) (model.EntityKey, error) {
	if len(args) == 1 && !strings.Contains(args[0], "/") && name != "" {
		t, ok := model.ParseContentType(strings.TrimSpace(args[0]))
		if !ok {
			return model.EntityKey{}, fmt.Errorf("unknown content type %q", args[0])
		}
		id := slugs.ID(name)
		if id == "" {
			return model.EntityKey{}, fmt.Errorf("cannot derive an id from name %q", name)
		}
		return model.EntityKey{Type: t, ID: id}, nil
	}
	return parseEntityArgs(args)
}

func init() {
	newCmd.Flags().String("name", "", "Display name written to the name field")
	rootCmd.AddCommand(newCmd)
}

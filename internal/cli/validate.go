package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/check"
	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// validateResult is the JSON payload of `cstudio validate`.
type validateResult struct {
	Path     string                  `json:"path"`
	Type     model.ContentType       `json:"type"`
	Valid    bool                    `json:"valid"`
	Errors   int                     `json:"error_count"`
	Warnings int                     `json:"warning_count"`
	Findings []model.ValidationError `json:"errors"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate one document against its schema and the index",
	Long: `Checks a document's syntax, its fields against the type's schema, and
its references against the current index. The document is read from disk
(or from stdin when <file> is "-"), so unsaved editor buffers can be piped
in.

The content type comes from the file's directory unless --type is given.

Examples:
  cstudio validate rooms/tavern.yaml
  cat draft.yaml | cstudio validate - --type rooms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, _ := cmd.Flags().GetString("type")

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		warnings := p.saveIfChanged()

		rel, raw, err := readDocumentArg(p.content, args[0], cmd.InOrStdin())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return handleError(ErrFileNotFound, err, "")
			}
			return handleError(ErrFileReadError, err, "")
		}

		t, ok := p.content.TypeOf(rel)
		if typeName != "" {
			t, ok = model.ParseContentType(typeName)
			if !ok {
				return handleErrorMsg(ErrTypeNotFound, fmt.Sprintf("unknown content type %q", typeName), knownTypesHint())
			}
		}
		if !ok {
			return handleErrorMsg(ErrInvalidInput,
				fmt.Sprintf("cannot tell the content type of %s", args[0]),
				"Pass --type, or keep the file under a content type directory")
		}

		findings, err := check.Document(p.engine(), raw, t, rel)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		res := validateResult{Path: rel, Type: t, Findings: findings}
		for _, f := range findings {
			switch f.Severity {
			case model.SeverityError:
				res.Errors++
			case model.SeverityWarning:
				res.Warnings++
			}
		}
		res.Valid = res.Errors == 0

		if jsonOutput {
			outputSuccessWithWarnings(res, warnings, &Meta{Count: len(findings)})
			if !res.Valid {
				return errReported
			}
			return nil
		}

		if len(findings) == 0 {
			printLine(ui.Successf("%s is valid", ui.FilePath(rel)))
			return nil
		}
		printLine(ui.FilePath(rel) + " " + ui.ErrorWarningCounts(res.Errors, res.Warnings))
		for _, f := range findings {
			printLine("  " + ui.Finding(f))
		}
		if !res.Valid {
			return errReported
		}
		return nil
	},
}

// readDocumentArg reads the document named on the command line and returns
// its content-relative path. "-" reads stdin; the path is then "-".
func readDocumentArg(cs *content.Store, arg string, stdin io.Reader) (string, []byte, error) {
	if arg == "-" {
		raw, err := io.ReadAll(stdin)
		return "-", raw, err
	}

	// A path that exists relative to the working directory wins; otherwise
	// the argument is taken as relative to the content root.
	abs := arg
	if !filepath.IsAbs(abs) {
		if _, err := os.Stat(abs); err != nil {
			abs = cs.Abs(arg)
		}
	}
	abs, err := filepath.Abs(abs)
	if err != nil {
		return "", nil, err
	}
	rel, err := cs.Rel(abs)
	if err != nil {
		return "", nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, err
	}
	return rel, raw, nil
}

func init() {
	validateCmd.Flags().StringP("type", "t", "", "Content type of the document (default: from its directory)")
	rootCmd.AddCommand(validateCmd)
}

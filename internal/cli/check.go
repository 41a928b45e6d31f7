package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/check"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// checkResult is the JSON payload of `cstudio check`.
type checkResult struct {
	*check.Result
	Strict bool `json:"strict"`
	Passed bool `json:"passed"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every document in the project",
	Long: `Runs every schema file and every content document through validation
and reports the findings grouped by document.

The command fails when any error is found. With --strict, warnings (such as
duplicate ids) fail it too.

Examples:
  cstudio check
  cstudio check --strict --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")

		p, err := openProject(cmd.Context(), openOptions{})
		if err != nil {
			return handleError(ErrIndexError, err, "")
		}
		defer p.close()
		warnings := p.saveIfChanged()

		start := time.Now()
		res, err := check.Project(p.content, p.engine(), p.session.Schemas())
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		out := checkResult{Result: res, Strict: strict, Passed: res.OK(strict)}

		if jsonOutput {
			outputSuccessWithWarnings(out, warnings, &Meta{
				Count:       res.Errors + res.Warnings,
				QueryTimeMs: time.Since(start).Milliseconds(),
			})
			if !out.Passed {
				return errReported
			}
			return nil
		}

		for _, doc := range res.Documents {
			printLine(ui.FilePath(doc.Path) + " " + ui.ErrorWarningCounts(doc.Errors, doc.Warnings))
			for _, f := range doc.Findings {
				printLine("  " + ui.Finding(f))
			}
		}
		if len(res.Documents) > 0 {
			printLine()
		}

		summary := ui.Count(res.Checked, "document", "documents")
		switch {
		case res.Errors == 0 && res.Warnings == 0:
			printLine(ui.Successf("No issues found %s", ui.Hint(summary)))
		case out.Passed:
			printLine(ui.Warningf("Found %s %s", ui.ErrorWarningCounts(res.Errors, res.Warnings), ui.Hint(summary)))
		default:
			printLine(ui.Errorf("Found %s %s", ui.ErrorWarningCounts(res.Errors, res.Warnings), ui.Hint(summary)))
		}
		if !out.Passed {
			return errReported
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("strict", false, "Treat warnings as failures")
	rootCmd.AddCommand(checkCmd)
}

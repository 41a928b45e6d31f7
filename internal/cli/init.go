package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/atomicfile"
	"github.com/aidanlsb/cstudio/internal/config"
	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/ui"
)

// initResult is the JSON payload of `cstudio init`.
type initResult struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	CreatedConfig bool   `json:"created_config"`
	Gitignore     string `json:"gitignore"`
	Registered    bool   `json:"registered"`
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a content project",
	Long: `Prepares a directory (default: the current one) as a cstudio project and
registers it in the global config under its directory name.

Creates:
  - studio.yaml   (project configuration, all defaults commented)
  - .cstudio/     (index directory)
  - .gitignore    (ignores the index)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		path, err := filepath.Abs(path)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(path)
		}
		noRegister, _ := cmd.Flags().GetBool("no-register")

		if err := os.MkdirAll(filepath.Join(path, content.StateDir), 0o755); err != nil {
			return handleError(ErrFileWriteError, fmt.Errorf("failed to create project directory: %w", err), "")
		}

		gitignoreStatus, err := ensureGitignore(path)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		createdConfig, err := config.CreateDefaultProjectConfig(path)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		if !createdConfig {
			// Refuse to register a project whose config would not load.
			if _, err := config.LoadProjectConfig(path); err != nil {
				return handleError(ErrConfigInvalid, err, "")
			}
		}

		res := initResult{Path: path, Name: name, CreatedConfig: createdConfig, Gitignore: gitignoreStatus}
		if !noRegister {
			if existing, ok := cfg.Projects[name]; ok && existing != path {
				return handleErrorMsg(ErrInvalidInput,
					fmt.Sprintf("project %q is already registered at %s", name, existing),
					"Pass --name to register this project under another name")
			}
			cfg.RegisterProject(name, path)
			if err := config.SaveTo(resolvedConfigPath, cfg); err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
			res.Registered = true
		}

		if jsonOutput {
			outputSuccess(res, nil)
			return nil
		}

		printf("Initializing project at: %s\n", ui.FilePath(path))
		if createdConfig {
			printLine(ui.Success("Created " + config.ProjectFile + " (project configuration)"))
		} else {
			printLine(ui.Info(config.ProjectFile + " already exists (kept)"))
		}
		printLine(ui.Success("Ensured " + content.StateDir + "/ directory exists"))
		switch gitignoreStatus {
		case "created":
			printLine(ui.Success("Created .gitignore"))
		case "updated":
			printLine(ui.Success("Updated .gitignore"))
		default:
			printLine(ui.Info(".gitignore already ignores " + content.StateDir + "/"))
		}
		if res.Registered {
			printLine(ui.Successf("Registered project %s in %s", ui.Bold.Render(name), ui.FilePath(resolvedConfigPath)))
		}
		printLine()
		printLine(ui.Hint("Add one directory per content type (rooms/, items/, npcs/, ...) and run 'cstudio reindex'."))
		return nil
	},
}

// ensureGitignore makes sure the project's .gitignore excludes the index
// directory. It reports "created", "updated" or "unchanged".
func ensureGitignore(projectPath string) (string, error) {
	gitignorePath := filepath.Join(projectPath, ".gitignore")
	entry := content.StateDir + "/"

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}
	if strings.Contains(existing, entry) {
		return "unchanged", nil
	}

	status := "created"
	newContent := "# cstudio index (rebuilt with 'cstudio reindex')\n" + entry + "\n"
	if existing != "" {
		status = "updated"
		newContent = strings.TrimRight(existing, "\n") + "\n\n" + newContent
	}
	if err := atomicfile.WriteFile(gitignorePath, []byte(newContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return status, nil
}

func init() {
	initCmd.Flags().String("name", "", "Name to register the project under (default: directory name)")
	initCmd.Flags().Bool("no-register", false, "Do not add the project to the global config")
	rootCmd.AddCommand(initCmd)
}

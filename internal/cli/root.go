package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/config"
	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/ui"
)

var (
	// Global flags
	projectName     string // Named project from config
	projectPathFlag string // Explicit path
	configPath      string
	logLevelFlag    string
	debugFlag       bool

	// Resolved values
	resolvedProjectPath string
	resolvedConfigPath  string
	cfg                 *config.Config
	projectCfg          *config.ProjectConfig
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cstudio",
	Short: "Content Studio - reference index for game content",
	Long: `cstudio indexes a directory of YAML game content (rooms, items, NPCs,
quests, ...) and answers questions about how it fits together: what an
entity references, what references it, what is broken, and what is unused.

Each top-level directory is a content type; every document in it is parsed
and its cross-references are tracked.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := configureLogging(cmd); err != nil {
			return handleError(ErrInvalidInput, err, "")
		}

		var err error
		resolvedConfigPath = configPath
		if resolvedConfigPath == "" {
			resolvedConfigPath = config.DefaultPath()
		}
		cfg, err = config.LoadFrom(resolvedConfigPath)
		if err != nil {
			return handleError(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err), "")
		}
		ui.ConfigureTheme(cfg.UI.Accent)

		// Skip project resolution for commands that don't need it
		switch cmd.Name() {
		case "init", "completion", "help", "version":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		cwd, _ := os.Getwd()
		resolvedProjectPath, err = config.ResolveProjectPath(projectPathFlag, projectName, cfg, cwd)
		if err != nil {
			if errors.Is(err, config.ErrNoProject) {
				return handleError(ErrProjectNotSpecified, err, "Run 'cstudio init <path>' to create a project")
			}
			return handleError(ErrProjectNotFound, err, "Check the projects table in "+resolvedConfigPath)
		}
		if info, err := os.Stat(resolvedProjectPath); err != nil || !info.IsDir() {
			return handleErrorMsg(ErrProjectNotFound,
				fmt.Sprintf("project not found: %s", resolvedProjectPath),
				fmt.Sprintf("Run 'cstudio init %s' to create it", resolvedProjectPath))
		}

		projectCfg, err = config.LoadProjectConfig(resolvedProjectPath)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil || errors.Is(err, errReported) {
		return err
	}
	// Errors cobra raises itself (unknown flags, wrong arg counts) never
	// went through handleError.
	if jsonOutput {
		outputError(ErrInvalidInput, err.Error(), nil, "")
	} else {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "Named project from config")
	rootCmd.PersistentFlags().StringVar(&projectPathFlag, "project-path", "", "Explicit path to project directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for scripts and editors)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Shorthand for --log-level debug")
}

// configureLogging installs the process-wide logger. One-shot commands log
// warnings only; long-running ones log at info.
func configureLogging(cmd *cobra.Command) error {
	level := slog.LevelWarn
	switch cmd.Name() {
	case "watch", "serve":
		level = slog.LevelInfo
	}
	if logLevelFlag != "" {
		parsed, err := observe.ParseLevel(logLevelFlag)
		if err != nil {
			return err
		}
		level = parsed
	}
	if debugFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(observe.NewLogger(os.Stderr, level))
	return nil
}

// getProjectPath returns the resolved project path.
func getProjectPath() string {
	return resolvedProjectPath
}

// getProjectConfig returns the loaded studio.yaml.
func getProjectConfig() *config.ProjectConfig {
	if projectCfg == nil {
		return config.DefaultProjectConfig()
	}
	return projectCfg
}

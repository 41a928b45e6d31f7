package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/cstudio/internal/buildinfo"
)

type versionInfo struct {
	buildinfo.Info
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
}

func currentVersionInfo() versionInfo {
	return versionInfo{
		Info:      buildinfo.Get(),
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show cstudio version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if jsonOutput {
			outputSuccess(info, nil)
			return nil
		}

		printf("cstudio %s\n", info.Info)
		printf("go: %s\n", info.GoVersion)
		printf("platform: %s/%s\n", info.GOOS, info.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

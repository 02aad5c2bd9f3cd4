package cmd

import (
	"fmt"
	"maps"
	"runtime"
	"slices"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the JSON shape of the version command.
type VersionInfo struct {
	Version   string         `json:"version"`
	Commit    string         `json:"commit"`
	BuildDate string         `json:"build_date"`
	GoVersion string         `json:"go_version"`
	Models    map[string]int `json:"models"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := VersionInfo{
		Version:   Version,
		Commit:    CommitSHA,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Models:    config.Load().ModelDims(),
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(info)
	}

	fmt.Printf("labface %s (%s)\n", info.Version, info.GoVersion)
	fmt.Printf("  Commit: %s\n", info.Commit)
	fmt.Printf("  Built:  %s\n", info.BuildDate)
	for _, name := range slices.Sorted(maps.Keys(info.Models)) {
		fmt.Printf("  Model:  %s (dim %d)\n", name, info.Models[name])
	}
	return nil
}

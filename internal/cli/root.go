package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// AppVersion returns the version stamped into exports.
func AppVersion() string {
	return appVersion
}

var rootCmd = &cobra.Command{
	Use:   "iosscale",
	Short: "IOS Scale - capture Inclusion of Other in the Self measurements",
	Long: `IOS Scale (iosscale) records relationship-closeness measurements under
nine graphical paradigms, from the classic overlapping circles to set
membership and attribution.

Measurements are captured interactively, grouped into sessions, kept in a
local store with a trash, and exported as CSV, TSV or JSON for analysis.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iosscale %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

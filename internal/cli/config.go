package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the settings stored in .iosscale.yaml.

Keys:
  reset_behavior             keepPosition, resetToDefault or randomPosition
  export.format              csv, tsv or json
  export.include_metadata    true or false
  display.decimal_separator  "." or ","
  storage.backend            yaml or sqlite (takes effect on next start)`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil {
			return fmt.Errorf("configuration manager not initialized")
		}
		cfg, err := ConfigMgr.LoadSettings()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings (%s)\n\n", ConfigMgr.ConfigPath())
		fmt.Printf("  %-27s %s\n", core.KeyResetBehavior, cfg.ResetBehavior)
		fmt.Printf("  %-27s %s\n", core.KeyExportFormat, cfg.ExportFormat)
		fmt.Printf("  %-27s %t\n", core.KeyIncludeMetadata, cfg.IncludeMetadata)
		fmt.Printf("  %-27s %q\n", core.KeyDecimalSeparator, cfg.DecimalSeparator)
		fmt.Printf("  %-27s %s\n", core.KeyStorageBackend, cfg.StorageBackend)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Change a setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil {
			return fmt.Errorf("configuration manager not initialized")
		}
		if err := ConfigMgr.SetSetting(args[0], args[1]); err != nil {
			return fmt.Errorf("setting %s: %w", args[0], err)
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

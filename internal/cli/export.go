package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

var (
	exportFlags    queryFlags
	exportFormat   string
	exportMetadata bool
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id...]",
	Short: "Export sessions as CSV, TSV or JSON",
	Long: `Export sessions to a file named after the modality (one session) or
IOS_Scale_Export (several sessions) plus a timestamp.

Sessions are exported in the order given. Without ids, every session
matching the query flags is exported. Format and metadata default to the
export.format and export.include_metadata settings.`,
	ValidArgsFunction: completeAnySessionID,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil || Exporter == nil {
			return fmt.Errorf("exporter not initialized")
		}

		settings := core.DefaultSettings()
		if ConfigMgr != nil {
			if cfg, err := ConfigMgr.LoadSettings(); err == nil {
				settings = cfg
			}
		}

		format := settings.ExportFormat
		if cmd.Flags().Changed("format") {
			f, ok := core.ParseExportFormat(exportFormat)
			if !ok {
				return fmt.Errorf("unknown export format %q (use csv, tsv or json)", exportFormat)
			}
			format = f
		}
		includeMetadata := settings.IncludeMetadata
		if cmd.Flags().Changed("metadata") {
			includeMetadata = exportMetadata
		}

		sessions, err := selectSessions(args, &exportFlags)
		if err != nil {
			return err
		}

		path, err := Exporter.Run(export.Request{
			Sessions:        sessions,
			Format:          format,
			IncludeMetadata: includeMetadata,
			Dir:             exportOutput,
		})
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}

		fmt.Printf("Exported %d session(s) to %s\n", len(sessions), path)
		return nil
	},
}

// selectSessions resolves explicit ids in order, or runs the query flags
// when no ids are given.
func selectSessions(ids []string, flags *queryFlags) ([]models.Session, error) {
	if len(ids) > 0 {
		sessions, err := Library.Resolve(ids)
		if err != nil {
			return nil, fmt.Errorf("resolving sessions: %w", err)
		}
		return sessions, nil
	}
	q, err := flags.query()
	if err != nil {
		return nil, err
	}
	return Library.List(q), nil
}

func init() {
	exportFlags.register(exportCmd, true)
	exportCmd.Flags().StringVar(&exportFormat, "format", string(models.FormatCSV), "Export format: csv, tsv or json")
	exportCmd.Flags().BoolVar(&exportMetadata, "metadata", false, "Include scales, creation time and notes")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Directory to write the export file to")
	_ = exportCmd.RegisterFlagCompletionFunc("format", completeFormats)
	rootCmd.AddCommand(exportCmd)
}

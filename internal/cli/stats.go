package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

var (
	statsFlags queryFlags
	statsJSON  bool
)

type statsReport struct {
	Sessions   int                              `json:"sessions"`
	Overall    models.SessionSummary            `json:"overall"`
	ByModality map[string]models.SessionSummary `json:"byModality,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats [session-id...]",
	Short: "Summarize primary values",
	Long: `Show count, average, minimum and maximum of the primary values of the
given sessions, or of every session matching the query flags, overall and
per modality.`,
	ValidArgsFunction: completeAnySessionID,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		sessions, err := selectSessions(args, &statsFlags)
		if err != nil {
			return err
		}

		report := buildStatsReport(sessions)
		if statsJSON {
			return printJSON(report)
		}

		if report.Overall.Count == 0 {
			fmt.Printf("%d session(s), no measurements.\n", report.Sessions)
			return nil
		}

		sep := decimalSeparator()
		fmt.Printf("%d session(s)\n\n", report.Sessions)
		fmt.Printf("  %-28s %6s %8s %8s %8s\n", "MODALITY", "N", "AVG", "MIN", "MAX")
		modalities := make([]string, 0, len(report.ByModality))
		for m := range report.ByModality {
			modalities = append(modalities, m)
		}
		sort.Strings(modalities)
		for _, m := range modalities {
			printSummaryRow(core.DisplayName(models.Modality(m)), report.ByModality[m], sep)
		}
		if len(modalities) > 1 {
			printSummaryRow("All", report.Overall, sep)
		}
		return nil
	},
}

func buildStatsReport(sessions []models.Session) statsReport {
	report := statsReport{
		Sessions:   len(sessions),
		Overall:    core.SummarizeSessions(sessions),
		ByModality: make(map[string]models.SessionSummary),
	}
	grouped := make(map[models.Modality][]models.Session)
	for _, s := range sessions {
		grouped[s.Modality] = append(grouped[s.Modality], s)
	}
	for m, group := range grouped {
		if sum := core.SummarizeSessions(group); sum.Count > 0 {
			report.ByModality[string(m)] = sum
		}
	}
	return report
}

func printSummaryRow(label string, s models.SessionSummary, sep string) {
	fmt.Printf("  %-28s %6d %8s %8s %8s\n", label, s.Count,
		core.FormatValue(s.Average, 4, sep), core.FormatValue(s.Min, 4, sep), core.FormatValue(s.Max, 4, sep))
}

func init() {
	statsFlags.register(statsCmd, false)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display capture activity metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include sessions created, discarded and trashed, measurements saved
per modality, save failures, exports and settings that fell back to their
defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			return printJSON(metrics)
		}

		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Sessions created:", metrics.SessionsCreated)
		fmt.Printf("  %-24s %d\n", "Sessions discarded:", metrics.SessionsDiscarded)
		fmt.Printf("  %-24s %d\n", "Sessions trashed:", metrics.SessionsTrashed)
		fmt.Printf("  %-24s %d\n", "Sessions restored:", metrics.SessionsRestored)
		fmt.Printf("  %-24s %d\n", "Sessions purged:", metrics.SessionsPurged)
		fmt.Printf("  %-24s %d\n", "Measurements saved:", metrics.MeasurementsSaved)
		fmt.Printf("  %-24s %d (%.1f%%)\n", "Save failures:", metrics.SaveFailures, metrics.SaveFailureRate()*100)
		fmt.Printf("  %-24s %d\n", "Exports:", metrics.Exports)
		fmt.Printf("  %-24s %d\n", "Export failures:", metrics.ExportFailures)
		fmt.Printf("  %-24s %d\n", "Config fallbacks:", metrics.ConfigFallbacks)

		if len(metrics.MeasurementsByModality) > 0 {
			fmt.Println("\n  Measurements by modality:")
			modalities := make([]string, 0, len(metrics.MeasurementsByModality))
			for m := range metrics.MeasurementsByModality {
				modalities = append(modalities, m)
			}
			sort.Strings(modalities)
			for _, m := range modalities {
				fmt.Printf("    %-20s %d\n", m+":", metrics.MeasurementsByModality[m])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}

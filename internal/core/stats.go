package core

import (
	"strconv"
	"strings"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Summarize computes count, average, min and max of the primary values.
// An empty input yields a zero summary.
func Summarize(measurements []models.Measurement) models.SessionSummary {
	var sum models.SessionSummary
	if len(measurements) == 0 {
		return sum
	}
	total := 0.0
	sum.Min = measurements[0].PrimaryValue
	sum.Max = measurements[0].PrimaryValue
	for _, m := range measurements {
		total += m.PrimaryValue
		if m.PrimaryValue < sum.Min {
			sum.Min = m.PrimaryValue
		}
		if m.PrimaryValue > sum.Max {
			sum.Max = m.PrimaryValue
		}
	}
	sum.Count = len(measurements)
	sum.Average = total / float64(sum.Count)
	return sum
}

// SummarizeSessions summarizes the measurements of all given sessions.
func SummarizeSessions(sessions []models.Session) models.SessionSummary {
	var all []models.Measurement
	for _, s := range sessions {
		all = append(all, s.Measurements...)
	}
	return Summarize(all)
}

// FormatValue renders v with the given number of decimals using sep as the
// decimal separator. It is for display only; exports always use ".".
func FormatValue(v float64, decimals int, sep string) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if sep == "," {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

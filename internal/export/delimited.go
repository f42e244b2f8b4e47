package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

var (
	baseHeader     = []string{"session_id", "modality", "measurement_id", "timestamp", "primary_value"}
	metadataHeader = []string{"self_scale", "other_scale", "session_created", "session_notes"}
)

// Header returns the column names of a delimited export.
func Header(includeMetadata bool) []string {
	h := append([]string{}, baseHeader...)
	if includeMetadata {
		h = append(h, metadataHeader...)
	}
	return h
}

// EncodeDelimited writes one header row and one row per measurement using
// sep as the field separator. Fields containing the separator, a quote or a
// newline are quoted with inner quotes doubled.
func EncodeDelimited(sessions []models.Session, sep rune, includeMetadata bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = sep

	if err := w.Write(Header(includeMetadata)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for _, s := range sessions {
		for _, m := range s.Measurements {
			row := []string{
				s.ID,
				string(s.Modality),
				m.ID,
				formatTime(m.Timestamp),
				FormatPrimary(m.PrimaryValue),
			}
			if includeMetadata {
				row = append(row,
					optionalScale(m, models.SecondarySelfScale),
					optionalScale(m, models.SecondaryOtherScale),
					formatTime(s.CreatedAt),
					s.Notes,
				)
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("writing row for measurement %s: %w", m.ID, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing delimited export: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatPrimary renders a value with exactly four decimals and a "."
// separator, whatever the display settings.
func FormatPrimary(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func optionalScale(m models.Measurement, key string) string {
	v, ok := m.Secondary(key)
	if !ok {
		return ""
	}
	return FormatPrimary(v)
}

package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Bundle is the JSON export document. Struct fields are declared in key
// order so the encoded keys come out sorted.
type Bundle struct {
	AppVersion string          `json:"appVersion"`
	ExportDate string          `json:"exportDate"`
	Sessions   []SessionRecord `json:"sessions"`
}

// SessionRecord is one exported session.
type SessionRecord struct {
	CreatedAt    string              `json:"createdAt"`
	ID           string              `json:"id"`
	Measurements []MeasurementRecord `json:"measurements"`
	Modality     string              `json:"modality"`
	Notes        *string             `json:"notes"`
}

// MeasurementRecord is one exported measurement. Scale and secondary fields
// are null when not applicable or when metadata is excluded.
type MeasurementRecord struct {
	ID              string             `json:"id"`
	OtherScale      *float64           `json:"otherScale"`
	PrimaryValue    float64            `json:"primaryValue"`
	SecondaryValues map[string]float64 `json:"secondaryValues"`
	SelfScale       *float64           `json:"selfScale"`
	Timestamp       string             `json:"timestamp"`
}

// NewBundle builds the export document for sessions.
func NewBundle(sessions []models.Session, opts Options) Bundle {
	b := Bundle{
		AppVersion: opts.AppVersion,
		ExportDate: formatTime(opts.ExportedAt),
		Sessions:   make([]SessionRecord, 0, len(sessions)),
	}
	for _, s := range sessions {
		rec := SessionRecord{
			CreatedAt:    formatTime(s.CreatedAt),
			ID:           s.ID,
			Measurements: make([]MeasurementRecord, 0, len(s.Measurements)),
			Modality:     string(s.Modality),
		}
		if opts.IncludeMetadata {
			notes := s.Notes
			rec.Notes = &notes
		}
		for _, m := range s.Measurements {
			mr := MeasurementRecord{
				ID:           m.ID,
				PrimaryValue: m.PrimaryValue,
				Timestamp:    formatTime(m.Timestamp),
			}
			if opts.IncludeMetadata {
				mr.SelfScale = secondaryPtr(m, models.SecondarySelfScale)
				mr.OtherScale = secondaryPtr(m, models.SecondaryOtherScale)
				if len(m.SecondaryValues) > 0 {
					mr.SecondaryValues = m.Clone().SecondaryValues
				}
			}
			rec.Measurements = append(rec.Measurements, mr)
		}
		b.Sessions = append(b.Sessions, rec)
	}
	return b
}

// EncodeJSON renders the export document with two-space indentation and a
// trailing newline.
func EncodeJSON(sessions []models.Session, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewBundle(sessions, opts)); err != nil {
		return nil, fmt.Errorf("encoding JSON export: %w: %v", ErrUnencodableValue, err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON parses an export document produced by EncodeJSON.
func DecodeJSON(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding JSON export: %w", err)
	}
	return &b, nil
}

func secondaryPtr(m models.Measurement, key string) *float64 {
	v, ok := m.Secondary(key)
	if !ok {
		return nil
	}
	return &v
}

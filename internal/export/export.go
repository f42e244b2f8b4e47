// Package export serializes sessions into delimited text (CSV/TSV) or a
// structured JSON document, and names the resulting artifact.
package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/ios-scale/internal/storage"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// ErrUnencodableValue is returned when a session holds a value that cannot
// be represented in the output format (NaN or infinity).
var ErrUnencodableValue = errors.New("unencodable value")

// TimestampLayout is the ISO-8601 layout used for every exported instant.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const filenameTimeLayout = "2006-01-02_150405"

// Options configure one export call. They are passed explicitly instead of
// being read from settings so the serializer stays a pure function.
type Options struct {
	Format          models.ExportFormat
	IncludeMetadata bool
	AppVersion      string
	ExportedAt      time.Time
}

// Artifact is the complete output of an export.
type Artifact struct {
	Data        []byte
	Filename    string
	Format      models.ExportFormat
	ContentType string
}

// Export serializes sessions, in the given order, into the requested
// format. It returns either the full artifact or an error, never partial
// output.
func Export(sessions []models.Session, opts Options) (*Artifact, error) {
	if err := validate(sessions); err != nil {
		return nil, err
	}
	if opts.ExportedAt.IsZero() {
		opts.ExportedAt = time.Now()
	}

	var (
		data        []byte
		err         error
		contentType string
	)
	switch opts.Format {
	case models.FormatCSV:
		data, err = EncodeDelimited(sessions, ',', opts.IncludeMetadata)
		contentType = "text/csv"
	case models.FormatTSV:
		data, err = EncodeDelimited(sessions, '\t', opts.IncludeMetadata)
		contentType = "text/tab-separated-values"
	case models.FormatJSON:
		data, err = EncodeJSON(sessions, opts)
		contentType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Data:        data,
		Filename:    Filename(sessions, opts.Format, opts.ExportedAt),
		Format:      opts.Format,
		ContentType: contentType,
	}, nil
}

// Filename suggests a name for the artifact: a single session is named
// after its modality, anything else is a generic export.
func Filename(sessions []models.Session, format models.ExportFormat, at time.Time) string {
	stamp := at.Format(filenameTimeLayout)
	if len(sessions) == 1 {
		return fmt.Sprintf("IOS_Scale_%s_%s.%s", sessions[0].Modality, stamp, format.Extension())
	}
	return fmt.Sprintf("IOS_Scale_Export_%s.%s", stamp, format.Extension())
}

// WriteArtifact writes the artifact into dir under its suggested filename
// and returns the full path. The file appears only once fully written.
func WriteArtifact(dir string, a *Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, a.Filename)
	if err := storage.WriteFileAtomic(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing export %s: %w", a.Filename, err)
	}
	return path, nil
}

func validate(sessions []models.Session) error {
	for _, s := range sessions {
		for _, m := range s.Measurements {
			if !finite(m.PrimaryValue) {
				return fmt.Errorf("measurement %s primary value: %w", m.ID, ErrUnencodableValue)
			}
			for k, v := range m.SecondaryValues {
				if !finite(v) {
					return fmt.Errorf("measurement %s secondary value %s: %w", m.ID, k, ErrUnencodableValue)
				}
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

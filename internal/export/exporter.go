package export

import (
	"time"

	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Exporter writes export artifacts to disk and records the outcome.
type Exporter struct {
	appVersion string
	events     core.EventLogger
	clock      func() time.Time
}

// NewExporter creates an Exporter stamping artifacts with appVersion.
// events may be nil.
func NewExporter(appVersion string, events core.EventLogger) *Exporter {
	return &Exporter{appVersion: appVersion, events: events, clock: time.Now}
}

// Request describes one export to disk.
type Request struct {
	Sessions        []models.Session
	Format          models.ExportFormat
	IncludeMetadata bool
	Dir             string
}

// Run serializes the sessions and writes the artifact into req.Dir. It
// returns the written path.
func (e *Exporter) Run(req Request) (string, error) {
	art, err := Export(req.Sessions, Options{
		Format:          req.Format,
		IncludeMetadata: req.IncludeMetadata,
		AppVersion:      e.appVersion,
		ExportedAt:      e.clock(),
	})
	if err == nil {
		var path string
		path, err = WriteArtifact(req.Dir, art)
		if err == nil {
			e.logEvent("export.completed", map[string]any{
				"format":   string(req.Format),
				"sessions": len(req.Sessions),
				"bytes":    len(art.Data),
				"path":     path,
			})
			return path, nil
		}
	}
	e.logEvent("export.failed", map[string]any{
		"format":   string(req.Format),
		"sessions": len(req.Sessions),
		"error":    err.Error(),
	})
	return "", err
}

func (e *Exporter) logEvent(eventType string, data map[string]any) {
	if e.events != nil {
		_ = e.events.LogEvent(eventType, data)
	}
}

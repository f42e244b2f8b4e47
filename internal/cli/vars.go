package cli

import (
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath  string
	ConfigMgr core.ConfigurationManager
	Capture   core.CaptureService
	Library   *core.SessionLibrary
	Exporter  *export.Exporter
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)

// decimalSeparator returns the configured display separator, "." when the
// settings cannot be read.
func decimalSeparator() string {
	if ConfigMgr == nil {
		return "."
	}
	cfg, err := ConfigMgr.LoadSettings()
	if err != nil || cfg.DecimalSeparator == "" {
		return "."
	}
	return cfg.DecimalSeparator
}

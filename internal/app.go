// Package internal provides the App struct that wires all components of the
// IOS Scale engine together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/ios-scale/internal/cli"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/internal/observability"
	"github.com/valter-silva-au/ios-scale/internal/storage"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

const (
	// HomeEnv overrides the data directory.
	HomeEnv = "IOSSCALE_HOME"

	eventLogFile = ".iosscale_events.jsonl"
	sqliteFile   = "sessions.db"
)

// App holds all service dependencies.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Settings  *models.Settings

	// Storage layer
	SessionStore  storage.SessionStoreManager
	PositionStore storage.PositionStoreManager

	// Core services
	Capture  core.CaptureService
	Library  *core.SessionLibrary
	Exporter *export.Exporter

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components. basePath is the directory that
// holds the settings file, the session store and the event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Observability ---
	var err error
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, eventLogFile))
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath, events)
	app.Settings, err = app.ConfigMgr.LoadSettings()
	if err != nil {
		// Use defaults if the settings file is unreadable.
		app.Settings = core.DefaultSettings()
	}

	// --- Storage layer ---
	app.SessionStore, err = openSessionStore(basePath, app.Settings.StorageBackend)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := app.SessionStore.Load(); err != nil {
		app.Close()
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	app.PositionStore = storage.NewPositionStoreManager(basePath)

	// --- Core services ---
	app.Capture = core.NewCaptureService(app.SessionStore, app.PositionStore, app.ConfigMgr, events)
	app.Library = core.NewSessionLibrary(app.SessionStore, events)
	app.Exporter = export.NewExporter(cli.AppVersion(), events)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.ConfigMgr = app.ConfigMgr
	cli.Capture = app.Capture
	cli.Library = app.Library
	cli.Exporter = app.Exporter

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

func openSessionStore(basePath string, backend models.StorageBackend) (storage.SessionStoreManager, error) {
	switch backend {
	case models.BackendSQLite:
		store, err := storage.NewSQLiteSessionStore(filepath.Join(basePath, sqliteFile))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite session store: %w", err)
		}
		return store, nil
	default:
		return storage.NewSessionStoreManager(basePath), nil
	}
}

// Close releases resources held by the App: the session store and the
// event log file handle. It is safe to call on a partially built App.
func (a *App) Close() error {
	var firstErr error
	if a.SessionStore != nil {
		firstErr = a.SessionStore.Close()
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the data directory. It checks the
// IOSSCALE_HOME env var, then walks up from the current directory looking
// for a settings file, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/internal/observability"
	"github.com/valter-silva-au/ios-scale/internal/storage"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// testEnv wires real services over a temporary base directory into the
// package variables and restores the previous values on cleanup.
type testEnv struct {
	base      string
	sessions  storage.SessionStoreManager
	positions storage.PositionStoreManager
	eventLog  observability.EventLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	origBase, origCfg, origCapture, origLib, origExp := BasePath, ConfigMgr, Capture, Library, Exporter
	origLog, origAlerts, origMetrics := EventLog, AlertEngine, MetricsCalc
	t.Cleanup(func() {
		BasePath, ConfigMgr, Capture, Library, Exporter = origBase, origCfg, origCapture, origLib, origExp
		EventLog, AlertEngine, MetricsCalc = origLog, origAlerts, origMetrics
	})

	base := t.TempDir()
	el, err := observability.NewJSONLEventLog(filepath.Join(base, ".iosscale_events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = el.Close() })
	rec := observability.NewRecorder(el)

	env := &testEnv{
		base:      base,
		sessions:  storage.NewSessionStoreManager(base),
		positions: storage.NewPositionStoreManager(base),
		eventLog:  el,
	}
	t.Cleanup(func() { _ = env.sessions.Close() })

	BasePath = base
	ConfigMgr = core.NewConfigurationManager(base, rec)
	Capture = core.NewCaptureService(env.sessions, env.positions, ConfigMgr, rec)
	Library = core.NewSessionLibrary(env.sessions, rec)
	Exporter = export.NewExporter("test", rec)
	EventLog = el
	MetricsCalc = observability.NewMetricsCalculator(el)
	AlertEngine = observability.NewAlertEngine(el, observability.DefaultAlertThresholds())
	return env
}

// addSession stores a session of modality holding the given primary values.
func (e *testEnv) addSession(t *testing.T, modality models.Modality, values ...float64) models.Session {
	t.Helper()
	s := e.sessions.CreateSession(modality)
	for _, v := range values {
		if _, err := e.sessions.AppendMeasurement(s.ID, v, nil); err != nil {
			t.Fatalf("appending measurement: %v", err)
		}
	}
	if len(values) == 0 {
		if err := e.sessions.Persist(s.ID); err != nil {
			t.Fatalf("persisting session: %v", err)
		}
	}
	got, err := e.sessions.GetSession(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

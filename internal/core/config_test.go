package core

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// --- Helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

type loggedEvent struct {
	Type string
	Data map[string]any
}

type recordingLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *recordingLogger) LogEvent(eventType string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{Type: eventType, Data: data})
	return nil
}

func (l *recordingLogger) ofType(eventType string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []loggedEvent
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- LoadSettings tests ---

func TestLoadSettings_Defaults_WhenNoFile(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir(), nil)

	cfg, err := cm.LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DefaultSettings()
	if *cfg != *want {
		t.Errorf("settings = %+v, want %+v", cfg, want)
	}
}

func TestLoadSettings_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
reset_behavior: keepPosition
export:
  format: json
  include_metadata: true
display:
  decimal_separator: ","
storage:
  backend: sqlite
`)

	cfg, err := NewConfigurationManager(dir, nil).LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ResetBehavior != models.ResetKeepPosition {
		t.Errorf("ResetBehavior = %q", cfg.ResetBehavior)
	}
	if cfg.ExportFormat != models.FormatJSON {
		t.Errorf("ExportFormat = %q", cfg.ExportFormat)
	}
	if !cfg.IncludeMetadata {
		t.Error("IncludeMetadata = false, want true")
	}
	if cfg.DecimalSeparator != "," {
		t.Errorf("DecimalSeparator = %q", cfg.DecimalSeparator)
	}
	if cfg.StorageBackend != models.BackendSQLite {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
}

func TestLoadSettings_UnknownEnumsFallBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
reset_behavior: teleport
export:
  format: xlsx
display:
  decimal_separator: ";"
`)
	logger := &recordingLogger{}

	cfg, err := NewConfigurationManager(dir, logger).LoadSettings()
	if err != nil {
		t.Fatalf("corrupted enums must not fail: %v", err)
	}
	if cfg.ResetBehavior != models.ResetToDefault {
		t.Errorf("ResetBehavior = %q, want resetToDefault", cfg.ResetBehavior)
	}
	if cfg.ExportFormat != models.FormatCSV {
		t.Errorf("ExportFormat = %q, want csv", cfg.ExportFormat)
	}
	if cfg.DecimalSeparator != "." {
		t.Errorf("DecimalSeparator = %q, want .", cfg.DecimalSeparator)
	}

	fallbacks := logger.ofType("config.fallback")
	if len(fallbacks) != 3 {
		t.Fatalf("expected 3 fallback events, got %d", len(fallbacks))
	}
	if fallbacks[0].Data["key"] != KeyResetBehavior || fallbacks[0].Data["value"] != "teleport" {
		t.Errorf("unexpected first fallback: %v", fallbacks[0].Data)
	}
}

func TestLoadSettings_ReReadsFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir, nil)

	writeFile(t, dir, ConfigFileName, "reset_behavior: randomPosition\n")
	cfg, _ := cm.LoadSettings()
	if cfg.ResetBehavior != models.ResetRandomPosition {
		t.Fatalf("ResetBehavior = %q", cfg.ResetBehavior)
	}

	writeFile(t, dir, ConfigFileName, "reset_behavior: keepPosition\n")
	cfg, _ = cm.LoadSettings()
	if cfg.ResetBehavior != models.ResetKeepPosition {
		t.Errorf("edit not picked up: %q", cfg.ResetBehavior)
	}
}

func TestLoadSettings_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "reset_behavior: [unterminated\n")

	if _, err := NewConfigurationManager(dir, nil).LoadSettings(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

// --- SetSetting tests ---

func TestSetSetting_WritesAndReloads(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir, nil)

	for key, value := range map[string]string{
		KeyResetBehavior:    "keepPosition",
		KeyExportFormat:     "TSV",
		KeyIncludeMetadata:  "true",
		KeyDecimalSeparator: ",",
	} {
		if err := cm.SetSetting(key, value); err != nil {
			t.Fatalf("SetSetting(%s, %s): %v", key, value, err)
		}
	}

	cfg, err := cm.LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ResetBehavior != models.ResetKeepPosition || cfg.ExportFormat != models.FormatTSV ||
		!cfg.IncludeMetadata || cfg.DecimalSeparator != "," {
		t.Errorf("unexpected settings %+v", cfg)
	}

	data, err := os.ReadFile(cm.ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "keepPosition") {
		t.Errorf("config file missing value:\n%s", data)
	}
}

func TestSetSetting_RejectsInvalid(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir(), nil)

	tests := []struct {
		key, value string
	}{
		{KeyResetBehavior, "teleport"},
		{KeyExportFormat, "xml"},
		{KeyIncludeMetadata, "maybe"},
		{KeyDecimalSeparator, ";"},
		{KeyStorageBackend, "postgres"},
		{"unknown.key", "x"},
	}
	for _, tt := range tests {
		if err := cm.SetSetting(tt.key, tt.value); err == nil {
			t.Errorf("SetSetting(%s, %s): expected error", tt.key, tt.value)
		}
	}
	if _, err := os.Stat(cm.ConfigPath()); !os.IsNotExist(err) {
		t.Error("rejected settings must not create the config file")
	}
}

func TestParseEnums(t *testing.T) {
	if rb, ok := ParseResetBehavior("randomPosition"); !ok || rb != models.ResetRandomPosition {
		t.Errorf("ParseResetBehavior = %q, %v", rb, ok)
	}
	if rb, ok := ParseResetBehavior(""); ok || rb != models.ResetToDefault {
		t.Errorf("ParseResetBehavior(\"\") = %q, %v", rb, ok)
	}
	if f, ok := ParseExportFormat("JSON"); !ok || f != models.FormatJSON {
		t.Errorf("ParseExportFormat = %q, %v", f, ok)
	}
	if b, ok := ParseStorageBackend("bolt"); ok || b != models.BackendYAML {
		t.Errorf("ParseStorageBackend = %q, %v", b, ok)
	}
}

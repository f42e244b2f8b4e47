package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// ConfigFileName is the settings file looked up in the base path.
const ConfigFileName = ".iosscale.yaml"

// Setting keys as they appear in the YAML file.
const (
	KeyResetBehavior    = "reset_behavior"
	KeyExportFormat     = "export.format"
	KeyIncludeMetadata  = "export.include_metadata"
	KeyDecimalSeparator = "display.decimal_separator"
	KeyStorageBackend   = "storage.backend"
)

// ConfigurationManager loads and edits the user settings.
type ConfigurationManager interface {
	// LoadSettings reads the settings file on every call so edits take
	// effect on the next read.
	LoadSettings() (*models.Settings, error)
	SetSetting(key, value string) error
	ConfigPath() string
}

// SettingsProvider is the read side of ConfigurationManager.
type SettingsProvider interface {
	LoadSettings() (*models.Settings, error)
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading and writing the YAML settings file.
type viperConfigManager struct {
	basePath string
	events   EventLogger
}

// NewConfigurationManager creates a ConfigurationManager reading
// .iosscale.yaml from basePath. events may be nil.
func NewConfigurationManager(basePath string, events EventLogger) ConfigurationManager {
	return &viperConfigManager{basePath: basePath, events: events}
}

// DefaultSettings returns the settings used when the file or a key is
// missing.
func DefaultSettings() *models.Settings {
	return &models.Settings{
		ResetBehavior:    models.ResetToDefault,
		ExportFormat:     models.FormatCSV,
		IncludeMetadata:  false,
		DecimalSeparator: ".",
		StorageBackend:   models.BackendYAML,
	}
}

func (cm *viperConfigManager) ConfigPath() string {
	return filepath.Join(cm.basePath, ConfigFileName)
}

func (cm *viperConfigManager) newViper() *viper.Viper {
	def := DefaultSettings()

	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault(KeyResetBehavior, string(def.ResetBehavior))
	v.SetDefault(KeyExportFormat, string(def.ExportFormat))
	v.SetDefault(KeyIncludeMetadata, def.IncludeMetadata)
	v.SetDefault(KeyDecimalSeparator, def.DecimalSeparator)
	v.SetDefault(KeyStorageBackend, string(def.StorageBackend))
	return v
}

func (cm *viperConfigManager) readInto(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}
	return nil
}

// LoadSettings reads the settings file. Unrecognized enum values fall back
// to their defaults instead of failing.
func (cm *viperConfigManager) LoadSettings() (*models.Settings, error) {
	v := cm.newViper()
	if err := cm.readInto(v); err != nil {
		return nil, err
	}

	cfg := DefaultSettings()

	raw := v.GetString(KeyResetBehavior)
	if rb, ok := ParseResetBehavior(raw); ok {
		cfg.ResetBehavior = rb
	} else {
		cm.fallback(KeyResetBehavior, raw, string(cfg.ResetBehavior))
	}

	raw = v.GetString(KeyExportFormat)
	if f, ok := ParseExportFormat(raw); ok {
		cfg.ExportFormat = f
	} else {
		cm.fallback(KeyExportFormat, raw, string(cfg.ExportFormat))
	}

	raw = v.GetString(KeyDecimalSeparator)
	if raw == "." || raw == "," {
		cfg.DecimalSeparator = raw
	} else {
		cm.fallback(KeyDecimalSeparator, raw, cfg.DecimalSeparator)
	}

	raw = v.GetString(KeyStorageBackend)
	if b, ok := ParseStorageBackend(raw); ok {
		cfg.StorageBackend = b
	} else {
		cm.fallback(KeyStorageBackend, raw, string(cfg.StorageBackend))
	}

	cfg.IncludeMetadata = v.GetBool(KeyIncludeMetadata)

	return cfg, nil
}

func (cm *viperConfigManager) fallback(key, raw, used string) {
	if cm.events == nil {
		return
	}
	_ = cm.events.LogEvent("config.fallback", map[string]any{
		"key":   key,
		"value": raw,
		"used":  used,
	})
}

// SettingKeys returns the editable keys in sorted order.
func SettingKeys() []string {
	keys := []string{KeyResetBehavior, KeyExportFormat, KeyIncludeMetadata, KeyDecimalSeparator, KeyStorageBackend}
	sort.Strings(keys)
	return keys
}

// SetSetting validates value for key and writes it to the settings file.
func (cm *viperConfigManager) SetSetting(key, value string) error {
	parsed, err := parseSettingValue(key, value)
	if err != nil {
		return err
	}

	v := cm.newViper()
	if err := cm.readInto(v); err != nil {
		return err
	}
	v.Set(key, parsed)

	if err := v.WriteConfigAs(cm.ConfigPath()); err != nil {
		return fmt.Errorf("writing %s: %w", ConfigFileName, err)
	}
	return nil
}

func parseSettingValue(key, value string) (interface{}, error) {
	switch key {
	case KeyResetBehavior:
		if rb, ok := ParseResetBehavior(value); ok {
			return string(rb), nil
		}
		return nil, fmt.Errorf("%s %q is invalid, must be one of: keepPosition, resetToDefault, randomPosition", key, value)
	case KeyExportFormat:
		if f, ok := ParseExportFormat(value); ok {
			return string(f), nil
		}
		return nil, fmt.Errorf("%s %q is invalid, must be one of: csv, tsv, json", key, value)
	case KeyIncludeMetadata:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s %q is invalid, must be true or false", key, value)
		}
		return b, nil
	case KeyDecimalSeparator:
		if value != "." && value != "," {
			return nil, fmt.Errorf("%s %q is invalid, must be . or ,", key, value)
		}
		return value, nil
	case KeyStorageBackend:
		if b, ok := ParseStorageBackend(value); ok {
			return string(b), nil
		}
		return nil, fmt.Errorf("%s %q is invalid, must be one of: yaml, sqlite", key, value)
	default:
		return nil, fmt.Errorf("unknown setting %q, must be one of: %s", key, strings.Join(SettingKeys(), ", "))
	}
}

// ParseResetBehavior parses a persisted reset behavior. ok is false for
// unrecognized values, in which case resetToDefault is returned.
func ParseResetBehavior(s string) (models.ResetBehavior, bool) {
	switch models.ResetBehavior(s) {
	case models.ResetKeepPosition, models.ResetToDefault, models.ResetRandomPosition:
		return models.ResetBehavior(s), true
	}
	return models.ResetToDefault, false
}

// ParseExportFormat parses a persisted export format. ok is false for
// unrecognized values, in which case csv is returned.
func ParseExportFormat(s string) (models.ExportFormat, bool) {
	switch f := models.ExportFormat(strings.ToLower(s)); f {
	case models.FormatCSV, models.FormatTSV, models.FormatJSON:
		return f, true
	}
	return models.FormatCSV, false
}

// ParseStorageBackend parses a persisted storage backend. ok is false for
// unrecognized values, in which case yaml is returned.
func ParseStorageBackend(s string) (models.StorageBackend, bool) {
	switch b := models.StorageBackend(strings.ToLower(s)); b {
	case models.BackendYAML, models.BackendSQLite:
		return b, true
	}
	return models.BackendYAML, false
}

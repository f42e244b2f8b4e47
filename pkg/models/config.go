package models

// ResetBehavior selects the starting value of a new measurement.
type ResetBehavior string

const (
	ResetKeepPosition   ResetBehavior = "keepPosition"
	ResetToDefault      ResetBehavior = "resetToDefault"
	ResetRandomPosition ResetBehavior = "randomPosition"
)

// ExportFormat selects the export serialization.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatTSV  ExportFormat = "tsv"
	FormatJSON ExportFormat = "json"
)

// Extension returns the file extension for the format.
func (f ExportFormat) Extension() string {
	return string(f)
}

// StorageBackend selects the session store persistence.
type StorageBackend string

const (
	BackendYAML   StorageBackend = "yaml"
	BackendSQLite StorageBackend = "sqlite"
)

// Settings holds the user-editable configuration read from .iosscale.yaml.
type Settings struct {
	ResetBehavior    ResetBehavior  `yaml:"reset_behavior" mapstructure:"reset_behavior"`
	ExportFormat     ExportFormat   `yaml:"export_format" mapstructure:"export_format"`
	IncludeMetadata  bool           `yaml:"include_metadata" mapstructure:"include_metadata"`
	DecimalSeparator string         `yaml:"decimal_separator" mapstructure:"decimal_separator"`
	StorageBackend   StorageBackend `yaml:"storage_backend" mapstructure:"storage_backend"`
}

// Position is the persisted "last position" record of a modality: the
// primary value plus any named secondary scalars or 0/1 booleans.
type Position struct {
	Primary   float64            `yaml:"primary"`
	Secondary map[string]float64 `yaml:"secondary,omitempty"`
}

// Clone returns a copy that does not share the secondary map.
func (p Position) Clone() Position {
	cp := Position{Primary: p.Primary}
	if p.Secondary != nil {
		cp.Secondary = make(map[string]float64, len(p.Secondary))
		for k, v := range p.Secondary {
			cp.Secondary[k] = v
		}
	}
	return cp
}

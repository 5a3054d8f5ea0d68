package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/climategrid/internal/grid"
	"github.com/banshee-data/climategrid/internal/idw"
)

// DefaultConfigPath is the path to the canonical interpolation defaults file.
const DefaultConfigPath = "config/idw.defaults.json"

// Bounds is the JSON form of a grid extent in projected metres.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// IDWConfig is the root configuration of an interpolation run. Every field
// is optional; the Get* accessors supply defaults for omitted fields, so
// partial configs are safe.
type IDWConfig struct {
	// Engine params
	Power         *float64 `json:"power,omitempty"`
	MaxDistanceKm *float64 `json:"max_distance_km,omitempty"`
	MinNeighbors  *int     `json:"min_neighbors,omitempty"`
	MaxNeighbors  *int     `json:"max_neighbors,omitempty"`
	BatchSize     *int     `json:"batch_size,omitempty"`
	Workers       *int     `json:"workers,omitempty"`

	// Grid params
	CellSizeM  *float64 `json:"cell_size_m,omitempty"`
	GridBounds *Bounds  `json:"grid_bounds,omitempty"` // nil: cover the station extent
	SRSID      *int32   `json:"srs_id,omitempty"`

	// Station input
	ValueField        *string `json:"value_field,omitempty"`
	StationsLayer     *string `json:"stations_layer,omitempty"`
	StationsCleanPath *string `json:"stations_clean_path,omitempty"`
	StationsRawPath   *string `json:"stations_raw_path,omitempty"`

	// Output
	RoundDecimals *int `json:"round_decimals,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt32(v int32) *int32       { return &v }

// EmptyIDWConfig returns a config with every field unset.
func EmptyIDWConfig() *IDWConfig {
	return &IDWConfig{}
}

// DefaultIDWConfig returns a config with every field set to its default.
func DefaultIDWConfig() *IDWConfig {
	def := idw.DefaultConfig()
	return &IDWConfig{
		Power:             ptrFloat64(def.Power),
		MaxDistanceKm:     ptrFloat64(def.MaxDistance / 1000),
		MinNeighbors:      ptrInt(def.MinNeighbors),
		MaxNeighbors:      ptrInt(def.MaxNeighbors),
		BatchSize:         ptrInt(def.BatchSize),
		Workers:           ptrInt(def.Workers),
		CellSizeM:         ptrFloat64(5000),
		SRSID:             ptrInt32(0),
		ValueField:        ptrString("dry_season_length"),
		StationsLayer:     ptrString(""),
		StationsCleanPath: ptrString(""),
		StationsRawPath:   ptrString(""),
		RoundDecimals:     ptrInt(2),
	}
}

// LoadIDWConfig loads an IDWConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadIDWConfig(path string) (*IDWConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyIDWConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *IDWConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadIDWConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the engine parameters with the same rules the engine
// applies, plus the grid and output fields.
func (c *IDWConfig) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}

	if c.CellSizeM != nil && !(*c.CellSizeM > 0) {
		return fmt.Errorf("cell_size_m must be positive, got %f", *c.CellSizeM)
	}

	if c.GridBounds != nil {
		if err := c.GetGridBounds().Validate(); err != nil {
			return fmt.Errorf("grid_bounds: %w", err)
		}
	}

	if c.RoundDecimals != nil {
		if *c.RoundDecimals < 0 || *c.RoundDecimals > 12 {
			return fmt.Errorf("round_decimals must be between 0 and 12, got %d", *c.RoundDecimals)
		}
	}

	if c.ValueField != nil && *c.ValueField == "" {
		return fmt.Errorf("value_field must not be empty")
	}

	return nil
}

// EngineConfig converts the engine fields, with defaults, to idw.Config.
func (c *IDWConfig) EngineConfig() idw.Config {
	return idw.Config{
		Power:        c.GetPower(),
		MaxDistance:  c.GetMaxDistanceMeters(),
		MinNeighbors: c.GetMinNeighbors(),
		MaxNeighbors: c.GetMaxNeighbors(),
		BatchSize:    c.GetBatchSize(),
		Workers:      c.GetWorkers(),
	}
}

// GetPower returns the power value or the default.
func (c *IDWConfig) GetPower() float64 {
	if c.Power == nil {
		return 2
	}
	return *c.Power
}

// GetMaxDistanceMeters returns the search radius converted to metres.
func (c *IDWConfig) GetMaxDistanceMeters() float64 {
	if c.MaxDistanceKm == nil {
		return 300 * 1000
	}
	return *c.MaxDistanceKm * 1000
}

// GetMinNeighbors returns the min_neighbors value or the default.
func (c *IDWConfig) GetMinNeighbors() int {
	if c.MinNeighbors == nil {
		return 3
	}
	return *c.MinNeighbors
}

// GetMaxNeighbors returns the max_neighbors value or the default.
func (c *IDWConfig) GetMaxNeighbors() int {
	if c.MaxNeighbors == nil {
		return 15
	}
	return *c.MaxNeighbors
}

// GetBatchSize returns the batch_size value or the default.
func (c *IDWConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 50000
	}
	return *c.BatchSize
}

// GetWorkers returns the workers value or the default.
func (c *IDWConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetCellSizeM returns the grid spacing in metres or the default (5 km).
func (c *IDWConfig) GetCellSizeM() float64 {
	if c.CellSizeM == nil {
		return 5000
	}
	return *c.CellSizeM
}

// HasGridBounds reports whether an explicit grid extent was configured.
func (c *IDWConfig) HasGridBounds() bool {
	return c.GridBounds != nil
}

// GetGridBounds returns the configured extent, or the zero extent.
func (c *IDWConfig) GetGridBounds() grid.Bounds {
	if c.GridBounds == nil {
		return grid.Bounds{}
	}
	return grid.Bounds{
		MinX: c.GridBounds.MinX,
		MinY: c.GridBounds.MinY,
		MaxX: c.GridBounds.MaxX,
		MaxY: c.GridBounds.MaxY,
	}
}

// GetSRSID returns the spatial reference id shared by stations and grid.
// Zero means undeclared and disables the SRS check.
func (c *IDWConfig) GetSRSID() int32 {
	if c.SRSID == nil {
		return 0
	}
	return *c.SRSID
}

// GetValueField returns the station attribute to interpolate.
func (c *IDWConfig) GetValueField() string {
	if c.ValueField == nil || *c.ValueField == "" {
		return "dry_season_length"
	}
	return *c.ValueField
}

// GetStationsLayer returns the GeoPackage layer name; empty selects the
// first feature table.
func (c *IDWConfig) GetStationsLayer() string {
	if c.StationsLayer == nil {
		return ""
	}
	return *c.StationsLayer
}

// GetStationsCleanPath returns the path of the outlier-filtered station file.
func (c *IDWConfig) GetStationsCleanPath() string {
	if c.StationsCleanPath == nil {
		return ""
	}
	return *c.StationsCleanPath
}

// GetStationsRawPath returns the path of the unfiltered station file.
func (c *IDWConfig) GetStationsRawPath() string {
	if c.StationsRawPath == nil {
		return ""
	}
	return *c.StationsRawPath
}

// GetRoundDecimals returns the number of decimals kept in exported values.
func (c *IDWConfig) GetRoundDecimals() int {
	if c.RoundDecimals == nil {
		return 2
	}
	return *c.RoundDecimals
}

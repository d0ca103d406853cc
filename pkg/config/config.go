// Package config loads reconstruction settings from YAML. Every field is
// optional; getters fall back to the defaults below, so partial files are safe.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/1F47E/fieldmap/pkg/ingest"
	"github.com/1F47E/fieldmap/pkg/resolve"
)

const (
	DefaultMaxDistanceCm     = 12.0
	DefaultLateralToleranceM = 0.5
	DefaultPlantSpacingM     = 0.9144
	DefaultLengthToleranceM  = 1.0
	DefaultFirstRow          = 1
	DefaultRowStep           = 1
	DefaultImageWidth        = 4000
	DefaultImageHeight       = 3000

	maxFileSize = 1 * 1024 * 1024
)

// Config is the root of the YAML file
type Config struct {
	Camera struct {
		RotationDegrees    *float64 `yaml:"rotation_degrees"`
		ProvidedResolution *float64 `yaml:"resolution_cm_per_pixel"`
		FocalLength        *float64 `yaml:"focal_length"`
		SensorWidth        *float64 `yaml:"sensor_width"`
		HeightCm           *float64 `yaml:"height_cm"`
		ImageWidth         *int     `yaml:"image_width"`
		ImageHeight        *int     `yaml:"image_height"`
	} `yaml:"camera"`
	Merge struct {
		MaxDistanceCm *float64 `yaml:"max_distance_cm"`
		Recluster     *bool    `yaml:"recluster"`
		TiePolicy     *string  `yaml:"tie_policy"`
	} `yaml:"merge"`
	Field struct {
		FirstRow *int `yaml:"first_row"`
		RowStep  *int `yaml:"row_step"`
		RowCount *int `yaml:"row_count"`
	} `yaml:"field"`
	Segment struct {
		LateralToleranceM *float64 `yaml:"lateral_tolerance_m"`
	} `yaml:"segment"`
	Validation struct {
		PlantSpacingM      *float64 `yaml:"plant_spacing_m"`
		LengthToleranceM   *float64 `yaml:"length_tolerance_m"`
		PlaceMissingPlants *bool    `yaml:"place_missing_plants"`
	} `yaml:"validate"`
	Output struct {
		Dir    *string `yaml:"dir"`
		SQLite *bool   `yaml:"sqlite"`
	} `yaml:"output"`
	PostGIS struct {
		Host     *string `yaml:"host"`
		Port     *int    `yaml:"port"`
		User     *string `yaml:"user"`
		Password *string `yaml:"password"`
		Database *string `yaml:"database"`
		SRID     *int    `yaml:"srid"`
	} `yaml:"postgis"`
}

// Load reads a YAML config file
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Validate checks values that would make a run meaningless
func (c *Config) Validate() error {
	if c.GetMaxDistanceCm() < 0 {
		return fmt.Errorf("merge.max_distance_cm must not be negative")
	}
	if c.GetPlantSpacingM() <= 0 {
		return fmt.Errorf("validate.plant_spacing_m must be positive")
	}
	if c.GetImageWidth() <= 0 || c.GetImageHeight() <= 0 {
		return fmt.Errorf("camera.image_width and camera.image_height must be positive")
	}
	if c.GetRowStep() <= 0 {
		return fmt.Errorf("field.row_step must be positive")
	}
	switch r := c.GetCameraRotation(); r {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera.rotation_degrees %v invalid, choices are 0, 90, 180, 270", r)
	}
	if _, err := parseTiePolicy(c.Merge.TiePolicy); err != nil {
		return err
	}
	return nil
}

func parseTiePolicy(s *string) (resolve.TiePolicy, error) {
	if s == nil {
		return resolve.TieKeepAll, nil
	}
	switch *s {
	case "keep-all", "":
		return resolve.TieKeepAll, nil
	case "keep-canonical":
		return resolve.TieKeepCanonical, nil
	}
	return 0, fmt.Errorf("merge.tie_policy %q invalid, choices are keep-all, keep-canonical", *s)
}

func float(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func integer(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolean(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (c *Config) GetCameraRotation() float64     { return float(c.Camera.RotationDegrees, 0) }
func (c *Config) GetProvidedResolution() float64 { return float(c.Camera.ProvidedResolution, 0) }
func (c *Config) GetFocalLength() float64        { return float(c.Camera.FocalLength, 0) }
func (c *Config) GetSensorWidth() float64        { return float(c.Camera.SensorWidth, 0) }
func (c *Config) GetCameraHeightCm() float64     { return float(c.Camera.HeightCm, 0) }
func (c *Config) GetImageWidth() int             { return integer(c.Camera.ImageWidth, DefaultImageWidth) }
func (c *Config) GetImageHeight() int            { return integer(c.Camera.ImageHeight, DefaultImageHeight) }
func (c *Config) GetMaxDistanceCm() float64      { return float(c.Merge.MaxDistanceCm, DefaultMaxDistanceCm) }
func (c *Config) GetRecluster() bool             { return boolean(c.Merge.Recluster, true) }
func (c *Config) GetFirstRow() int               { return integer(c.Field.FirstRow, DefaultFirstRow) }
func (c *Config) GetRowStep() int                { return integer(c.Field.RowStep, DefaultRowStep) }
func (c *Config) GetRowCount() int               { return integer(c.Field.RowCount, 0) }
func (c *Config) GetLateralToleranceM() float64  { return float(c.Segment.LateralToleranceM, DefaultLateralToleranceM) }
func (c *Config) GetPlantSpacingM() float64      { return float(c.Validation.PlantSpacingM, DefaultPlantSpacingM) }
func (c *Config) GetLengthToleranceM() float64   { return float(c.Validation.LengthToleranceM, DefaultLengthToleranceM) }
func (c *Config) GetPlaceMissingPlants() bool    { return boolean(c.Validation.PlaceMissingPlants, false) }
func (c *Config) GetOutputDir() string           { return stringOr(c.Output.Dir, "out") }
func (c *Config) GetSQLite() bool                { return boolean(c.Output.SQLite, true) }
func (c *Config) GetPostGISHost() string         { return stringOr(c.PostGIS.Host, "localhost") }
func (c *Config) GetPostGISPort() int            { return integer(c.PostGIS.Port, 5432) }
func (c *Config) GetPostGISUser() string         { return stringOr(c.PostGIS.User, "postgres") }
func (c *Config) GetPostGISPassword() string     { return stringOr(c.PostGIS.Password, "") }
func (c *Config) GetPostGISDatabase() string     { return stringOr(c.PostGIS.Database, "fieldmap") }
func (c *Config) GetPostGISSRID() int            { return integer(c.PostGIS.SRID, 0) }

// GetTiePolicy returns the cluster tie policy; invalid values were rejected by Validate
func (c *Config) GetTiePolicy() resolve.TiePolicy {
	p, _ := parseTiePolicy(c.Merge.TiePolicy)
	return p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// Set* helpers let command line flags override file values

func (c *Config) SetMaxDistanceCm(v float64) { c.Merge.MaxDistanceCm = &v }
func (c *Config) SetOutputDir(v string)      { c.Output.Dir = &v }
func (c *Config) SetTiePolicy(v string)      { c.Merge.TiePolicy = &v }
func (c *Config) SetFirstRow(v int)          { c.Field.FirstRow = &v }
func (c *Config) SetRowStep(v int)           { c.Field.RowStep = &v }

// GetCamera returns the camera settings shared by every image of a run
func (c *Config) GetCamera() ingest.Camera {
	return ingest.Camera{
		RotationDegrees:    c.GetCameraRotation(),
		ProvidedResolution: c.GetProvidedResolution(),
		FocalLength:        c.GetFocalLength(),
		SensorWidth:        c.GetSensorWidth(),
		HeightCm:           c.GetCameraHeightCm(),
		Width:              c.GetImageWidth(),
		Height:             c.GetImageHeight(),
	}
}

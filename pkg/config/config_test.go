package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/resolve"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxDistanceCm, cfg.GetMaxDistanceCm())
	assert.Equal(t, DefaultPlantSpacingM, cfg.GetPlantSpacingM())
	assert.Equal(t, DefaultLateralToleranceM, cfg.GetLateralToleranceM())
	assert.Equal(t, 1, cfg.GetFirstRow())
	assert.Equal(t, 1, cfg.GetRowStep())
	assert.Equal(t, 0, cfg.GetRowCount())
	assert.Equal(t, "out", cfg.GetOutputDir())
	assert.True(t, cfg.GetSQLite())
	assert.True(t, cfg.GetRecluster())
	assert.False(t, cfg.GetPlaceMissingPlants())
	assert.Equal(t, resolve.TieKeepAll, cfg.GetTiePolicy())
	assert.Equal(t, 5432, cfg.GetPostGISPort())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "field.yaml", `
camera:
  rotation_degrees: 180
  resolution_cm_per_pixel: 0.05
  height_cm: 120
  image_width: 2000
  image_height: 1500
merge:
  max_distance_cm: 15
  tie_policy: keep-canonical
field:
  first_row: 3
  row_step: 2
  row_count: 40
validate:
  plant_spacing_m: 0.6
output:
  sqlite: false
postgis:
  host: db.local
  srid: 32612
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.GetMaxDistanceCm())
	assert.Equal(t, resolve.TieKeepCanonical, cfg.GetTiePolicy())
	assert.Equal(t, 3, cfg.GetFirstRow())
	assert.Equal(t, 2, cfg.GetRowStep())
	assert.Equal(t, 40, cfg.GetRowCount())
	assert.Equal(t, 0.6, cfg.GetPlantSpacingM())
	assert.Equal(t, DefaultLengthToleranceM, cfg.GetLengthToleranceM())
	assert.False(t, cfg.GetSQLite())
	assert.Equal(t, "db.local", cfg.GetPostGISHost())
	assert.Equal(t, 32612, cfg.GetPostGISSRID())

	cam := cfg.GetCamera()
	assert.Equal(t, 180.0, cam.RotationDegrees)
	assert.Equal(t, 0.05, cam.ProvidedResolution)
	assert.Equal(t, 120.0, cam.HeightCm)
	assert.Equal(t, 2000, cam.Width)
	assert.Equal(t, 1500, cam.Height)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load(writeConfig(t, "field.json", "{}"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	for _, body := range []string{
		"camera:\n  rotation_degrees: 45\n",
		"merge:\n  tie_policy: random\n",
		"merge:\n  max_distance_cm: -1\n",
		"field:\n  row_step: 0\n",
		"validate:\n  plant_spacing_m: 0\n",
		"camera:\n  image_width: 0\n",
		"camera: [",
	} {
		_, err := Load(writeConfig(t, "bad.yml", body))
		assert.Error(t, err, body)
	}
}

func TestSetters(t *testing.T) {
	cfg := &Config{}
	cfg.SetMaxDistanceCm(20)
	cfg.SetOutputDir("/tmp/run")
	cfg.SetTiePolicy("keep-canonical")
	cfg.SetFirstRow(7)
	cfg.SetRowStep(3)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20.0, cfg.GetMaxDistanceCm())
	assert.Equal(t, "/tmp/run", cfg.GetOutputDir())
	assert.Equal(t, resolve.TieKeepCanonical, cfg.GetTiePolicy())
	assert.Equal(t, 7, cfg.GetFirstRow())
	assert.Equal(t, 3, cfg.GetRowStep())

	cfg.SetTiePolicy("nope")
	assert.Error(t, cfg.Validate())
}

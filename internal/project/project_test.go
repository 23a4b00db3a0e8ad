package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnest-next/gonest/internal/model"
)

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := model.DefaultConfig()
	cfg.Rotations = 8
	cfg.MergeLines = true
	cfg.PlacementType = model.PlacementConvexHull

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigMissingReturnsDefaults(t *testing.T) {
	loaded, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), loaded)
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rotations": 8}`), 0o644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Rotations)
	assert.Equal(t, model.DefaultConfig().Scale, loaded.Scale, "unset fields keep their defaults")
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestPartsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parts.json")

	parts := []model.Part{
		model.NewPart(model.Rect(100, 50), 2),
	}
	data := `[{"source":"` + parts[0].Source + `","id":"` + parts[0].ID + `","quantity":2,"rotation":0,"polygon":{"points":[{"x":0,"y":0,"exact":true},{"x":100,"y":0,"exact":true},{"x":100,"y":50,"exact":true},{"x":0,"y":50,"exact":true}]}}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	loaded, err := LoadParts(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, parts[0].Source, loaded[0].Source)
	assert.Equal(t, 2, loaded[0].Quantity)
	require.Len(t, loaded[0].Polygon.Points, 4)
	assert.True(t, loaded[0].Polygon.Points[0].Exact)
}

func TestLoadPartsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parts.json")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))
	_, err := LoadParts(path)
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidInput, model.KindOf(err))
}

func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")

	result := model.NestResult{
		Fitness:     123.4,
		Utilisation: 0.87,
		Sheets: []model.SheetLayout{
			{SheetSource: "s", SheetID: "s", Placements: []model.Placement{
				{Source: "a", ID: "a-1", X: 10, Y: 20, Rotation: 90},
			}},
		},
	}
	require.NoError(t, SaveResult(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fitness": 123.4`)
	assert.Contains(t, string(data), `"a-1"`)
}

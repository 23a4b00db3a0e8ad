package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 72.0, cfg.Scale)
	assert.Equal(t, 1e7, cfg.ClipperScale)
	assert.Equal(t, PlacementGravity, cfg.PlacementType)
}

func TestNormalizeClampsAndDefaults(t *testing.T) {
	cfg := NestConfig{Scale: 72, Rotations: 0, Threads: 0, PopulationSize: 0, MutationRate: 99}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 1, cfg.Rotations)
	assert.Equal(t, 1, cfg.Threads)
	assert.Equal(t, 1, cfg.PopulationSize)
	assert.Equal(t, 50, cfg.MutationRate)
	assert.Equal(t, PlacementGravity, cfg.PlacementType)
	assert.Equal(t, 36.0, cfg.MergeMinLength, "merge minimum defaults to half the scale")
}

func TestNormalizeRejectsContradictions(t *testing.T) {
	bad := NestConfig{Scale: 0}
	err := bad.Normalize()
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	bad = NestConfig{Scale: 72, TimeRatio: 2}
	require.Error(t, bad.Normalize())

	bad = NestConfig{Scale: 72, PlacementType: "corner"}
	require.Error(t, bad.Normalize())
}

func TestRotationGrid(t *testing.T) {
	cfg := NestConfig{Rotations: 4}
	assert.Equal(t, []float64{0, 90, 180, 270}, cfg.RotationGrid())

	cfg.Rotations = 1
	assert.Equal(t, []float64{0}, cfg.RotationGrid())
}

func TestRect(t *testing.T) {
	r := Rect(30, 20)
	require.Len(t, r.Points, 4)
	for _, p := range r.Points {
		assert.True(t, p.Exact, "rectangle corners are exact")
	}
}

func TestPolygonCloneIsDeep(t *testing.T) {
	p := Rect(10, 10)
	p.Children = []*Polygon{Rect(2, 2)}
	cp := p.Clone()
	cp.Points[0].X = 99
	cp.Children[0].Points[0].X = 99
	assert.Equal(t, 0.0, p.Points[0].X)
	assert.Equal(t, 0.0, p.Children[0].Points[0].X)
}

func TestPolygonTranslate(t *testing.T) {
	p := Rect(10, 10)
	p.Children = []*Polygon{Rect(2, 2)}
	moved := p.Translate(5, -3)
	assert.Equal(t, 5.0, moved.Points[0].X)
	assert.Equal(t, -3.0, moved.Points[0].Y)
	assert.Equal(t, 5.0, moved.Children[0].Points[0].X)
	// Original untouched.
	assert.Equal(t, 0.0, p.Points[0].X)
}

func TestNewPartAssignsIDs(t *testing.T) {
	a := NewPart(Rect(10, 10), 2)
	b := NewPart(Rect(10, 10), 1)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ID, a.Source, "source defaults to the instance id")

	shared := Rect(5, 5)
	shared.Source = "shape-5"
	c := NewPart(shared, 1)
	assert.Equal(t, "shape-5", c.Source, "explicit source is preserved")
}

func TestNewSheetMarksSheet(t *testing.T) {
	s := NewSheet(Rect(100, 100))
	assert.True(t, s.Polygon.Sheet)
	assert.NotEmpty(t, s.ID)
}

func TestErrorKinds(t *testing.T) {
	err := NewError(KindDegenerateGeometry, "pair %s reduced to zero area", "a/b")
	assert.Equal(t, KindDegenerateGeometry, KindOf(err))
	assert.Contains(t, err.Error(), "degenerate_geometry")

	wrapped := WrapError(KindCancelled, errors.New("context deadline exceeded"))
	assert.Equal(t, KindCancelled, KindOf(wrapped))
	assert.Nil(t, WrapError(KindCancelled, nil))

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

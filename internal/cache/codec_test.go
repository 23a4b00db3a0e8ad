package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnest-next/gonest/internal/model"
)

func samplePolygon() *model.Polygon {
	return &model.Polygon{
		Points: []model.Point{
			{X: 0, Y: 0, Exact: true},
			{X: 100.25, Y: 0, Exact: true},
			{X: 100.25, Y: 60.5, Exact: false},
			{X: 0, Y: 60.5, Exact: true},
		},
		Children: []*model.Polygon{
			{
				Points: []model.Point{
					{X: 10, Y: 10},
					{X: 20, Y: 10},
					{X: 20, Y: 20},
				},
				Children: []*model.Polygon{
					{Points: []model.Point{{X: 12, Y: 12}, {X: 14, Y: 12}, {X: 13, Y: 14}}},
				},
			},
		},
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	original := samplePolygon()
	decoded, err := DecodePolygon(EncodePolygon(original))
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, original.Points, decoded.Points)
	require.Len(t, decoded.Children, 1)
	assert.Equal(t, original.Children[0].Points, decoded.Children[0].Points)
	require.Len(t, decoded.Children[0].Children, 1)
	assert.Equal(t, original.Children[0].Children[0].Points, decoded.Children[0].Children[0].Points)
}

func TestNilPolygonRoundTrip(t *testing.T) {
	decoded, err := DecodePolygon(EncodePolygon(nil))
	require.NoError(t, err)
	assert.Nil(t, decoded, "the cached no-fit answer survives the round trip")
}

func TestKeyRoundTrip(t *testing.T) {
	key := Key{ASource: "sheet-1", BSource: "part-7", ARot: 0, BRot: 270, Inside: true}
	decoded, err := DecodeKey(EncodeKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestKeyStringDistinguishesInside(t *testing.T) {
	outer := Key{ASource: "a", BSource: "b"}
	inner := outer
	inner.Inside = true
	assert.NotEqual(t, outer.String(), inner.String())
}

func TestDecodeTruncatedFails(t *testing.T) {
	data := EncodePolygon(samplePolygon())
	_, err := DecodePolygon(data[:len(data)-3])
	assert.Error(t, err)

	_, err = DecodeKey([]byte{1, 0})
	assert.Error(t, err)
}

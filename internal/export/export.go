// Package export renders nest results to PDF layout sheets, QR-coded part
// labels, and DXF drawings.
package export

import "github.com/deepnest-next/gonest/internal/model"

// Geometry resolves placements back to absolute outlines. The engine's
// Nester satisfies it.
type Geometry interface {
	PlacedPolygon(p model.Placement) *model.Polygon
	SheetPolygon(source string) *model.Polygon
}

// partColor represents an RGB color for a placed part.
type partColor struct {
	R, G, B int
}

var partColors = []partColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

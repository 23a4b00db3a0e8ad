package export

import (
	"fmt"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"

	"github.com/deepnest-next/gonest/internal/model"
)

// ExportDXF writes the nested layout as a DXF drawing: one layer per
// sheet, with sheet outlines and placed part outlines drawn as line
// entities. Coordinates are in internal units, sheets laid out side by
// side with a gap.
func ExportDXF(path string, result model.NestResult, geo Geometry) error {
	if len(result.Sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}

	d := dxf.NewDrawing()

	offsetX := 0.0
	const sheetGap = 50.0

	for i, layout := range result.Sheets {
		sheetPoly := geo.SheetPolygon(layout.SheetSource)
		if sheetPoly == nil {
			continue
		}

		layerName := fmt.Sprintf("SHEET_%d", i+1)
		if _, err := d.AddLayer(layerName, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
			return fmt.Errorf("add layer %s: %w", layerName, err)
		}

		width := drawLoops(d, sheetPoly, offsetX)

		for _, p := range layout.Placements {
			outline := geo.PlacedPolygon(p)
			if outline == nil {
				continue
			}
			drawLoops(d, outline, offsetX)
		}

		offsetX += width + sheetGap
	}

	return d.SaveAs(path)
}

// drawLoops draws the polygon's outer loop and holes as closed line
// chains, returning the outline width for sheet layout spacing.
func drawLoops(d *drawing.Drawing, poly *model.Polygon, offsetX float64) float64 {
	minX, maxX := poly.Points[0].X, poly.Points[0].X
	drawLoop(d, poly.Points, offsetX)
	for _, p := range poly.Points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
	}
	for _, hole := range poly.Children {
		drawLoop(d, hole.Points, offsetX)
	}
	return maxX - minX
}

func drawLoop(d *drawing.Drawing, points []model.Point, offsetX float64) {
	n := len(points)
	for i := 0; i < n; i++ {
		a := points[i]
		b := points[(i+1)%n]
		d.Line(a.X+offsetX, a.Y, 0, b.X+offsetX, b.Y, 0)
	}
}

package export

import (
	"fmt"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
)

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	statsHeight  = 20.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// ExportPDF generates a PDF document of the nest result. Each sheet is
// rendered on its own page with the placed outlines drawn to scale,
// followed by a summary page with overall statistics.
func ExportPDF(path string, result model.NestResult, cfg model.NestConfig, geo Geometry) error {
	if len(result.Sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	for i, layout := range result.Sheets {
		pdf.AddPage()
		renderSheetPage(pdf, layout, geo, i+1)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, result, cfg)

	return pdf.OutputFileAndClose(path)
}

// renderSheetPage draws a single nested sheet on the current PDF page.
func renderSheetPage(pdf *fpdf.Fpdf, layout model.SheetLayout, geo Geometry, sheetNum int) {
	sheetPoly := geo.SheetPolygon(layout.SheetSource)
	if sheetPoly == nil {
		return
	}
	bounds := geometry.PolygonBounds(sheetPoly.Points)

	// Title
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("Sheet %d: %s (%.0f x %.0f)", sheetNum, layout.SheetSource, bounds.Width, bounds.Height)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	// Stats line
	var mergedLength float64
	for _, p := range layout.Placements {
		mergedLength += p.MergedLength
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Parts: %d | Merged cut length: %.1f", len(layout.Placements), mergedLength)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")

	// Scale the sheet into the drawing area
	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - statsHeight
	scale := math.Min(drawWidth/bounds.Width, drawHeight/bounds.Height)

	canvasW := bounds.Width * scale
	offsetX := marginLeft + (drawWidth-canvasW)/2
	offsetY := drawAreaTop

	toPage := func(p model.Point) (float64, float64) {
		return offsetX + (p.X-bounds.X)*scale, offsetY + (p.Y-bounds.Y)*scale
	}

	// Sheet outline and holes
	pdf.SetFillColor(210, 180, 140)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	drawPolygon(pdf, sheetPoly.Points, toPage, "FD")
	pdf.SetFillColor(255, 255, 255)
	for _, hole := range sheetPoly.Children {
		drawPolygon(pdf, hole.Points, toPage, "FD")
	}

	// Placed parts
	for i, p := range layout.Placements {
		outline := geo.PlacedPolygon(p)
		if outline == nil {
			continue
		}
		col := partColors[i%len(partColors)]
		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		drawPolygon(pdf, outline.Points, toPage, "FD")

		pdf.SetFillColor(210, 180, 140)
		for _, hole := range outline.Children {
			drawPolygon(pdf, hole.Points, toPage, "FD")
		}

		// Merged (shared) edges highlighted
		if len(p.MergedSegments) > 0 {
			pdf.SetDrawColor(200, 0, 0)
			pdf.SetLineWidth(0.6)
			for _, seg := range p.MergedSegments {
				x1, y1 := toPage(seg.Start)
				x2, y2 := toPage(seg.End)
				pdf.Line(x1, y1, x2, y2)
			}
		}

		// Part id at the outline's bounding-box centre when the part is large enough
		ob := geometry.PolygonBounds(outline.Points)
		if ob.Width*scale > 15 && ob.Height*scale > 8 {
			pdf.SetFont("Helvetica", "", 6)
			pdf.SetTextColor(0, 0, 0)
			labelW := pdf.GetStringWidth(p.ID)
			cx, cy := toPage(model.Point{X: ob.X + ob.Width/2, Y: ob.Y + ob.Height/2})
			pdf.SetXY(cx-labelW/2, cy-2)
			pdf.CellFormat(labelW, 4, p.ID, "", 0, "C", false, 0, "")
		}
	}
	pdf.SetTextColor(0, 0, 0)
}

// drawPolygon renders a closed loop through the page transform.
func drawPolygon(pdf *fpdf.Fpdf, points []model.Point, toPage func(model.Point) (float64, float64), style string) {
	if len(points) < 3 {
		return
	}
	pagePoints := make([]fpdf.PointType, len(points))
	for i, p := range points {
		x, y := toPage(p)
		pagePoints[i] = fpdf.PointType{X: x, Y: y}
	}
	pdf.Polygon(pagePoints, style)
}

// renderSummaryPage draws the final summary page with overall statistics.
func renderSummaryPage(pdf *fpdf.Fpdf, result model.NestResult, cfg model.NestConfig) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Nesting Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	summaryItems := []struct {
		label string
		value string
	}{
		{"Sheets Opened", fmt.Sprintf("%d", len(result.Sheets))},
		{"Parts Placed", fmt.Sprintf("%d", result.PlacedCount())},
		{"Unplaced Parts", fmt.Sprintf("%d", len(result.Unplaced))},
		{"Utilisation", fmt.Sprintf("%.1f%%", result.Utilisation*100)},
		{"Merged Cut Length", fmt.Sprintf("%.1f", result.MergedLength)},
		{"Fitness", fmt.Sprintf("%.3f", result.Fitness)},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 7
	}

	if len(result.Unplaced) > 0 {
		y += 5
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(200, 7, "WARNING: Unplaced Parts", "", 0, "L", false, 0, "")
		y += 8

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		for _, id := range result.Unplaced {
			pdf.SetXY(marginLeft+5, y)
			pdf.CellFormat(200, 5, "- "+id, "", 0, "L", false, 0, "")
			y += 5
		}
	}

	// Engine settings summary
	y += 8
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Nest Settings", "", 0, "L", false, 0, "")
	y += 9

	settingsItems := []struct {
		label string
		value string
	}{
		{"Placement Strategy", string(cfg.PlacementType)},
		{"Rotations", fmt.Sprintf("%d", cfg.Rotations)},
		{"Spacing", fmt.Sprintf("%.2f", cfg.Spacing)},
		{"Population", fmt.Sprintf("%d", cfg.PopulationSize)},
		{"Mutation Rate", fmt.Sprintf("%d%%", cfg.MutationRate)},
		{"Merge Lines", fmt.Sprintf("%t", cfg.MergeLines)},
	}

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range settingsItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(50, 5, item.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 5, item.value, "", 0, "L", false, 0, "")
		y += 5
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by gonest", "", 0, "C", false, 0, "")
}

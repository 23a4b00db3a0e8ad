package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
)

// stubGeometry resolves placements against fixed rectangles, standing in
// for the engine.
type stubGeometry struct {
	sheets map[string]*model.Polygon
	parts  map[string]*model.Polygon
}

func (s stubGeometry) PlacedPolygon(p model.Placement) *model.Polygon {
	source, ok := s.parts[p.Source]
	if !ok {
		return nil
	}
	rotated := geometry.RotatePolygon(source, p.Rotation)
	dx := p.X - rotated.Points[0].X
	dy := p.Y - rotated.Points[0].Y
	out := rotated.Translate(dx, dy)
	out.ID = p.ID
	return out
}

func (s stubGeometry) SheetPolygon(source string) *model.Polygon {
	return s.sheets[source]
}

func testFixture() (model.NestResult, stubGeometry) {
	geo := stubGeometry{
		sheets: map[string]*model.Polygon{"sheet": model.Rect(200, 100)},
		parts:  map[string]*model.Polygon{"sq": model.Rect(100, 100)},
	}
	result := model.NestResult{
		Fitness:     20000,
		Utilisation: 1,
		Sheets: []model.SheetLayout{
			{
				SheetSource: "sheet",
				SheetID:     "sheet",
				Placements: []model.Placement{
					{Source: "sq", ID: "sq-1", X: 0, Y: 0},
					{Source: "sq", ID: "sq-2", X: 100, Y: 0, MergedLength: 100,
						MergedSegments: []model.MergedSegment{{
							Start: model.Point{X: 100, Y: 0, Exact: true},
							End:   model.Point{X: 100, Y: 100, Exact: true},
						}}},
				},
			},
		},
		MergedLength: 100,
	}
	return result, geo
}

func TestExportPDF(t *testing.T) {
	result, geo := testFixture()
	path := filepath.Join(t.TempDir(), "layout.pdf")

	if err := ExportPDF(path, result, model.DefaultConfig(), geo); err != nil {
		t.Fatalf("export pdf: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data[:5]), "%PDF-") {
		t.Errorf("output is not a PDF")
	}
}

func TestExportPDFEmptyResult(t *testing.T) {
	_, geo := testFixture()
	err := ExportPDF(filepath.Join(t.TempDir(), "x.pdf"), model.NestResult{}, model.DefaultConfig(), geo)
	if err == nil {
		t.Errorf("empty result should refuse to export")
	}
}

func TestExportLabels(t *testing.T) {
	result, geo := testFixture()
	path := filepath.Join(t.TempDir(), "labels.pdf")

	if err := ExportLabels(path, result, geo); err != nil {
		t.Fatalf("export labels: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat labels: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("labels PDF is empty")
	}
}

func TestExportLabelsNoPlacements(t *testing.T) {
	_, geo := testFixture()
	empty := model.NestResult{Sheets: []model.SheetLayout{{SheetSource: "sheet"}}}
	if err := ExportLabels(filepath.Join(t.TempDir(), "x.pdf"), empty, geo); err == nil {
		t.Errorf("no placements should refuse to export")
	}
}

func TestExportDXF(t *testing.T) {
	result, geo := testFixture()
	path := filepath.Join(t.TempDir(), "layout.dxf")

	if err := ExportDXF(path, result, geo); err != nil {
		t.Fatalf("export dxf: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dxf: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "ENTITIES") {
		t.Errorf("DXF output missing ENTITIES section")
	}
	if !strings.Contains(content, "SHEET_1") {
		t.Errorf("DXF output missing the sheet layer")
	}
}

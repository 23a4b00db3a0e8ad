package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectCSVDelimiter(t *testing.T) {
	cases := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "label,width,height,qty\nA,100,50,2\n", ','},
		{"semicolon", "label;width;height;qty\nA;100;50;2\n", ';'},
		{"tab", "label\twidth\theight\tqty\nA\t100\t50\t2\n", '\t'},
		{"pipe", "label|width|height|qty\nA|100|50|2\n", '|'},
	}
	for _, tc := range cases {
		if got := DetectCSVDelimiter([]byte(tc.data)); got != tc.want {
			t.Errorf("%s: detected %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDetectColumnsWithHeader(t *testing.T) {
	mapping, hasHeader := DetectColumns([]string{"Part Name", "W", "H", "Qty", "Rotation"})
	if !hasHeader {
		t.Fatal("expected header detection")
	}
	if mapping.Label != 0 || mapping.Width != 1 || mapping.Height != 2 || mapping.Quantity != 3 || mapping.Rotation != 4 {
		t.Errorf("unexpected mapping %+v", mapping)
	}
}

func TestDetectColumnsPositionalFallback(t *testing.T) {
	mapping, hasHeader := DetectColumns([]string{"A", "100", "50", "2"})
	if hasHeader {
		t.Fatal("numeric row is not a header")
	}
	if mapping.Label != 0 || mapping.Width != 1 || mapping.Height != 2 || mapping.Quantity != 3 {
		t.Errorf("unexpected positional mapping %+v", mapping)
	}
}

func TestImportCSVFromReader(t *testing.T) {
	csv := strings.NewReader("label,width,height,quantity,rotation\nShelf,600,300,4,0\nDoor,450,700,2,90\n")
	result := ImportCSVFromReader(csv, ',')

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(result.Parts))
	}

	shelf := result.Parts[0]
	if shelf.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", shelf.Quantity)
	}
	if len(shelf.Polygon.Points) != 4 {
		t.Errorf("expected rectangular outline")
	}
	if shelf.Source != "rect:600x300" {
		t.Errorf("identical rectangles should share a source, got %q", shelf.Source)
	}

	door := result.Parts[1]
	if door.Rotation != 90 {
		t.Errorf("expected default rotation 90, got %f", door.Rotation)
	}
}

func TestImportSharedSources(t *testing.T) {
	csv := strings.NewReader("label,width,height,quantity\nA,100,50,1\nB,100,50,1\nC,200,50,1\n")
	result := ImportCSVFromReader(csv, ',')
	if len(result.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(result.Parts))
	}
	if result.Parts[0].Source != result.Parts[1].Source {
		t.Errorf("same dimensions must share an NFP source")
	}
	if result.Parts[0].Source == result.Parts[2].Source {
		t.Errorf("different dimensions must not share a source")
	}
	if result.Parts[0].ID == result.Parts[1].ID {
		t.Errorf("instances keep unique ids")
	}
}

func TestImportRejectsBadRows(t *testing.T) {
	csv := strings.NewReader("label,width,height,quantity\nGood,100,50,1\nBad,-5,50,1\nWorse,abc,50,1\n")
	result := ImportCSVFromReader(csv, ',')
	if len(result.Parts) != 1 {
		t.Errorf("expected 1 valid part, got %d", len(result.Parts))
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 row errors, got %v", result.Errors)
	}
}

func TestImportInvalidRotationWarns(t *testing.T) {
	csv := strings.NewReader("label,width,height,quantity,rotation\nA,100,50,1,400\n")
	result := ImportCSVFromReader(csv, ',')
	if len(result.Parts) != 1 {
		t.Fatalf("part should import despite the bad rotation")
	}
	if result.Parts[0].Rotation != 0 {
		t.Errorf("bad rotation defaults to 0")
	}
	if len(result.Warnings) == 0 {
		t.Errorf("expected a warning for the bad rotation")
	}
}

func TestImportCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parts.csv")
	content := "label;width;height;quantity\nPanel;600;400;3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result := ImportCSV(path)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Parts) != 1 || result.Parts[0].Quantity != 3 {
		t.Errorf("semicolon CSV should import one part with quantity 3")
	}
}

func TestImportEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := ImportCSV(path)
	if len(result.Errors) == 0 {
		t.Errorf("empty file should report an error")
	}
}

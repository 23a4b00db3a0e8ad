package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteConvergence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	samples := []Sample{
		{Generation: 0, Fitness: 25000},
		{Generation: 2, Fitness: 21000},
		{Generation: 5, Fitness: 20500},
	}

	if err := WriteConvergence(path, samples); err != nil {
		t.Fatalf("write convergence: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "echarts") {
		t.Errorf("report should embed an echarts chart")
	}
	if !strings.Contains(content, "Nesting convergence") {
		t.Errorf("report should carry its title")
	}
}

func TestWriteConvergenceEmpty(t *testing.T) {
	if err := WriteConvergence(filepath.Join(t.TempDir(), "x.html"), nil); err == nil {
		t.Errorf("no samples should refuse to render")
	}
}

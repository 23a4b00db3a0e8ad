package engine

import (
	"context"
	"testing"

	"github.com/deepnest-next/gonest/internal/cache"
	"github.com/deepnest-next/gonest/internal/model"
)

func rectPart(source string, w, h float64, qty int) model.Part {
	poly := model.Rect(w, h)
	poly.Source = source
	poly.ID = source
	return model.Part{Source: source, ID: source, Quantity: qty, Polygon: poly}
}

func rectSheet(source string, w, h float64) model.Sheet {
	poly := model.Rect(w, h)
	poly.Source = source
	poly.ID = source
	poly.Sheet = true
	return model.Sheet{Source: source, ID: source, Polygon: poly}
}

func testConfig() model.NestConfig {
	cfg := model.DefaultConfig()
	cfg.Rotations = 1
	cfg.Threads = 2
	cfg.PopulationSize = 2
	cfg.PlacementType = model.PlacementBox
	return cfg
}

// runNest executes a bounded run, draining both streams, and returns the
// best result plus every emitted result in order.
func runNest(t *testing.T, parts []model.Part, sheets []model.Sheet, cfg model.NestConfig, store *cache.Cache, seed int64, generations int) (model.NestResult, []model.NestResult, *Nester) {
	t.Helper()
	nester, err := New(parts, sheets, cfg, store, seed)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	nester.MaxGenerations = generations

	done := make(chan struct{})
	var emitted []model.NestResult
	go func() {
		defer close(done)
		for r := range nester.Results() {
			emitted = append(emitted, r)
		}
	}()
	go func() {
		for range nester.Progress() {
		}
	}()

	best, err := nester.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	<-done
	return best, emitted, nester
}

func TestExactFitSinglePart(t *testing.T) {
	parts := []model.Part{rectPart("sq100", 100, 100, 1)}
	sheets := []model.Sheet{rectSheet("sheet100", 100, 100)}

	best, _, _ := runNest(t, parts, sheets, testConfig(), nil, 0, 1)

	if len(best.Sheets) != 1 {
		t.Fatalf("expected one sheet opened, got %d", len(best.Sheets))
	}
	placements := best.Sheets[0].Placements
	if len(placements) != 1 {
		t.Fatalf("expected one placement, got %d", len(placements))
	}
	p := placements[0]
	if p.X != 0 || p.Y != 0 || p.Rotation != 0 {
		t.Errorf("exact fit should place at (0, 0, 0), got (%f, %f, %f)", p.X, p.Y, p.Rotation)
	}
	if best.Utilisation < 1-1e-9 {
		t.Errorf("expected utilisation 1.0, got %f", best.Utilisation)
	}
	if best.MergedLength != 0 {
		t.Errorf("merge lines disabled, expected zero merged length, got %f", best.MergedLength)
	}
	if len(best.Unplaced) != 0 {
		t.Errorf("expected no unplaced parts")
	}
}

func TestTileSquares(t *testing.T) {
	// 25 ten-unit squares tile the 50x50 sheet as an exact 5x5 grid.
	parts := []model.Part{rectPart("sq10", 10, 10, 25)}
	sheets := []model.Sheet{rectSheet("sheet50", 50, 50)}

	best, _, _ := runNest(t, parts, sheets, testConfig(), nil, 0, 1)

	if len(best.Sheets) != 1 {
		t.Fatalf("expected one sheet opened, got %d", len(best.Sheets))
	}
	if got := len(best.Sheets[0].Placements); got != 25 {
		t.Fatalf("expected 25 placements, got %d", got)
	}
	if best.Utilisation < 1-1e-6 {
		t.Errorf("tiling should reach utilisation 1.0, got %f", best.Utilisation)
	}

	// No two parts share an anchor position.
	seen := make(map[[2]float64]bool)
	for _, p := range best.Sheets[0].Placements {
		key := [2]float64{p.X, p.Y}
		if seen[key] {
			t.Errorf("duplicate placement at (%f, %f)", p.X, p.Y)
		}
		seen[key] = true
	}
}

func TestMergeLinesPaysOff(t *testing.T) {
	parts := []model.Part{rectPart("sq100", 100, 100, 2)}
	sheets := []model.Sheet{rectSheet("sheet200x100", 200, 100)}

	cfg := testConfig()
	cfg.MergeLines = true
	cfg.TimeRatio = 1

	merged, _, _ := runNest(t, parts, sheets, cfg, nil, 0, 1)

	if merged.PlacedCount() != 2 {
		t.Fatalf("expected both squares placed, got %d", merged.PlacedCount())
	}
	if merged.MergedLength < 100-1e-6 || merged.MergedLength > 100+1e-6 {
		t.Errorf("side-by-side squares share one 100-long edge, got merged length %f", merged.MergedLength)
	}

	cfg.MergeLines = false
	plain, _, _ := runNest(t, parts, sheets, cfg, nil, 0, 1)
	if plain.PlacedCount() != 2 {
		t.Fatalf("expected both squares placed without merging too")
	}
	if merged.Fitness >= plain.Fitness {
		t.Errorf("merged fitness %f should beat unmerged %f", merged.Fitness, plain.Fitness)
	}
}

func TestHoleAccommodation(t *testing.T) {
	sheetPoly := model.Rect(200, 200)
	sheetPoly.Source = "holed"
	sheetPoly.ID = "holed"
	sheetPoly.Sheet = true
	sheetPoly.Children = []*model.Polygon{
		{Points: []model.Point{
			{X: 50, Y: 50}, {X: 150, Y: 50}, {X: 150, Y: 150}, {X: 50, Y: 150},
		}},
	}
	sheets := []model.Sheet{{Source: "holed", ID: "holed", Polygon: sheetPoly}}
	parts := []model.Part{rectPart("sq80", 80, 80, 1)}

	cfg := testConfig()
	cfg.Simplify = false

	best, _, _ := runNest(t, parts, sheets, cfg, nil, 0, 1)

	if best.PlacedCount() != 1 {
		t.Fatalf("the hole admits the part, expected it placed")
	}
	p := best.Sheets[0].Placements[0]
	// The outer band is only 50 wide, so the placement must anchor inside
	// the hole: [50, 70] on both axes.
	if p.X < 50-1e-6 || p.X > 70+1e-6 || p.Y < 50-1e-6 || p.Y > 70+1e-6 {
		t.Errorf("placement (%f, %f) is not inside the hole", p.X, p.Y)
	}
}

func TestCapacityExhausted(t *testing.T) {
	parts := []model.Part{rectPart("sq20", 20, 20, 1)}
	small := []model.Sheet{rectSheet("sheet10", 10, 10)}

	best, _, _ := runNest(t, parts, small, testConfig(), nil, 0, 1)

	if best.PlacedCount() != 0 {
		t.Fatalf("oversized part cannot be placed")
	}
	if len(best.Unplaced) != 1 {
		t.Fatalf("expected one unplaced part, got %d", len(best.Unplaced))
	}
	if best.Fitness < unplacedPenalty {
		t.Errorf("unplaced parts must dominate fitness, got %f", best.Fitness)
	}

	// A subsequent sheet of sufficient size admits the part.
	withBig := []model.Sheet{rectSheet("sheet10", 10, 10), rectSheet("sheet30", 30, 30)}
	best, _, _ = runNest(t, parts, withBig, testConfig(), nil, 0, 1)
	if best.PlacedCount() != 1 {
		t.Fatalf("expected the part on the larger sheet")
	}
	if best.Sheets[0].SheetSource != "sheet30" {
		t.Errorf("expected placement on sheet30, got %s", best.Sheets[0].SheetSource)
	}
	if len(best.Unplaced) != 0 {
		t.Errorf("expected no unplaced parts")
	}
}

func TestDeterminism(t *testing.T) {
	parts := []model.Part{
		rectPart("a", 40, 30, 2),
		rectPart("b", 25, 25, 2),
		rectPart("c", 60, 10, 1),
	}
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}
	cfg := testConfig()
	cfg.Rotations = 2
	cfg.PopulationSize = 4

	run := func() (model.NestResult, []model.NestResult) {
		best, emitted, _ := runNest(t, parts, sheets, cfg, nil, 42, 3)
		return best, emitted
	}

	best1, emitted1 := run()
	best2, emitted2 := run()

	if best1.Fitness != best2.Fitness {
		t.Errorf("same seed, different fitness: %f vs %f", best1.Fitness, best2.Fitness)
	}
	if len(emitted1) != len(emitted2) {
		t.Fatalf("same seed, different emission counts: %d vs %d", len(emitted1), len(emitted2))
	}
	for i := range emitted1 {
		a, b := emitted1[i], emitted2[i]
		if a.Fitness != b.Fitness || a.Generation != b.Generation || a.PlacedCount() != b.PlacedCount() {
			t.Errorf("emission %d differs between identical runs", i)
		}
	}
	for si := range best1.Sheets {
		pa := best1.Sheets[si].Placements
		pb := best2.Sheets[si].Placements
		for pi := range pa {
			if pa[pi].X != pb[pi].X || pa[pi].Y != pb[pi].Y || pa[pi].Rotation != pb[pi].Rotation {
				t.Errorf("placement %d/%d differs between identical runs", si, pi)
			}
		}
	}
}

func TestMonotoneImprovement(t *testing.T) {
	parts := []model.Part{
		rectPart("a", 40, 30, 2),
		rectPart("b", 25, 25, 3),
	}
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}
	cfg := testConfig()
	cfg.PopulationSize = 5

	_, emitted, _ := runNest(t, parts, sheets, cfg, nil, 7, 4)

	if len(emitted) == 0 {
		t.Fatal("expected at least one emitted result")
	}
	for i := 1; i < len(emitted); i++ {
		if emitted[i].Fitness >= emitted[i-1].Fitness {
			t.Errorf("emission %d did not strictly improve: %f then %f", i, emitted[i-1].Fitness, emitted[i].Fitness)
		}
	}
}

func TestRotationGridProperty(t *testing.T) {
	parts := []model.Part{rectPart("a", 40, 20, 3)}
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}
	cfg := testConfig()
	cfg.Rotations = 4
	cfg.PopulationSize = 4

	best, _, _ := runNest(t, parts, sheets, cfg, nil, 3, 3)

	allowed := map[float64]bool{0: true, 90: true, 180: true, 270: true}
	for _, sheet := range best.Sheets {
		for _, p := range sheet.Placements {
			if !allowed[p.Rotation] {
				t.Errorf("rotation %f is off the 4-step grid", p.Rotation)
			}
		}
	}
}

func TestCacheReuseAcrossRuns(t *testing.T) {
	parts := []model.Part{rectPart("a", 40, 30, 2), rectPart("b", 25, 25, 2)}
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}
	cfg := testConfig()
	cfg.CacheDir = t.TempDir()

	storeA, err := cache.Open(cfg.CacheDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cacheA := cache.New(storeA)
	bestA, _, _ := runNest(t, parts, sheets, cfg, cacheA, 1, 2)
	if cacheA.Stats().Computes == 0 {
		t.Fatal("first run must compute NFPs")
	}
	if err := cacheA.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	storeB, err := cache.Open(cfg.CacheDir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	cacheB := cache.New(storeB)
	bestB, _, _ := runNest(t, parts, sheets, cfg, cacheB, 1, 2)
	if err := cacheB.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if bestA.Fitness != bestB.Fitness {
		t.Errorf("cached run should reproduce fitness %f, got %f", bestA.Fitness, bestB.Fitness)
	}
	if got := cacheB.Stats().Computes; got != 0 {
		t.Errorf("second run should spend no time in NFP computation, computed %d", got)
	}
}

func TestCancellationReturnsBest(t *testing.T) {
	parts := []model.Part{rectPart("a", 30, 30, 3)}
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}

	nester, err := New(parts, sheets, testConfig(), nil, 0)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Cancel after the first emitted result.
		for range nester.Results() {
			cancel()
		}
	}()
	go func() {
		for range nester.Progress() {
		}
	}()

	best, runErr := nester.Run(ctx)
	if runErr == nil {
		t.Fatal("expected a cancellation error")
	}
	if model.KindOf(runErr) != model.KindCancelled {
		t.Errorf("expected cancelled kind, got %v", model.KindOf(runErr))
	}
	if best.PlacedCount() == 0 {
		t.Errorf("best-so-far should survive cancellation")
	}
	cancel()
}

func TestInvalidInputRejected(t *testing.T) {
	sheets := []model.Sheet{rectSheet("sheet", 100, 100)}

	degenerate := model.Part{
		Source: "line", ID: "line", Quantity: 1,
		Polygon: &model.Polygon{Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}},
	}
	_, err := New([]model.Part{degenerate}, sheets, testConfig(), nil, 0)
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("two-point part: expected invalid_input, got %v", err)
	}

	zeroQty := rectPart("a", 10, 10, 1)
	zeroQty.Quantity = 0
	_, err = New([]model.Part{zeroQty}, sheets, testConfig(), nil, 0)
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("zero quantity: expected invalid_input, got %v", err)
	}

	bowtie := model.Part{
		Source: "bowtie", ID: "bowtie", Quantity: 1,
		Polygon: &model.Polygon{Points: []model.Point{
			{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10},
		}},
	}
	_, err = New([]model.Part{bowtie}, sheets, testConfig(), nil, 0)
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("self-intersecting part: expected invalid_input, got %v", err)
	}

	_, err = New(nil, sheets, testConfig(), nil, 0)
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("no parts: expected invalid_input, got %v", err)
	}
}

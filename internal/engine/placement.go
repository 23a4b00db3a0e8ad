package engine

import (
	"fmt"
	"log"
	"math"

	"github.com/deepnest-next/gonest/internal/cache"
	"github.com/deepnest-next/gonest/internal/clip"
	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
	"github.com/deepnest-next/gonest/internal/nfp"
)

// unplacedPenalty dominates every packing-quality term so that placing all
// parts always beats packing fewer parts well.
const unplacedPenalty = 1e8

// instance is one unit of part quantity with its optimiser-chosen rotation.
type instance struct {
	polygon  *model.Polygon // processed (spacing-offset) geometry, unrotated
	rotation float64
	area     float64 // positive area of the outer loop
}

// placed is an instance that landed on the current sheet.
type placed struct {
	inst     *instance
	rotated  *model.Polygon // polygon at its final rotation
	position model.Point    // anchor: rotated first vertex lands here
	cost     float64        // strategy cost of the chosen position
}

// placer runs the deterministic greedy placement pass for one candidate
// ordering. It owns no mutable state beyond the current pass.
type placer struct {
	cfg    model.NestConfig
	cache  *cache.Cache
	sheets []model.Sheet
}

// partialUnion memoises the union of the first count translated NFPs for a
// repeated (source, rotation) candidate on the current sheet. Correctness
// rests on placed parts being iterated in placement order, so the prefix
// the memo was built from is the prefix the next candidate sees.
type partialUnion struct {
	merged [][]model.Point
	count  int
}

type placementCandidate struct {
	pos  model.Point
	cost float64
}

// place runs the full multi-sheet pass and returns the result with fitness
// folded in. The progress callback receives the placement-phase fraction.
func (p *placer) place(instances []*instance, progress func(float64)) model.NestResult {
	result := model.NestResult{}
	remaining := instances
	total := len(instances)
	placedCount := 0
	var fitness float64
	var placedArea, usedSheetBBoxArea float64

	for sheetIdx := 0; sheetIdx < len(p.sheets) && len(remaining) > 0; sheetIdx++ {
		sheet := p.sheets[sheetIdx]
		sheetArea := math.Abs(geometry.PolygonArea(sheet.Polygon.Points))
		layout := model.SheetLayout{SheetSource: sheet.Source, SheetID: sheet.ID}

		var onSheet []placed
		var deferred []*instance
		memo := make(map[string]partialUnion)

		for _, inst := range remaining {
			pl, ok := p.placeOne(sheet, inst, onSheet, memo)
			if !ok {
				deferred = append(deferred, inst)
				continue
			}
			onSheet = append(onSheet, pl)
			placedCount++
			if progress != nil {
				progress(0.5 + 0.5*float64(placedCount)/float64(total))
			}
		}

		if len(onSheet) == 0 {
			// Nothing fits this sheet; trying later sheets is still valid
			// since sheet sizes may differ.
			remaining = deferred
			continue
		}

		fitness += sheetArea

		var sheetPlacedArea float64
		var allPoints []model.Point
		for _, pl := range onSheet {
			sheetPlacedArea += pl.inst.area
			fitness += pl.cost
			allPoints = append(allPoints, translatedPoints(pl)...)
		}
		bbox := geometry.PolygonBounds(allPoints)
		usedSheetBBoxArea += bbox.Width * bbox.Height
		placedArea += sheetPlacedArea
		fitness += bbox.Width / sheetArea

		merged := mergeSheet(onSheet, p.cfg)
		layout.Placements = buildPlacements(onSheet, merged)
		result.MergedLength += merged.total
		result.Sheets = append(result.Sheets, layout)

		remaining = deferred
	}

	for _, inst := range remaining {
		result.Unplaced = append(result.Unplaced, inst.polygon.ID)
	}
	if len(remaining) > 0 {
		var unplacedArea, totalSheetArea float64
		for _, inst := range remaining {
			unplacedArea += inst.area
		}
		for _, sheet := range p.sheets {
			totalSheetArea += math.Abs(geometry.PolygonArea(sheet.Polygon.Points))
		}
		if totalSheetArea > 0 {
			fitness += unplacedPenalty * (unplacedArea / totalSheetArea)
		} else {
			fitness += unplacedPenalty
		}
	}

	fitness -= result.MergedLength * p.cfg.TimeRatio
	result.Fitness = fitness
	if usedSheetBBoxArea > 0 {
		result.Utilisation = math.Min(1, placedArea/usedSheetBBoxArea)
	}
	return result
}

// placeOne finds the best position for one instance on the sheet, walking
// the rotation grid when the declared rotation does not fit at all.
func (p *placer) placeOne(sheet model.Sheet, inst *instance, onSheet []placed, memo map[string]partialUnion) (placed, bool) {
	rotations := append([]float64{inst.rotation}, p.otherRotations(inst.rotation)...)
	for _, rot := range rotations {
		inner := p.innerNFP(sheet, inst, rot)
		if inner == nil {
			continue
		}
		pl, ok := p.bestPosition(inst, rot, inner, onSheet, memo)
		if ok {
			return pl, true
		}
	}
	return placed{}, false
}

func (p *placer) otherRotations(current float64) []float64 {
	var out []float64
	for _, r := range p.cfg.RotationGrid() {
		if r != current {
			out = append(out, r)
		}
	}
	return out
}

// innerNFP fetches (computing on miss) the inner fit of the part in the
// sheet. A nil return means the part cannot fit this sheet at this
// rotation.
func (p *placer) innerNFP(sheet model.Sheet, inst *instance, rot float64) *model.Polygon {
	key := cache.Key{
		ASource: sheet.Source,
		BSource: inst.polygon.Source,
		ARot:    0,
		BRot:    rot,
		Inside:  true,
	}
	poly, err := p.cache.GetOrCompute(key, func() (*model.Polygon, error) {
		return nfp.Compute(nfp.Request{
			A:    sheet.Polygon,
			B:    inst.polygon,
			BRot: rot,
			// Sheet holes always participate: simplify drops holes from
			// part-to-part NFPs only.
			Inside: true,
		}, false, p.cfg.ClipperScale)
	})
	if err != nil {
		// A failed sheet NFP closes the door on this rotation only.
		log.Printf("placement: inner NFP %s/%s@%g failed: %v", sheet.Source, inst.polygon.Source, rot, err)
		return nil
	}
	return poly
}

// outerNFP fetches the orbit of candidate around a placed part.
func (p *placer) outerNFP(a *placed, inst *instance, rot float64) *model.Polygon {
	key := cache.Key{
		ASource: a.inst.polygon.Source,
		BSource: inst.polygon.Source,
		ARot:    a.rotated.Rotation,
		BRot:    rot,
		Inside:  false,
	}
	poly, err := p.cache.GetOrCompute(key, func() (*model.Polygon, error) {
		return nfp.Compute(nfp.Request{
			A:    a.inst.polygon,
			B:    inst.polygon,
			ARot: a.rotated.Rotation,
			BRot: rot,
		}, p.cfg.Simplify, p.cfg.ClipperScale)
	})
	if err != nil {
		log.Printf("placement: outer NFP %s/%s failed: %v", a.inst.polygon.Source, inst.polygon.Source, err)
		return nil
	}
	return poly
}

// bestPosition evaluates every vertex of the feasible region and returns
// the cheapest placement under the configured strategy.
func (p *placer) bestPosition(inst *instance, rot float64, inner *model.Polygon, onSheet []placed, memo map[string]partialUnion) (placed, bool) {
	rotated := geometry.RotatePolygon(inst.polygon, rot)

	innerRings := polygonRings(inner)
	if len(onSheet) == 0 {
		// First on the sheet: lexicographic minimum of the inner NFP.
		pos, ok := lexicographicMin(innerRings)
		if !ok {
			return placed{}, false
		}
		return placed{inst: inst, rotated: rotated, position: pos}, true
	}

	forbidden, ok := p.forbiddenRegion(inst, rot, onSheet, memo)
	if !ok {
		return placed{}, false
	}
	feasible, err := clip.Difference(innerRings, forbidden, p.cfg.ClipperScale)
	if err != nil {
		log.Printf("placement: feasible region for %s failed: %v", inst.polygon.Source, err)
		return placed{}, false
	}
	checkForbidden := false
	if len(feasible) == 0 {
		// Degenerate inner NFPs (exact fits) collapse under differencing;
		// fall back to the raw inner vertices, screened against the
		// forbidden region point by point.
		feasible = innerRings
		checkForbidden = true
	}

	var placedPoints []model.Point
	var placedSegments []mergeSegment
	for _, pl := range onSheet {
		placedPoints = append(placedPoints, translatedPoints(pl)...)
		if p.cfg.MergeLines {
			placedSegments = append(placedSegments, exactSegments(pl.rotated, translation(pl))...)
		}
	}

	anchor := rotated.Points[0]
	best := placementCandidate{cost: math.Inf(1)}
	found := false
	for _, ring := range feasible {
		for _, pos := range ring {
			if checkForbidden && insideRegion(pos, forbidden) {
				continue
			}
			cost := p.positionCost(rotated, anchor, pos, placedPoints, placedSegments)
			if !found || cost < best.cost-geometry.Tolerance ||
				(math.Abs(cost-best.cost) <= geometry.Tolerance && lexLess(pos, best.pos)) {
				best = placementCandidate{pos: pos, cost: cost}
				found = true
			}
		}
	}
	if !found {
		return placed{}, false
	}
	return placed{inst: inst, rotated: rotated, position: best.pos, cost: best.cost}, true
}

// forbiddenRegion unions the translated outer NFPs of everything already
// on the sheet against the candidate, reusing the memoised prefix for
// repeated (source, rotation) candidates.
func (p *placer) forbiddenRegion(inst *instance, rot float64, onSheet []placed, memo map[string]partialUnion) ([][]model.Point, bool) {
	memoKey := fmt.Sprintf("s:%sr:%g", inst.polygon.Source, rot)
	start := 0
	var loops [][]model.Point
	if pu, ok := memo[memoKey]; ok && pu.count <= len(onSheet) {
		loops = append(loops, pu.merged...)
		start = pu.count
	}

	for _, pl := range onSheet[start:] {
		orbit := p.outerNFP(&pl, inst, rot)
		if orbit == nil {
			// Skipping the pair risks overlap; reject the candidate here
			// and let a later sheet or rotation pick it up.
			return nil, false
		}
		dx := pl.position.X - pl.rotated.Points[0].X
		dy := pl.position.Y - pl.rotated.Points[0].Y
		moved := orbit.Translate(dx, dy)
		loops = append(loops, moved.Points)
		for _, child := range moved.Children {
			// Feasible interiors (hole fits) stay open: reversed winding
			// makes them holes of the forbidden union.
			loops = append(loops, reversed(child.Points))
		}
	}

	merged, err := clip.Union(loops, p.cfg.ClipperScale)
	if err != nil {
		log.Printf("placement: forbidden union failed: %v", err)
		return nil, false
	}
	memo[memoKey] = partialUnion{merged: merged, count: len(onSheet)}
	return merged, true
}

// positionCost scores one candidate position under the strategy. Lower is
// better. Ties upstream break on smaller x then smaller y.
func (p *placer) positionCost(rotated *model.Polygon, anchor, pos model.Point, placedPoints []model.Point, placedSegments []mergeSegment) float64 {
	dx := pos.X - anchor.X
	dy := pos.Y - anchor.Y

	allPoints := make([]model.Point, 0, len(placedPoints)+len(rotated.Points))
	allPoints = append(allPoints, placedPoints...)
	for _, pt := range rotated.Points {
		allPoints = append(allPoints, model.Point{X: pt.X + dx, Y: pt.Y + dy})
	}

	var cost float64
	switch p.cfg.PlacementType {
	case model.PlacementConvexHull:
		cost = geometry.ConvexHullArea(allPoints)
	case model.PlacementBox:
		bb := geometry.PolygonBounds(allPoints)
		cost = bb.Width * bb.Height
	default: // gravity
		bb := geometry.PolygonBounds(allPoints)
		cost = 2*bb.Width + bb.Height
	}

	if p.cfg.MergeLines && len(placedSegments) > 0 {
		candSegments := exactSegments(rotated, model.Point{X: dx, Y: dy})
		merged := mergeLength(placedSegments, candSegments, p.cfg)
		cost -= merged * p.cfg.TimeRatio
	}
	return cost
}

// insideRegion reports strict containment in a ring set with holes:
// containment parity over all rings. Boundary points are allowed, they
// are exactly the touching placements.
func insideRegion(pos model.Point, rings [][]model.Point) bool {
	count := 0
	for _, ring := range rings {
		if geometry.PointInPolygon(pos, ring, geometry.Tolerance) == geometry.Inside {
			count++
		}
	}
	return count%2 == 1
}

// polygonRings flattens an NFP into its loops: outer ring plus children
// (feasible interior regions).
func polygonRings(p *model.Polygon) [][]model.Point {
	rings := [][]model.Point{p.Points}
	for _, child := range p.Children {
		rings = append(rings, child.Points)
	}
	return rings
}

// lexicographicMin picks the vertex minimising x, then y.
func lexicographicMin(rings [][]model.Point) (model.Point, bool) {
	var best model.Point
	found := false
	for _, ring := range rings {
		for _, pt := range ring {
			if !found || lexLess(pt, best) {
				best = pt
				found = true
			}
		}
	}
	return best, found
}

func lexLess(a, b model.Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// translation returns the frame shift that realises a placement.
func translation(pl placed) model.Point {
	return model.Point{
		X: pl.position.X - pl.rotated.Points[0].X,
		Y: pl.position.Y - pl.rotated.Points[0].Y,
	}
}

func translatedPoints(pl placed) []model.Point {
	t := translation(pl)
	out := make([]model.Point, len(pl.rotated.Points))
	for i, pt := range pl.rotated.Points {
		out[i] = model.Point{X: pt.X + t.X, Y: pt.Y + t.Y, Exact: pt.Exact}
	}
	return out
}

func reversed(points []model.Point) []model.Point {
	out := make([]model.Point, len(points))
	for i, pt := range points {
		out[len(points)-1-i] = pt
	}
	return out
}

// buildPlacements converts the on-sheet list to the result form, attaching
// per-placement merged-edge accounting.
func buildPlacements(onSheet []placed, merged sheetMerge) []model.Placement {
	out := make([]model.Placement, len(onSheet))
	for i, pl := range onSheet {
		out[i] = model.Placement{
			Source:   pl.inst.polygon.Source,
			ID:       pl.inst.polygon.ID,
			X:        pl.position.X,
			Y:        pl.position.Y,
			Rotation: pl.rotated.Rotation,
		}
		if m, ok := merged.byIndex[i]; ok {
			out[i].MergedLength = m.length
			out[i].MergedSegments = m.segments
		}
	}
	return out
}

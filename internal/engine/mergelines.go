package engine

import (
	"math"

	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
)

// mergeSegment is one straight edge in absolute sheet coordinates. Only
// edges whose both endpoints are exact participate: tessellated curve
// chords never merge.
type mergeSegment struct {
	a, b  model.Point
	owner int // not populated: exactSegments leaves it zero and nothing reads it
}

// partMerge is the merged-edge account for one placement.
type partMerge struct {
	length   float64
	segments []model.MergedSegment
}

// sheetMerge is the per-sheet line-merge result.
type sheetMerge struct {
	total   float64
	byIndex map[int]*partMerge
}

// exactSegments extracts the exact-to-exact edges of a rotated polygon,
// translated by t. Hole edges count too: a shared hole edge is a shared
// cut.
func exactSegments(p *model.Polygon, t model.Point) []mergeSegment {
	var out []mergeSegment
	collect := func(points []model.Point) {
		n := len(points)
		for i := 0; i < n; i++ {
			a, b := points[i], points[(i+1)%n]
			if !a.Exact || !b.Exact {
				continue
			}
			out = append(out, mergeSegment{
				a: model.Point{X: a.X + t.X, Y: a.Y + t.Y, Exact: true},
				b: model.Point{X: b.X + t.X, Y: b.Y + t.Y, Exact: true},
			})
		}
	}
	collect(p.Points)
	for _, child := range p.Children {
		collect(child.Points)
	}
	return out
}

// mergeSheet computes collinear overlaps between all placed-part pairs on
// one sheet. The overlap is credited to the later-placed part, matching
// the cut that gets skipped.
func mergeSheet(onSheet []placed, cfg model.NestConfig) sheetMerge {
	result := sheetMerge{byIndex: make(map[int]*partMerge)}
	if !cfg.MergeLines || len(onSheet) < 2 {
		return result
	}

	segs := make([][]mergeSegment, len(onSheet))
	for i, pl := range onSheet {
		segs[i] = exactSegments(pl.rotated, translation(pl))
	}

	for i := 1; i < len(onSheet); i++ {
		var earlier []mergeSegment
		for j := 0; j < i; j++ {
			earlier = append(earlier, segs[j]...)
		}
		for _, seg := range segs[i] {
			length, merged := overlapAgainst(seg, earlier, cfg)
			if length <= 0 {
				continue
			}
			pm := result.byIndex[i]
			if pm == nil {
				pm = &partMerge{}
				result.byIndex[i] = pm
			}
			pm.length += length
			pm.segments = append(pm.segments, merged...)
			result.total += length
		}
	}
	return result
}

// mergeLength scores a candidate's segments against already-placed ones,
// used inside the placement cost function.
func mergeLength(placedSegs, candSegs []mergeSegment, cfg model.NestConfig) float64 {
	var total float64
	for _, seg := range candSegs {
		length, _ := overlapAgainst(seg, placedSegs, cfg)
		total += length
	}
	return total
}

// overlapAgainst accumulates the collinear overlap of seg with each other
// segment, rejecting overlaps shorter than the configured minimum.
func overlapAgainst(seg mergeSegment, others []mergeSegment, cfg model.NestConfig) (float64, []model.MergedSegment) {
	minLength := cfg.MergeMinLength
	if minLength <= 0 {
		minLength = 0.5 * cfg.Scale
	}
	lineTol := 0.1 * cfg.CurveTolerance
	if lineTol <= 0 {
		lineTol = geometry.Tolerance
	}

	dirX := seg.b.X - seg.a.X
	dirY := seg.b.Y - seg.a.Y
	segLen := math.Hypot(dirX, dirY)
	if segLen < geometry.Tolerance {
		return 0, nil
	}
	dirX /= segLen
	dirY /= segLen

	var total float64
	var merged []model.MergedSegment
	for _, other := range others {
		if !collinear(seg, other, lineTol) {
			continue
		}
		// Project both segments onto seg's direction.
		s1 := 0.0
		s2 := segLen
		o1 := (other.a.X-seg.a.X)*dirX + (other.a.Y-seg.a.Y)*dirY
		o2 := (other.b.X-seg.a.X)*dirX + (other.b.Y-seg.a.Y)*dirY
		if o1 > o2 {
			o1, o2 = o2, o1
		}
		lo := math.Max(s1, o1)
		hi := math.Min(s2, o2)
		overlap := hi - lo
		if overlap < minLength {
			continue
		}
		total += overlap
		merged = append(merged, model.MergedSegment{
			Start: model.Point{X: seg.a.X + dirX*lo, Y: seg.a.Y + dirY*lo, Exact: true},
			End:   model.Point{X: seg.a.X + dirX*hi, Y: seg.a.Y + dirY*hi, Exact: true},
		})
	}
	return total, merged
}

// collinear tests that both endpoints of other lie within tol of seg's
// carrier line.
func collinear(seg, other mergeSegment, tol float64) bool {
	return distToLine(seg.a, seg.b, other.a) <= tol && distToLine(seg.a, seg.b, other.b) <= tol
}

func distToLine(a, b, p model.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)
	if length < geometry.Tolerance {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs((p.Y-a.Y)*dx-(p.X-a.X)*dy) / length
}

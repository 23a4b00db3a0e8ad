// Package nfp constructs No-Fit Polygons: the locus of reference-point
// translations at which an orbiting part B touches a stationary polygon A
// without overlap. Outer NFPs keep B outside A; inner NFPs keep B inside
// A's boundary. Construction runs on the clipping backend's Minkowski sum
// at integer coordinates.
package nfp

import (
	"log"
	"math"

	"github.com/deepnest-next/gonest/internal/clip"
	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
)

// epsArea is the threshold below which a ring is a degenerate sliver, in
// squared internal units. Concentric touches produce such rings and they
// carry no placement information.
const epsArea = 1e-6

// jitter is the perturbation applied to the orbiting polygon when the
// backend faults, before the single retry.
const jitter = geometry.Tolerance

// Request names one NFP computation.
type Request struct {
	A      *model.Polygon
	B      *model.Polygon
	ARot   float64
	BRot   float64
	Inside bool
}

// Compute builds the NFP of B orbiting A at the given rotations. A nil
// result with a nil error means no fit exists (B cannot be placed), which
// is an answer, not a failure. When simplify is set, holes are dropped
// before computation.
func Compute(req Request, simplify bool, scale float64) (*model.Polygon, error) {
	a := geometry.RotatePolygon(req.A, req.ARot)
	b := geometry.RotatePolygon(req.B, req.BRot)
	if simplify {
		a.Children = nil
		b.Children = nil
	}
	geometry.NormalizeWinding(a)
	geometry.NormalizeWinding(b)

	if len(a.Points) < 3 || len(b.Points) < 3 {
		return nil, model.NewError(model.KindDegenerateGeometry, "polygon with fewer than 3 vertices")
	}

	if req.Inside {
		return computeInner(a, b, scale)
	}
	return computeOuter(a, b, scale)
}

// computeOuter returns the orbit of B around the outside of A. When A has
// holes large enough to admit B, the feasible interior regions come back as
// children of the NFP.
func computeOuter(a, b *model.Polygon, scale float64) (*model.Polygon, error) {
	rings, err := sweep(a.Points, b, scale)
	if err != nil {
		return nil, err
	}
	outer := largestRing(rings)
	if outer == nil {
		return nil, nil
	}
	result := &model.Polygon{Points: outer, Source: a.Source, Rotation: a.Rotation}

	for _, hole := range a.Children {
		if !holeAdmits(hole, b) {
			continue
		}
		inner, err := innerRings(hole.Points, b, scale)
		if err != nil {
			// A failed hole NFP only loses a nesting opportunity.
			log.Printf("nfp: hole fit %s/%s skipped: %v", a.Source, b.Source, err)
			continue
		}
		for _, ring := range inner {
			result.Children = append(result.Children, &model.Polygon{Points: ring})
		}
	}
	return result, nil
}

// computeInner returns the placements of B inside A's boundary, minus the
// orbits of A's holes, plus fits inside any hole large enough to admit B.
func computeInner(a, b *model.Polygon, scale float64) (*model.Polygon, error) {
	var feasible [][]model.Point

	if geometry.IsRectangle(a.Points, geometry.Tolerance) {
		ring := rectangleFit(a.Points, b)
		if ring == nil {
			return nil, nil
		}
		feasible = [][]model.Point{ring}
	} else {
		rings, err := innerRings(a.Points, b, scale)
		if err != nil {
			return nil, err
		}
		if len(rings) == 0 {
			return nil, nil
		}
		feasible = rings
	}

	if len(a.Children) > 0 {
		// Subtract each hole's orbit so B never overlaps a hole boundary,
		// then restore full fits inside admitting holes.
		var forbidden [][]model.Point
		var holeFits [][]model.Point
		for _, hole := range a.Children {
			holeRings, err := sweep(hole.Points, b, scale)
			if err != nil {
				return nil, err
			}
			if outer := largestRing(holeRings); outer != nil {
				forbidden = append(forbidden, outer)
			}
			if holeAdmits(hole, b) {
				fits, err := innerRings(hole.Points, b, scale)
				if err == nil {
					holeFits = append(holeFits, fits...)
				}
			}
		}
		if len(forbidden) > 0 {
			remaining, err := clip.Difference(feasible, forbidden, scale)
			if err != nil {
				return nil, err
			}
			feasible = remaining
		}
		feasible = append(feasible, holeFits...)
	}

	feasible = dropSlivers(feasible)
	if len(feasible) == 0 {
		return nil, nil
	}

	result := &model.Polygon{Points: feasible[0], Source: a.Source, Rotation: a.Rotation}
	for _, ring := range feasible[1:] {
		result.Children = append(result.Children, &model.Polygon{Points: ring})
	}
	return result, nil
}

// sweep runs the Minkowski sum of reflected B along the closed path,
// retrying once with perturbed input when the backend faults. Rings come
// back translated into anchor space: coordinates are positions for B's
// first vertex.
func sweep(path []model.Point, b *model.Polygon, scale float64) ([][]model.Point, error) {
	pattern := reflect(b.Points)
	rings, err := clip.MinkowskiSum(pattern, path, scale)
	if err != nil {
		rings, err = clip.MinkowskiSum(perturb(pattern), path, scale)
		if err != nil {
			return nil, model.WrapError(model.KindDegenerateGeometry, err)
		}
	}
	anchor := b.Points[0]
	for _, ring := range rings {
		for i := range ring {
			ring[i].X += anchor.X
			ring[i].Y += anchor.Y
		}
	}
	return rings, nil
}

// innerRings returns the interior rings of the sweep along the path: the
// translations that keep B inside the loop, touching allowed. Empty when B
// does not fit.
func innerRings(path []model.Point, b *model.Polygon, scale float64) ([][]model.Point, error) {
	rings, err := sweep(path, b, scale)
	if err != nil {
		return nil, err
	}
	outer := largestRing(rings)
	if outer == nil {
		return nil, nil
	}
	outerArea := math.Abs(geometry.PolygonArea(outer))
	var inner [][]model.Point
	for _, ring := range rings {
		area := math.Abs(geometry.PolygonArea(ring))
		if area < epsArea || area >= outerArea {
			continue
		}
		// Interior rings of the swept band sit strictly inside the outer
		// ring; disjoint slivers outside do not.
		if geometry.PointInPolygon(ring[0], outer, geometry.Tolerance) == geometry.Inside {
			inner = append(inner, ring)
		}
	}
	return inner, nil
}

// rectangleFit is the analytic inner NFP for an axis-aligned rectangular
// container: the shrunken rectangle of anchor positions, or nil when B
// exceeds the container in either dimension. Exact fits yield a degenerate
// (zero-area) ring, which is still one valid placement.
func rectangleFit(rectPoints []model.Point, b *model.Polygon) []model.Point {
	ab := geometry.PolygonBounds(rectPoints)
	bb := geometry.PolygonBounds(b.Points)
	if bb.Width > ab.Width+geometry.Tolerance || bb.Height > ab.Height+geometry.Tolerance {
		return nil
	}
	anchor := b.Points[0]
	x1 := ab.X - bb.X + anchor.X
	x2 := x1 + (ab.Width - bb.Width)
	y1 := ab.Y - bb.Y + anchor.Y
	y2 := y1 + (ab.Height - bb.Height)
	return []model.Point{
		{X: x1, Y: y1},
		{X: x2, Y: y1},
		{X: x2, Y: y2},
		{X: x1, Y: y2},
	}
}

// holeAdmits is the bounding-box filter for nesting B inside a hole.
func holeAdmits(hole *model.Polygon, b *model.Polygon) bool {
	hb := geometry.PolygonBounds(hole.Points)
	bb := geometry.PolygonBounds(b.Points)
	return bb.Width <= hb.Width && bb.Height <= hb.Height
}

// largestRing picks the ring of maximum enclosed area, the canonical NFP
// when the backend returns multiple disjoint rings. Nil when every ring is
// a sliver.
func largestRing(rings [][]model.Point) []model.Point {
	var best []model.Point
	bestArea := epsArea
	for _, ring := range rings {
		area := math.Abs(geometry.PolygonArea(ring))
		if area > bestArea {
			bestArea = area
			best = ring
		}
	}
	return best
}

func dropSlivers(rings [][]model.Point) [][]model.Point {
	out := rings[:0]
	for _, ring := range rings {
		if len(ring) >= 3 && math.Abs(geometry.PolygonArea(ring)) >= epsArea {
			out = append(out, ring)
		} else if len(ring) == 4 && isDegenerateRect(ring) {
			// The analytic exact-fit rectangle collapses to a point or a
			// line; keep it, it is the only placement.
			out = append(out, ring)
		}
	}
	return out
}

func isDegenerateRect(ring []model.Point) bool {
	b := geometry.PolygonBounds(ring)
	return b.Width < geometry.Tolerance || b.Height < geometry.Tolerance
}

// reflect negates every vertex, producing -B for the Minkowski difference.
func reflect(points []model.Point) []model.Point {
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: -p.X, Y: -p.Y, Exact: p.Exact}
	}
	return out
}

func perturb(points []model.Point) []model.Point {
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: p.X + jitter, Y: p.Y + jitter, Exact: p.Exact}
	}
	return out
}

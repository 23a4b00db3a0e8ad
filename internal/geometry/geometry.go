// Package geometry provides the pure planar primitives the nesting engine
// is built on: signed area, bounds, containment, rotation, rectangle and
// simplicity tests, and convex hulls. All predicates are tolerance-driven.
package geometry

import (
	"math"

	"github.com/deepnest-next/gonest/internal/model"
)

// Tolerance is the default absolute tolerance for geometric predicates.
const Tolerance = 1e-9

// AlmostEqual reports whether a and b are within the default tolerance.
func AlmostEqual(a, b float64) bool {
	return AlmostEqualTol(a, b, Tolerance)
}

// AlmostEqualTol reports whether a and b are within tol.
func AlmostEqualTol(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// AlmostEqualPoints reports whether p and q coincide within tol.
func AlmostEqualPoints(p, q model.Point, tol float64) bool {
	return AlmostEqualTol(p.X, q.X, tol) && AlmostEqualTol(p.Y, q.Y, tol)
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PolygonBounds returns the axis-aligned bounding box of the loop.
// A loop with fewer than 3 points yields a zero Bounds.
func PolygonBounds(points []model.Point) Bounds {
	if len(points) < 3 {
		return Bounds{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// PolygonArea returns the signed area of the loop. Counter-clockwise loops
// have positive area; this is the winding convention for outer boundaries.
func PolygonArea(points []model.Point) float64 {
	var area float64
	n := len(points)
	if n < 3 {
		return 0
	}
	j := n - 1
	for i := 0; i < n; i++ {
		area += (points[j].X + points[i].X) * (points[j].Y - points[i].Y)
		j = i
	}
	return -0.5 * area
}

// Containment is the tri-state result of a point-in-polygon query.
type Containment int

const (
	Outside Containment = iota
	OnBoundary
	Inside
)

// PointInPolygon locates p relative to the loop with tolerance tol.
// The answer is stable: the same inputs always yield the same state.
func PointInPolygon(p model.Point, points []model.Point, tol float64) Containment {
	if len(points) < 3 {
		return Outside
	}
	inside := false
	n := len(points)
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := points[i], points[j]
		if OnSegment(a, b, p, tol) {
			return OnBoundary
		}
		if AlmostEqualPoints(a, p, tol) {
			return OnBoundary
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	if inside {
		return Inside
	}
	return Outside
}

// OnSegment reports whether p lies on the closed segment ab within tol.
func OnSegment(a, b, p model.Point, tol float64) bool {
	// Degenerate segment: treat as its endpoint.
	if AlmostEqualPoints(a, b, tol) {
		return AlmostEqualPoints(a, p, tol)
	}
	cross := (p.Y-a.Y)*(b.X-a.X) - (p.X-a.X)*(b.Y-a.Y)
	segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
	if math.Abs(cross)/segLen > tol {
		return false
	}
	dot := (p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)
	if dot < -tol {
		return false
	}
	if dot > segLen*segLen+tol {
		return false
	}
	return true
}

// RotatePoints rotates the points by degrees about the origin, preserving
// Exact flags.
func RotatePoints(points []model.Point, degrees float64) []model.Point {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{
			X:     p.X*cos - p.Y*sin,
			Y:     p.X*sin + p.Y*cos,
			Exact: p.Exact,
		}
	}
	return out
}

// RotatePolygon rotates the polygon and its holes in lockstep about the
// origin and records the absolute rotation on the result.
func RotatePolygon(p *model.Polygon, degrees float64) *model.Polygon {
	out := p.Clone()
	out.Points = RotatePoints(p.Points, degrees)
	for i, child := range p.Children {
		out.Children[i].Points = RotatePoints(child.Points, degrees)
	}
	out.Rotation = math.Mod(p.Rotation+degrees, 360)
	if out.Rotation < 0 {
		out.Rotation += 360
	}
	return out
}

// IsRectangle reports whether the loop is an axis-aligned rectangle: every
// vertex sits on a corner of its bounding box, within tol.
func IsRectangle(points []model.Point, tol float64) bool {
	if len(points) < 4 {
		return false
	}
	bb := PolygonBounds(points)
	for _, p := range points {
		onX := AlmostEqualTol(p.X, bb.X, tol) || AlmostEqualTol(p.X, bb.X+bb.Width, tol)
		onY := AlmostEqualTol(p.Y, bb.Y, tol) || AlmostEqualTol(p.Y, bb.Y+bb.Height, tol)
		if !onX || !onY {
			return false
		}
	}
	return true
}

// NormalizeWinding reorients the polygon in place so the outer loop is
// counter-clockwise (positive area) and every hole is clockwise.
func NormalizeWinding(p *model.Polygon) {
	if PolygonArea(p.Points) < 0 {
		reverse(p.Points)
	}
	for _, child := range p.Children {
		if PolygonArea(child.Points) > 0 {
			reverse(child.Points)
		}
	}
}

func reverse(points []model.Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

// IsSimple reports whether the loop is free of self-intersections between
// non-adjacent edges. Quadratic; inputs are part outlines, not meshes.
func IsSimple(points []model.Point) bool {
	n := len(points)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := points[i]
		a2 := points[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges, including the first/last pair.
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := points[j]
			b2 := points[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return false
			}
		}
	}
	return true
}

// segmentsCross reports proper intersection of open segments.
func segmentsCross(a1, a2, b1, b2 model.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	return ((d1 > Tolerance && d2 < -Tolerance) || (d1 < -Tolerance && d2 > Tolerance)) &&
		((d3 > Tolerance && d4 < -Tolerance) || (d3 < -Tolerance && d4 > Tolerance))
}

func cross(o, a, b model.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// UniquePoints counts vertices that are distinct within tol, which is what
// input validation cares about rather than raw slice length.
func UniquePoints(points []model.Point, tol float64) int {
	count := 0
	for i, p := range points {
		dup := false
		for j := 0; j < i; j++ {
			if AlmostEqualPoints(p, points[j], tol) {
				dup = true
				break
			}
		}
		if !dup {
			count++
		}
	}
	return count
}

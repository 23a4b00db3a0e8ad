// Package clip adapts the Clipper backend to the engine's float polygons.
// All boolean operations run at integer coordinates: floats are multiplied
// by the configured clipper scale, rounded, and results are rescaled and
// cleaned of collapsed vertices. The engine never sees backend types or
// backend failure shapes outside this package.
package clip

import (
	"math"

	clipper "github.com/aligator/go.clipper"

	"github.com/deepnest-next/gonest/internal/model"
)

// DefaultScale is the integer scale used when the configuration does not
// override it.
const DefaultScale = 1e7

// errBackend is returned when the backend reports a failed execution.
var errBackend = model.NewError(model.KindClippingFailure, "clipping backend execution failed")

// ToPath converts a loop to backend integer coordinates.
func ToPath(points []model.Point, scale float64) clipper.Path {
	path := make(clipper.Path, 0, len(points))
	for _, p := range points {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(p.X * scale)),
			Y: clipper.CInt(math.Round(p.Y * scale)),
		})
	}
	return path
}

// FromPath converts a backend path back to floats, collapsing consecutive
// vertices that round to the same cleaned position. Exact flags are not
// reconstructible after clipping and come back false.
func FromPath(path clipper.Path, scale float64) []model.Point {
	out := make([]model.Point, 0, len(path))
	const cleanTol = 1e-9
	for _, ip := range path {
		p := model.Point{X: float64(ip.X) / scale, Y: float64(ip.Y) / scale}
		if n := len(out); n > 0 {
			prev := out[n-1]
			if math.Abs(p.X-prev.X) < cleanTol && math.Abs(p.Y-prev.Y) < cleanTol {
				continue
			}
		}
		out = append(out, p)
	}
	// The loop is implicitly closed; drop a duplicated closing vertex.
	if n := len(out); n > 1 && out[0].X == out[n-1].X && out[0].Y == out[n-1].Y {
		out = out[:n-1]
	}
	return out
}

// FromPaths converts every backend ring, dropping degenerate ones.
func FromPaths(paths clipper.Paths, scale float64) [][]model.Point {
	out := make([][]model.Point, 0, len(paths))
	for _, path := range paths {
		ring := FromPath(path, scale)
		if len(ring) >= 3 {
			out = append(out, ring)
		}
	}
	return out
}

// Union returns the boolean OR of the loops.
func Union(loops [][]model.Point, scale float64) ([][]model.Point, error) {
	c := clipper.NewClipper(clipper.IoNone)
	for _, loop := range loops {
		c.AddPath(ToPath(loop, scale), clipper.PtSubject, true)
	}
	solution, ok := c.Execute1(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return nil, errBackend
	}
	return FromPaths(solution, scale), nil
}

// Difference subtracts the clip loops from the subject loops.
func Difference(subject, clips [][]model.Point, scale float64) ([][]model.Point, error) {
	c := clipper.NewClipper(clipper.IoNone)
	for _, loop := range subject {
		c.AddPath(ToPath(loop, scale), clipper.PtSubject, true)
	}
	for _, loop := range clips {
		c.AddPath(ToPath(loop, scale), clipper.PtClip, true)
	}
	solution, ok := c.Execute1(clipper.CtDifference, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return nil, errBackend
	}
	return FromPaths(solution, scale), nil
}

// MinkowskiSum returns the Minkowski sum of pattern and path as closed
// loops. The caller reflects one operand to obtain a Minkowski difference.
func MinkowskiSum(pattern, path []model.Point, scale float64) ([][]model.Point, error) {
	c := clipper.NewClipper(clipper.IoNone)
	solution := c.MinkowskiSum(ToPath(pattern, scale), ToPath(path, scale), true)
	if len(solution) == 0 {
		return nil, errBackend
	}
	return FromPaths(solution, scale), nil
}

// Offset inflates (delta > 0) or deflates (delta < 0) the polygon. Outer
// loop and holes go through a single backend call so orientation drives the
// offset direction: a positive delta grows the outer boundary outward and
// shrinks the holes, giving clearance on every edge. The result is
// reassembled into polygons by ring orientation.
func Offset(p *model.Polygon, delta, scale float64) ([]*model.Polygon, error) {
	if delta == 0 {
		return []*model.Polygon{p.Clone()}, nil
	}
	co := clipper.NewClipperOffset()
	co.MiterLimit = 4
	co.AddPath(ToPath(p.Points, scale), clipper.JtMiter, clipper.EtClosedPolygon)
	for _, child := range p.Children {
		co.AddPath(ToPath(child.Points, scale), clipper.JtMiter, clipper.EtClosedPolygon)
	}
	solution := co.Execute(delta * scale)
	rings := FromPaths(solution, scale)
	if len(rings) == 0 {
		if delta < 0 {
			// Fully collapsed by deflation: a legitimate empty result.
			return nil, nil
		}
		return nil, model.NewError(model.KindClippingFailure, "offset produced no output")
	}

	var out []*model.Polygon
	var holes [][]model.Point
	for _, ring := range rings {
		if ringArea(ring) > 0 {
			out = append(out, &model.Polygon{
				Points:   ring,
				Source:   p.Source,
				ID:       p.ID,
				Rotation: p.Rotation,
				Sheet:    p.Sheet,
			})
		} else {
			holes = append(holes, ring)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	// Attach each hole to the outer ring that contains it.
	for _, h := range holes {
		for _, np := range out {
			if containsRing(np.Points, h) {
				np.Children = append(np.Children, &model.Polygon{Points: h})
				break
			}
		}
	}
	return out, nil
}

func ringArea(ring []model.Point) float64 {
	var area float64
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		area += (ring[j].X + ring[i].X) * (ring[j].Y - ring[i].Y)
		j = i
	}
	return -0.5 * area
}

// containsRing tests whether the first vertex of inner is inside outer.
// Rings from a boolean result never partially overlap, so one vertex is
// representative.
func containsRing(outer, inner []model.Point) bool {
	if len(inner) == 0 || len(outer) < 3 {
		return false
	}
	p := inner[0]
	in := false
	j := len(outer) - 1
	for i := 0; i < len(outer); i++ {
		a, b := outer[i], outer[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
		j = i
	}
	return in
}

package geometry

import (
	"sort"

	"github.com/deepnest-next/gonest/internal/model"
)

// ConvexHull returns the convex hull of the points in counter-clockwise
// order using Andrew's monotone chain. Ties are broken lexicographically
// (x, then y). Collinear boundary points are dropped.
func ConvexHull(points []model.Point) []model.Point {
	n := len(points)
	if n < 3 {
		out := make([]model.Point, n)
		copy(out, points)
		return out
	}

	sorted := make([]model.Point, n)
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	// Lower hull then upper hull.
	hull := make([]model.Point, 0, 2*n)
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= Tolerance {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= Tolerance {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// First and last are the same point.
	return hull[:len(hull)-1]
}

// ConvexHullArea returns the (positive) area of the convex hull.
func ConvexHullArea(points []model.Point) float64 {
	hull := ConvexHull(points)
	if len(hull) < 3 {
		return 0
	}
	return PolygonArea(hull)
}

package model

import "github.com/google/uuid"

// Point is a vertex in sheet coordinates. Exact marks endpoints that came
// from straight input segments rather than curve tessellation; only
// exact-to-exact edge pairs participate in line merging.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Exact bool    `json:"exact,omitempty"`
}

// Polygon is a simple closed loop. The last point connects back to the
// first. Children are holes (inner boundaries).
//
// Source identifies the input shape: two polygons with equal Source must
// have identical geometry, which is what makes NFP results shareable.
// ID is unique per instance even when Source repeats.
type Polygon struct {
	Points   []Point    `json:"points"`
	Children []*Polygon `json:"children,omitempty"`
	Source   string     `json:"source,omitempty"`
	ID       string     `json:"id,omitempty"`
	Rotation float64    `json:"rotation,omitempty"`
	Sheet    bool       `json:"sheet,omitempty"`
}

// Clone returns a deep copy of the polygon and its holes.
func (p *Polygon) Clone() *Polygon {
	if p == nil {
		return nil
	}
	cp := &Polygon{
		Points:   make([]Point, len(p.Points)),
		Source:   p.Source,
		ID:       p.ID,
		Rotation: p.Rotation,
		Sheet:    p.Sheet,
	}
	copy(cp.Points, p.Points)
	for _, child := range p.Children {
		cp.Children = append(cp.Children, child.Clone())
	}
	return cp
}

// Translate shifts the polygon and its holes by dx, dy.
func (p *Polygon) Translate(dx, dy float64) *Polygon {
	out := p.Clone()
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	for _, child := range out.Children {
		for i := range child.Points {
			child.Points[i].X += dx
			child.Points[i].Y += dy
		}
	}
	return out
}

// Part is a required piece to be nested. Rotation is the declared default
// rotation in degrees; the optimiser may substitute any angle from the
// rotation grid.
type Part struct {
	Source   string   `json:"source"`
	ID       string   `json:"id"`
	Quantity int      `json:"quantity"`
	Rotation float64  `json:"rotation"`
	Polygon  *Polygon `json:"polygon"`
}

// NewPart creates a part with a fresh instance id. The source defaults to
// the id so that geometrically distinct parts never share NFP entries;
// callers that know two parts are identical set Source themselves.
func NewPart(polygon *Polygon, quantity int) Part {
	id := uuid.New().String()[:8]
	if polygon.Source == "" {
		polygon.Source = id
	}
	polygon.ID = id
	return Part{
		Source:   polygon.Source,
		ID:       id,
		Quantity: quantity,
		Polygon:  polygon,
	}
}

// Sheet is a container polygon that parts are placed into.
type Sheet struct {
	Source  string   `json:"source"`
	ID      string   `json:"id"`
	Polygon *Polygon `json:"polygon"`
}

// NewSheet creates a sheet with a fresh instance id.
func NewSheet(polygon *Polygon) Sheet {
	id := uuid.New().String()[:8]
	if polygon.Source == "" {
		polygon.Source = id
	}
	polygon.ID = id
	polygon.Sheet = true
	return Sheet{Source: polygon.Source, ID: id, Polygon: polygon}
}

// Rect builds an axis-aligned rectangular polygon with exact corners,
// the common case for both stock sheets and tabular part lists.
func Rect(width, height float64) *Polygon {
	return &Polygon{Points: []Point{
		{X: 0, Y: 0, Exact: true},
		{X: width, Y: 0, Exact: true},
		{X: width, Y: height, Exact: true},
		{X: 0, Y: height, Exact: true},
	}}
}

// MergedSegment is one collinear overlap between two placed parts,
// in absolute sheet coordinates.
type MergedSegment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Placement positions one part instance on a sheet. The anchor convention:
// the rotated part's first vertex lands at (X, Y) in the sheet frame.
type Placement struct {
	Source         string          `json:"source"`
	ID             string          `json:"id"`
	X              float64         `json:"x"`
	Y              float64         `json:"y"`
	Rotation       float64         `json:"rotation"`
	MergedLength   float64         `json:"merged_length,omitempty"`
	MergedSegments []MergedSegment `json:"merged_segments,omitempty"`
}

// SheetLayout is one opened sheet with its placements.
type SheetLayout struct {
	SheetSource string      `json:"sheet_source"`
	SheetID     string      `json:"sheet_id"`
	Placements  []Placement `json:"placements"`
}

// NestResult is the full solution for one evaluated candidate.
type NestResult struct {
	Sheets       []SheetLayout `json:"sheets"`
	Fitness      float64       `json:"fitness"`
	Utilisation  float64       `json:"utilisation"`
	MergedLength float64       `json:"merged_length"`
	Unplaced     []string      `json:"unplaced,omitempty"` // part instance ids
	Generation   int           `json:"generation"`
}

// PlacedCount returns the number of placements across all sheets.
func (r NestResult) PlacedCount() int {
	n := 0
	for _, s := range r.Sheets {
		n += len(s.Placements)
	}
	return n
}

// ProgressEvent reports engine progress. Progress covers (0, 0.5] during
// NFP precompute and (0.5, 1] during placement of the current candidate.
type ProgressEvent struct {
	Generation int     `json:"generation"`
	Progress   float64 `json:"progress"`
}

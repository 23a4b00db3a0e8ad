package model

// Units controls display and reporting only; all internal lengths are in
// scaled units.
type Units string

const (
	UnitsMM   Units = "mm"
	UnitsInch Units = "inch"
)

// PlacementType selects the cost function used to rank candidate positions.
type PlacementType string

const (
	PlacementGravity    PlacementType = "gravity"    // 2*width + height of combined bbox
	PlacementBox        PlacementType = "box"        // width * height of combined bbox
	PlacementConvexHull PlacementType = "convexhull" // area of hull of placed + candidate
)

// NestConfig holds all engine configuration.
type NestConfig struct {
	Units          Units         `json:"units"`
	Scale          float64       `json:"scale"`           // internal units per inch
	Spacing        float64       `json:"spacing"`         // part clearance, internal units
	CurveTolerance float64       `json:"curve_tolerance"` // chord error; engine uses 0.1x for merging
	Rotations      int           `json:"rotations"`       // count of discrete angles on [0,360)
	Threads        int           `json:"threads"`
	PopulationSize int           `json:"population_size"`
	MutationRate   int           `json:"mutation_rate"` // percent, 1..50
	PlacementType  PlacementType `json:"placement_type"`
	MergeLines     bool          `json:"merge_lines"`
	TimeRatio      float64       `json:"time_ratio"` // 0 material .. 1 cut time
	Simplify       bool          `json:"simplify"`   // drop holes from part NFPs

	ClipperScale      float64 `json:"clipper_scale"`      // integer scale for clipping backend
	EndpointTolerance float64 `json:"endpoint_tolerance"` // persisted only; line merging does not read it
	MergeMinLength    float64 `json:"merge_min_length"`   // 0 means 0.5*Scale

	CacheDir string `json:"cache_dir,omitempty"` // empty: NFP_CACHE_DIR env, then disabled
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() NestConfig {
	return NestConfig{
		Units:             UnitsMM,
		Scale:             72,
		Spacing:           0,
		CurveTolerance:    0.72,
		Rotations:         4,
		Threads:           4,
		PopulationSize:    10,
		MutationRate:      10,
		PlacementType:     PlacementGravity,
		MergeLines:        false,
		TimeRatio:         0.5,
		Simplify:          false,
		ClipperScale:      1e7,
		EndpointTolerance: 1e-3,
	}
}

// Normalize clamps out-of-range values to usable ones. It returns an error
// only for contradictions that cannot be repaired.
func (c *NestConfig) Normalize() error {
	if c.Scale <= 0 {
		return NewError(KindInvalidInput, "scale must be positive")
	}
	if c.ClipperScale <= 0 {
		c.ClipperScale = 1e7
	}
	if c.Rotations < 1 {
		c.Rotations = 1
	}
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.PopulationSize < 1 {
		c.PopulationSize = 1
	}
	if c.MutationRate < 1 {
		c.MutationRate = 1
	}
	if c.MutationRate > 50 {
		c.MutationRate = 50
	}
	if c.TimeRatio < 0 || c.TimeRatio > 1 {
		return NewError(KindInvalidInput, "time_ratio must be in [0,1]")
	}
	switch c.PlacementType {
	case PlacementGravity, PlacementBox, PlacementConvexHull:
	case "":
		c.PlacementType = PlacementGravity
	default:
		return NewError(KindInvalidInput, "unknown placement_type %q", c.PlacementType)
	}
	if c.MergeMinLength <= 0 {
		c.MergeMinLength = 0.5 * c.Scale
	}
	return nil
}

// RotationGrid returns the allowed rotation angles in degrees.
func (c NestConfig) RotationGrid() []float64 {
	n := c.Rotations
	if n < 1 {
		n = 1
	}
	grid := make([]float64, n)
	step := 360.0 / float64(n)
	for i := range grid {
		grid[i] = float64(i) * step
	}
	return grid
}

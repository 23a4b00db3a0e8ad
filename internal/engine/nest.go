// Package engine contains the nesting core: the deterministic greedy
// placement pass, the genetic optimiser driving placement order and
// rotations, the parallel NFP precompute fan-out, and the line-merge
// post-process that rewards shared cut edges.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/deepnest-next/gonest/internal/cache"
	"github.com/deepnest-next/gonest/internal/clip"
	"github.com/deepnest-next/gonest/internal/geometry"
	"github.com/deepnest-next/gonest/internal/model"
	"github.com/deepnest-next/gonest/internal/nfp"
)

// Nester drives the optimisation: it owns the worker pool for NFP
// precomputation, evaluates candidates through the placement pass, and
// streams strictly-improving results until stopped.
type Nester struct {
	cfg    model.NestConfig
	sheets []model.Sheet
	cache  *cache.Cache
	rng    *rand.Rand

	instances []*instance // expanded part units, spacing applied
	defaults  []float64   // default rotation per instance, grid-snapped
	bySource  map[string]*model.Polygon

	// MaxGenerations bounds the run when positive; the engine otherwise
	// runs until the context is cancelled.
	MaxGenerations int

	progress chan model.ProgressEvent
	results  chan model.NestResult

	best    model.NestResult
	hasBest bool
}

// New validates the inputs and prepares a run. Validation failures carry
// KindInvalidInput and abort before any sheet is opened.
func New(parts []model.Part, sheets []model.Sheet, cfg model.NestConfig, store *cache.Cache, seed int64) (*Nester, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, model.NewError(model.KindInvalidInput, "no parts to nest")
	}
	if len(sheets) == 0 {
		return nil, model.NewError(model.KindInvalidInput, "no sheets to nest into")
	}

	n := &Nester{
		cfg:      cfg,
		sheets:   make([]model.Sheet, len(sheets)),
		cache:    store,
		rng:      rand.New(rand.NewSource(seed)),
		bySource: make(map[string]*model.Polygon),
		progress: make(chan model.ProgressEvent, 64),
		results:  make(chan model.NestResult, 64),
	}
	if n.cache == nil {
		n.cache = cache.New(nil)
	}

	for i, sheet := range sheets {
		if err := validatePolygon(sheet.Polygon, "sheet "+sheet.ID); err != nil {
			return nil, err
		}
		poly := sheet.Polygon.Clone()
		geometry.NormalizeWinding(poly)
		n.sheets[i] = model.Sheet{Source: sheet.Source, ID: sheet.ID, Polygon: poly}
	}

	grid := cfg.RotationGrid()
	for _, part := range parts {
		if part.Quantity < 1 {
			return nil, model.NewError(model.KindInvalidInput, "part %s: quantity must be at least 1", part.ID)
		}
		if err := validatePolygon(part.Polygon, "part "+part.ID); err != nil {
			return nil, err
		}
		poly, err := n.prepare(part.Polygon)
		if err != nil {
			return nil, err
		}
		n.bySource[poly.Source] = poly
		defRot := snapToGrid(part.Rotation, grid)
		area := math.Abs(geometry.PolygonArea(poly.Points))
		for q := 0; q < part.Quantity; q++ {
			unit := poly.Clone()
			unit.ID = fmt.Sprintf("%s-%d", part.ID, q+1)
			n.instances = append(n.instances, &instance{
				polygon:  unit,
				rotation: defRot,
				area:     area,
			})
			n.defaults = append(n.defaults, defRot)
		}
	}
	return n, nil
}

// prepare normalises winding and applies the spacing offset. Each part is
// inflated by half the clearance so any two parts end a full clearance
// apart.
func (n *Nester) prepare(p *model.Polygon) (*model.Polygon, error) {
	poly := p.Clone()
	geometry.NormalizeWinding(poly)
	if n.cfg.Spacing <= 0 {
		return poly, nil
	}
	offset, err := clip.Offset(poly, n.cfg.Spacing/2, n.cfg.ClipperScale)
	if err != nil {
		return nil, model.WrapError(model.KindInvalidInput, err)
	}
	if len(offset) == 0 {
		return nil, model.NewError(model.KindInvalidInput, "part %s collapsed under spacing offset", p.ID)
	}
	best := offset[0]
	for _, ring := range offset[1:] {
		if geometry.PolygonArea(ring.Points) > geometry.PolygonArea(best.Points) {
			best = ring
		}
	}
	return best, nil
}

func validatePolygon(p *model.Polygon, what string) error {
	if p == nil || geometry.UniquePoints(p.Points, geometry.Tolerance) < 3 {
		return model.NewError(model.KindInvalidInput, "%s: fewer than 3 unique vertices", what)
	}
	if !geometry.IsSimple(p.Points) {
		return model.NewError(model.KindInvalidInput, "%s: self-intersecting outline", what)
	}
	return nil
}

func snapToGrid(rotation float64, grid []float64) float64 {
	best := grid[0]
	bestDist := math.Inf(1)
	for _, g := range grid {
		d := math.Abs(math.Mod(rotation-g+540, 360) - 180)
		if d < bestDist {
			bestDist = d
			best = g
		}
	}
	return best
}

// Progress is the stream of progress events. Events are dropped rather
// than blocking the engine when the consumer lags.
func (n *Nester) Progress() <-chan model.ProgressEvent { return n.progress }

// Results streams strictly-improving nest results.
func (n *Nester) Results() <-chan model.NestResult { return n.results }

// Best returns the best result observed so far.
func (n *Nester) Best() (model.NestResult, bool) { return n.best, n.hasBest }

// Run executes generations until the context is cancelled or
// MaxGenerations is reached, then closes the streams and returns the best
// result. Cancellation is cooperative: it is checked between generations,
// before each candidate evaluation, and while NFP jobs are handed to the
// worker pool, and the best-so-far is still returned. A placement pass that
// has started runs over all sheets without checking the context.
func (n *Nester) Run(ctx context.Context) (model.NestResult, error) {
	defer close(n.progress)
	defer close(n.results)

	pop := newPopulation(n.cfg.PopulationSize, n.defaults, n.cfg.MutationRate, n.cfg.RotationGrid(), n.rng)

	for gen := 0; ; gen++ {
		if err := ctx.Err(); err != nil {
			return n.best, model.WrapError(model.KindCancelled, err)
		}
		if n.MaxGenerations > 0 && gen >= n.MaxGenerations {
			return n.best, nil
		}

		for _, ind := range pop.individuals {
			if ind.evaluated {
				continue
			}
			if err := ctx.Err(); err != nil {
				return n.best, model.WrapError(model.KindCancelled, err)
			}
			result, err := n.evaluate(ctx, gen, ind)
			if err != nil {
				return n.best, err
			}
			ind.fitness = result.Fitness
			ind.evaluated = true
			if !n.hasBest || result.Fitness < n.best.Fitness {
				n.best = result
				n.hasBest = true
				n.emitResult(result)
			}
		}

		pop.rank()
		pop.generation()
	}
}

// evaluate precomputes the NFP pairs a candidate needs in parallel, then
// runs the synchronous placement pass.
func (n *Nester) evaluate(ctx context.Context, gen int, ind *individual) (model.NestResult, error) {
	if err := n.precompute(ctx, gen, ind); err != nil {
		return model.NestResult{}, err
	}

	ordered := make([]*instance, len(ind.order))
	for slot, idx := range ind.order {
		inst := n.instances[idx]
		ordered[slot] = &instance{
			polygon:  inst.polygon,
			rotation: ind.rotations[slot],
			area:     inst.area,
		}
	}

	pl := &placer{cfg: n.cfg, cache: n.cache, sheets: n.sheets}
	result := pl.place(ordered, func(fraction float64) {
		n.emitProgress(model.ProgressEvent{Generation: gen, Progress: fraction})
	})
	result.Generation = gen
	return result, nil
}

// pairJob is one NFP computation dispatched to the pool.
type pairJob struct {
	key cache.Key
	req nfp.Request
}

// precompute fans the candidate's unseen NFP pairs out to the worker pool
// and joins before returning. The next generation never starts while these
// are outstanding.
func (n *Nester) precompute(ctx context.Context, gen int, ind *individual) error {
	jobs := n.missingPairs(ind)
	if len(jobs) == 0 {
		n.emitProgress(model.ProgressEvent{Generation: gen, Progress: 0.5})
		return nil
	}

	queue := make(chan pairJob)
	var wg sync.WaitGroup
	var done atomic.Int64
	total := int64(len(jobs))

	for w := 0; w < n.cfg.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				simplify := n.cfg.Simplify && !job.key.Inside
				_, err := n.cache.GetOrCompute(job.key, func() (*model.Polygon, error) {
					return nfp.Compute(job.req, simplify, n.cfg.ClipperScale)
				})
				if err != nil {
					// Recovered at placement time by rejecting the pair.
					log.Printf("precompute: %s: %v", job.key.String(), err)
				}
				d := done.Add(1)
				n.emitProgress(model.ProgressEvent{
					Generation: gen,
					Progress:   0.5 * float64(d) / float64(total),
				})
			}
		}()
	}

	var cancelled error
dispatch:
	for _, job := range jobs {
		select {
		case queue <- job:
		case <-ctx.Done():
			cancelled = model.WrapError(model.KindCancelled, ctx.Err())
			break dispatch
		}
	}
	close(queue)
	// In-flight computations complete and stay cached even on
	// cancellation; they remain useful to the next run.
	wg.Wait()
	return cancelled
}

// missingPairs enumerates the (A, B, rotation, rotation) keys the
// candidate's placement will ask for and filters the ones already Ready.
func (n *Nester) missingPairs(ind *individual) []pairJob {
	seen := make(map[string]bool)
	var jobs []pairJob

	add := func(key cache.Key, req nfp.Request) {
		ks := key.String()
		if seen[ks] {
			return
		}
		seen[ks] = true
		if _, ok := n.cache.Get(key); ok {
			return
		}
		jobs = append(jobs, pairJob{key: key, req: req})
	}

	for _, sheet := range n.sheets {
		for slot, idx := range ind.order {
			inst := n.instances[idx]
			rot := ind.rotations[slot]
			add(cache.Key{
				ASource: sheet.Source,
				BSource: inst.polygon.Source,
				BRot:    rot,
				Inside:  true,
			}, nfp.Request{A: sheet.Polygon, B: inst.polygon, BRot: rot, Inside: true})
		}
	}

	for i := 0; i < len(ind.order); i++ {
		a := n.instances[ind.order[i]]
		ra := ind.rotations[i]
		for j := i + 1; j < len(ind.order); j++ {
			b := n.instances[ind.order[j]]
			rb := ind.rotations[j]
			add(cache.Key{
				ASource: a.polygon.Source,
				BSource: b.polygon.Source,
				ARot:    ra,
				BRot:    rb,
			}, nfp.Request{A: a.polygon, B: b.polygon, ARot: ra, BRot: rb})
		}
	}
	return jobs
}

func (n *Nester) emitProgress(ev model.ProgressEvent) {
	select {
	case n.progress <- ev:
	default:
		// Progress is advisory; a slow consumer loses ticks, not results.
	}
}

func (n *Nester) emitResult(r model.NestResult) {
	select {
	case n.results <- r:
	default:
		log.Printf("engine: result consumer lagging, dropped generation %d emission", r.Generation)
	}
}

// PlacedPolygon reconstructs the absolute outline of a placement for
// exporters: the processed part geometry at its placed rotation and
// translation.
func (n *Nester) PlacedPolygon(p model.Placement) *model.Polygon {
	source, ok := n.bySource[p.Source]
	if !ok {
		return nil
	}
	rotated := geometry.RotatePolygon(source, p.Rotation)
	dx := p.X - rotated.Points[0].X
	dy := p.Y - rotated.Points[0].Y
	out := rotated.Translate(dx, dy)
	out.ID = p.ID
	return out
}

// SheetPolygon returns the sheet outline for the given source.
func (n *Nester) SheetPolygon(source string) *model.Polygon {
	for _, s := range n.sheets {
		if s.Source == source {
			return s.Polygon
		}
	}
	return nil
}

// LiveSources lists every part and sheet source in this run, the set a
// cache compaction keeps.
func (n *Nester) LiveSources() map[string]bool {
	live := make(map[string]bool, len(n.bySource)+len(n.sheets))
	for src := range n.bySource {
		live[src] = true
	}
	for _, s := range n.sheets {
		live[s.Source] = true
	}
	return live
}

package engine

import (
	"math"
	"math/rand"
)

// individual is one candidate solution: a placement order over the
// expanded part instances and a rotation per slot.
type individual struct {
	order     []int
	rotations []float64
	fitness   float64
	evaluated bool
}

func (ind *individual) clone() *individual {
	cp := &individual{
		order:     make([]int, len(ind.order)),
		rotations: make([]float64, len(ind.rotations)),
		fitness:   ind.fitness,
		evaluated: ind.evaluated,
	}
	copy(cp.order, ind.order)
	copy(cp.rotations, ind.rotations)
	return cp
}

// population holds the genetic state. All randomness flows through the
// single seeded source so runs are reproducible.
type population struct {
	individuals  []*individual
	mutationRate int // percent per gene
	grid         []float64
	rng          *rand.Rand
}

// newPopulation seeds the population: the first individual is the identity
// ordering at the declared default rotations, the rest are mutated copies.
func newPopulation(size int, defaults []float64, mutationRate int, grid []float64, rng *rand.Rand) *population {
	n := len(defaults)
	adam := &individual{
		order:     make([]int, n),
		rotations: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		adam.order[i] = i
		adam.rotations[i] = defaults[i]
	}

	p := &population{
		individuals:  []*individual{adam},
		mutationRate: mutationRate,
		grid:         grid,
		rng:          rng,
	}
	for len(p.individuals) < size {
		mutant := adam.clone()
		p.mutate(mutant)
		p.individuals = append(p.individuals, mutant)
	}
	return p
}

// rank sorts ascending by fitness; lower is better. Call only when every
// individual is evaluated.
func (p *population) rank() {
	sortByFitness(p.individuals)
}

func sortByFitness(inds []*individual) {
	// Insertion sort keeps the order stable for equal fitness, which the
	// determinism guarantee depends on.
	for i := 1; i < len(inds); i++ {
		for j := i; j > 0 && inds[j].fitness < inds[j-1].fitness; j-- {
			inds[j], inds[j-1] = inds[j-1], inds[j]
		}
	}
}

// generation replaces the population with elite plus offspring. The caller
// must have ranked first.
func (p *population) generation() {
	size := len(p.individuals)
	next := []*individual{p.individuals[0]} // elitism: 1

	for len(next) < size {
		male := p.selectWeighted(nil)
		female := p.selectWeighted(male)
		childA, childB := p.crossover(male, female)
		p.mutate(childA)
		next = append(next, childA)
		if len(next) < size {
			p.mutate(childB)
			next = append(next, childB)
		}
	}
	p.individuals = next
}

// selectWeighted draws an individual with rank-weighted probability,
// excluding one (so parents differ when the population allows it).
func (p *population) selectWeighted(exclude *individual) *individual {
	pool := make([]*individual, 0, len(p.individuals))
	for _, ind := range p.individuals {
		if ind != exclude {
			pool = append(pool, ind)
		}
	}
	if len(pool) == 0 {
		return p.individuals[0]
	}

	// Rank-weighted draw: rank 0 covers 1/n of [0,1), rank 1 twice that,
	// and each later rank a little less than the one before. The intervals
	// reach 1 before the end of the pool, so with three or more candidates
	// the lowest-ranked ones are never drawn.
	r := p.rng.Float64()
	weight := 1.0 / float64(len(pool))
	lower := 0.0
	upper := weight
	for i, ind := range pool {
		if r >= lower && r < upper {
			return ind
		}
		lower = upper
		upper += 2 * weight * float64(len(pool)-i) / float64(len(pool))
	}
	return pool[0]
}

// crossover is a partially mapped crossover on the order; rotations travel
// with their genes through the same mask.
func (p *population) crossover(male, female *individual) (*individual, *individual) {
	n := len(male.order)
	if n < 2 {
		return male.clone(), female.clone()
	}
	cut1 := p.rng.Intn(n)
	cut2 := p.rng.Intn(n)
	if cut1 > cut2 {
		cut1, cut2 = cut2, cut1
	}

	childA := pmxChild(male, female, cut1, cut2)
	childB := pmxChild(female, male, cut1, cut2)
	return childA, childB
}

// pmxChild copies the [cut1, cut2] segment from the first parent, then
// fills the remaining slots from the second parent in order, skipping
// genes already present. Each gene's rotation follows it.
func pmxChild(a, b *individual, cut1, cut2 int) *individual {
	n := len(a.order)
	child := &individual{
		order:     make([]int, 0, n),
		rotations: make([]float64, 0, n),
	}
	inSegment := make(map[int]bool, cut2-cut1+1)
	for i := cut1; i <= cut2; i++ {
		inSegment[a.order[i]] = true
	}

	bi := 0
	takeFromB := func() (int, float64) {
		for inSegment[b.order[bi]] {
			bi++
		}
		gene, rot := b.order[bi], b.rotations[bi]
		bi++
		return gene, rot
	}

	for i := 0; i < n; i++ {
		if i >= cut1 && i <= cut2 {
			child.order = append(child.order, a.order[i])
			child.rotations = append(child.rotations, a.rotations[i])
		} else {
			gene, rot := takeFromB()
			child.order = append(child.order, gene)
			child.rotations = append(child.rotations, rot)
		}
	}
	return child
}

// mutate applies per-gene mutation: a position swap with the next slot or
// a rotation resample from the grid, each at mutationRate percent.
func (p *population) mutate(ind *individual) {
	n := len(ind.order)
	rate := float64(p.mutationRate) / 100
	for i := 0; i < n; i++ {
		if p.rng.Float64() < rate && i+1 < n {
			ind.order[i], ind.order[i+1] = ind.order[i+1], ind.order[i]
			ind.rotations[i], ind.rotations[i+1] = ind.rotations[i+1], ind.rotations[i]
		}
		if p.rng.Float64() < rate && len(p.grid) > 0 {
			ind.rotations[i] = p.grid[p.rng.Intn(len(p.grid))]
		}
	}
	ind.evaluated = false
	ind.fitness = math.Inf(1)
}

package simulation

import (
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"PollPulse/internal/domain/models"
)

const (
	// DefaultIterations is the Monte Carlo sample count.
	DefaultIterations = 10000

	// DefaultStdDev is the per-draw Gaussian noise on regional support, in
	// percentage points.
	DefaultStdDev = 3.0
)

// Option configures MonteCarlo.
type Option func(*MonteCarlo)

// WithIterations sets the number of simulated elections.
func WithIterations(n int) Option {
	return func(m *MonteCarlo) {
		if n > 0 {
			m.iterations = n
		}
	}
}

// WithStdDev sets the support noise sigma.
func WithStdDev(sigma float64) Option {
	return func(m *MonteCarlo) {
		if sigma >= 0 {
			m.stdDev = sigma
		}
	}
}

// WithSeed sets the base seed. Iteration i draws from seed+i, so results do
// not depend on how iterations are spread over workers.
func WithSeed(seed int64) Option {
	return func(m *MonteCarlo) { m.seed = seed }
}

// WithShyVoter adds a constant bias to one candidate's drawn support.
// An empty region list applies the bias everywhere.
func WithShyVoter(adjustment float64, candidate string, regions []string) Option {
	return func(m *MonteCarlo) {
		m.shyAdjust = adjustment
		m.shyCandidate = candidate
		m.shyRegions = make(map[string]struct{}, len(regions))
		for _, r := range regions {
			m.shyRegions[r] = struct{}{}
		}
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(m *MonteCarlo) {
		if n > 0 {
			m.workers = n
		}
	}
}

// MonteCarlo simulates elections by perturbing regional point predictions
// with Gaussian noise and tallying outcome units. It implements
// service.OutcomeSimulator.
type MonteCarlo struct {
	iterations   int
	stdDev       float64
	seed         int64
	workers      int
	shyAdjust    float64
	shyCandidate string
	shyRegions   map[string]struct{}
}

// New creates a simulator with the given options.
func New(opts ...Option) *MonteCarlo {
	m := &MonteCarlo{
		iterations: DefaultIterations,
		stdDev:     DefaultStdDev,
		workers:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// regionRow is one region's inputs flattened for the hot loop. preds is
// indexed by candidate position; -1 marks a candidate with no prediction
// in that region.
type regionRow struct {
	units int64
	shy   bool
	preds []float64
}

// tally is one worker's accumulator. Merging two tallies is pure addition,
// so the final result is independent of iteration scheduling.
type tally struct {
	wins        []int64
	unitSums    []int64
	regionWins  [][]int64   // [region][candidate]
	supportSums [][]float64 // [region][candidate] drawn support totals
}

func newTally(nCandidates, nRegions int) *tally {
	t := &tally{
		wins:        make([]int64, nCandidates),
		unitSums:    make([]int64, nCandidates),
		regionWins:  make([][]int64, nRegions),
		supportSums: make([][]float64, nRegions),
	}
	for i := range t.regionWins {
		t.regionWins[i] = make([]int64, nCandidates)
		t.supportSums[i] = make([]float64, nCandidates)
	}
	return t
}

func (t *tally) merge(o *tally) {
	for i := range t.wins {
		t.wins[i] += o.wins[i]
		t.unitSums[i] += o.unitSums[i]
	}
	for r := range t.regionWins {
		for c := range t.regionWins[r] {
			t.regionWins[r][c] += o.regionWins[r][c]
			t.supportSums[r][c] += o.supportSums[r][c]
		}
	}
}

// Simulate runs the Monte Carlo over the given per-region point predictions.
// A candidate wins an iteration only with a strict majority of totalUnits;
// iterations where nobody clears the bar award no win, so win probabilities
// may sum below 1.
func (m *MonteCarlo) Simulate(
	predictions map[string]map[string]float64,
	regions map[string]models.RegionMetadata,
	totalUnits int,
) (*models.SimulationResult, error) {
	if len(predictions) == 0 {
		return nil, &models.ConfigError{Field: "predictions", Reason: "no regional predictions to simulate"}
	}
	if totalUnits <= 0 {
		return nil, &models.ConfigError{Field: "total_outcome_units", Reason: "must be positive"}
	}

	regionIDs := make([]string, 0, len(predictions))
	candSet := make(map[string]struct{})
	for r, preds := range predictions {
		regionIDs = append(regionIDs, r)
		for c := range preds {
			candSet[c] = struct{}{}
		}
	}
	sort.Strings(regionIDs)

	candidates := make([]string, 0, len(candSet))
	for c := range candSet {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)
	candIdx := make(map[string]int, len(candidates))
	for i, c := range candidates {
		candIdx[c] = i
	}

	// Flatten the inputs once so the hot loop is map-free.
	rows := make([]regionRow, len(regionIDs))
	for ri, r := range regionIDs {
		row := regionRow{
			units: int64(regions[r].OutcomeUnits),
			shy:   m.shyApplies(r),
			preds: make([]float64, len(candidates)),
		}
		for ci := range row.preds {
			row.preds[ci] = -1 // sentinel: candidate not predicted in region
		}
		for c, p := range predictions[r] {
			row.preds[candIdx[c]] = p
		}
		rows[ri] = row
	}

	shyIdx := -1
	if m.shyCandidate != "" {
		if i, ok := candIdx[m.shyCandidate]; ok {
			shyIdx = i
		}
	}

	workers := m.workers
	if workers > m.iterations {
		workers = m.iterations
	}
	if workers < 1 {
		workers = 1
	}

	tallies := make([]*tally, workers)
	var wg sync.WaitGroup
	chunk := (m.iterations + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > m.iterations {
			hi = m.iterations
		}
		t := newTally(len(candidates), len(rows))
		tallies[w] = t

		wg.Add(1)
		go func(lo, hi int, t *tally) {
			defer wg.Done()
			support := make([]float64, len(candidates))
			for it := lo; it < hi; it++ {
				m.runIteration(int64(it), rows, shyIdx, support, t, int64(totalUnits))
			}
		}(lo, hi, t)
	}
	wg.Wait()

	total := tallies[0]
	for _, t := range tallies[1:] {
		total.merge(t)
	}

	n := float64(m.iterations)
	result := &models.SimulationResult{
		Candidates:           candidates,
		WinProbabilities:     make([]float64, len(candidates)),
		ExpectedOutcomeUnits: make([]float64, len(candidates)),
		RegionWinProbs:       make(map[string]map[string]float64, len(regionIDs)),
		RegionSupportMeans:   make(map[string]map[string]float64, len(regionIDs)),
		NSimulations:         m.iterations,
	}
	for i := range candidates {
		result.WinProbabilities[i] = float64(total.wins[i]) / n
		result.ExpectedOutcomeUnits[i] = float64(total.unitSums[i]) / n
	}
	for ri, r := range regionIDs {
		probs := make(map[string]float64, len(candidates))
		means := make(map[string]float64, len(candidates))
		for ci, c := range candidates {
			probs[c] = float64(total.regionWins[ri][ci]) / n
			if rows[ri].preds[ci] >= 0 {
				means[c] = total.supportSums[ri][ci] / n
			}
		}
		result.RegionWinProbs[r] = probs
		result.RegionSupportMeans[r] = means
	}
	return result, nil
}

// runIteration simulates one election. The RNG is reseeded per iteration so
// the draw sequence depends only on the base seed and iteration index.
func (m *MonteCarlo) runIteration(
	it int64,
	rows []regionRow,
	shyIdx int,
	support []float64,
	t *tally,
	totalUnits int64,
) {
	rng := rand.New(rand.NewSource(m.seed + it))

	units := make([]int64, len(support))
	for ri := range rows {
		row := &rows[ri]

		best := -1
		nTied := 0
		for ci, p := range row.preds {
			if p < 0 {
				support[ci] = -1
				continue
			}
			s := p + rng.NormFloat64()*m.stdDev
			if ci == shyIdx && row.shy {
				s += m.shyAdjust
			}
			support[ci] = s
			t.supportSums[ri][ci] += s
			switch {
			case best < 0 || s > support[best]:
				best = ci
				nTied = 1
			case s == support[best]:
				nTied++
			}
		}
		if best < 0 {
			continue
		}
		if nTied > 1 {
			// one uniform draw picks among the tied candidates
			pick := int(rng.Float64() * float64(nTied))
			if pick >= nTied {
				pick = nTied - 1
			}
			for ci := range support {
				if support[ci] == support[best] && row.preds[ci] >= 0 {
					if pick == 0 {
						best = ci
						break
					}
					pick--
				}
			}
		}
		t.regionWins[ri][best]++
		units[best] += row.units
	}

	for ci, u := range units {
		t.unitSums[ci] += u
		if 2*u > totalUnits {
			t.wins[ci]++
		}
	}
}

func (m *MonteCarlo) shyApplies(region string) bool {
	if m.shyCandidate == "" || m.shyAdjust == 0 {
		return false
	}
	if len(m.shyRegions) == 0 {
		return true
	}
	_, ok := m.shyRegions[region]
	return ok
}

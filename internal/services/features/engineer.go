package features

import (
	"math/rand"
	"sort"
	"time"

	"PollPulse/internal/domain/models"
)

// Engineer builds model-ready feature vectors from cleaned poll records.
type Engineer struct {
	decayRate  float64
	minSamples int
	maxRecords int
}

// NewEngineer creates a feature engineer. Zero arguments fall back to the
// package defaults (decay 0.05, min 1, cap 1000).
func NewEngineer(decayRate float64, minSamples, maxRecords int) *Engineer {
	if decayRate <= 0 {
		decayRate = DefaultDecayRate
	}
	if minSamples <= 0 {
		minSamples = 1
	}
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &Engineer{decayRate: decayRate, minSamples: minSamples, maxRecords: maxRecords}
}

// RegionVocabulary maps region ids to stable integer encodings. It is built
// once per engineering run from the sorted distinct region ids and threaded
// through training and prediction as an explicit value.
type RegionVocabulary struct {
	ids  []string
	code map[string]int
}

// BuildRegionVocabulary builds a vocabulary from region metadata keys.
func BuildRegionVocabulary(regions map[string]models.RegionMetadata) *RegionVocabulary {
	ids := make([]string, 0, len(regions))
	for id := range regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	code := make(map[string]int, len(ids))
	for i, id := range ids {
		code[id] = i
	}
	return &RegionVocabulary{ids: ids, code: code}
}

// Encode returns the integer code for a region, or 0 for unknown regions.
func (v *RegionVocabulary) Encode(region string) int {
	if c, ok := v.code[region]; ok {
		return c
	}
	return 0
}

// Regions returns the sorted region ids.
func (v *RegionVocabulary) Regions() []string { return v.ids }

// FeatureSet is the immutable output of one engineering run.
type FeatureSet struct {
	Vectors    []models.FeatureVector
	Vocabulary *RegionVocabulary

	NPolls      int
	MinDaysAgo  int
	MaxDaysAgo  int
	CurrentDate time.Time

	// window stats reused when building prediction vectors
	minDays, maxDays         float64
	qualityLo, qualityHi     float64
	influenceLo, influenceHi float64

	// per (region, candidate) trailing state for "today" vectors
	recent map[pairKey]pairStats
}

type pairKey struct{ region, candidate string }

type pairStats struct {
	sum     float64
	n       int
	minDays int
}

// Build filters polls to [current-lookback, current] and derives one feature
// vector per retained record. It fails with DataInsufficientError when the
// filtered window holds fewer than the configured minimum.
func (e *Engineer) Build(
	polls []models.PollRecord,
	regions map[string]models.RegionMetadata,
	current time.Time,
	lookbackDays int,
	seed int64,
) (*FeatureSet, error) {
	from := current.AddDate(0, 0, -lookbackDays)

	filtered := make([]models.PollRecord, 0, len(polls))
	for _, p := range polls {
		if p.ObservationDate.After(current) || p.ObservationDate.Before(from) {
			continue
		}
		filtered = append(filtered, p)
	}

	if len(filtered) < e.minSamples || len(filtered) == 0 {
		return nil, &models.DataInsufficientError{Got: len(filtered), Need: e.minSamples}
	}

	// Cap oversized windows with a seeded deterministic sample.
	if len(filtered) > e.maxRecords {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(filtered), func(i, j int) {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		})
		filtered = filtered[:e.maxRecords]
	}

	// Stable order: by region, candidate, then date.
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Candidate != b.Candidate {
			return a.Candidate < b.Candidate
		}
		return a.ObservationDate.Before(b.ObservationDate)
	})

	vocab := BuildRegionVocabulary(regions)

	fs := &FeatureSet{
		Vocabulary:  vocab,
		NPolls:      len(filtered),
		CurrentDate: current,
		recent:      make(map[pairKey]pairStats),
	}

	// Window stats for min-max normalization.
	fs.minDays, fs.maxDays = windowRange(filtered, func(p models.PollRecord) float64 {
		return daysSince(p.ObservationDate, current)
	})
	fs.qualityLo, fs.qualityHi = windowRange(filtered, func(p models.PollRecord) float64 {
		return p.PollsterQuality
	})
	fs.influenceLo, fs.influenceHi = windowRange(filtered, func(p models.PollRecord) float64 {
		return p.PollsterInfluence
	})
	fs.MinDaysAgo = int(fs.minDays)
	fs.MaxDaysAgo = int(fs.maxDays)

	fs.Vectors = make([]models.FeatureVector, 0, len(filtered))
	for i, p := range filtered {
		days := daysSince(p.ObservationDate, current)
		meta := regions[p.Region]

		v := models.FeatureVector{
			Candidate:         p.Candidate,
			Region:            p.Region,
			Target:            p.PctEstimate,
			DaysSincePollNorm: Normalize(days, fs.minDays, fs.maxDays),
			WeeksSincePoll:    days / 7,
			TimeWeight:        TimeWeight(days, e.decayRate),
			RegionEncoded:     float64(vocab.Encode(p.Region)),
			RegionLean:        float64(meta.HistoricalLean),
			IsSwingRegion:     boolToFloat(meta.IsSwing),
			PollAvg7d:         trailingMean(filtered, i, 7),
			PollAvg14d:        trailingMean(filtered, i, 14),
			PollAvg30d:        trailingMean(filtered, i, 30),
			QualityScoreNorm:  Normalize(p.PollsterQuality, fs.qualityLo, fs.qualityHi),
			InfluenceNorm:     Normalize(p.PollsterInfluence, fs.influenceLo, fs.influenceHi),
		}
		fs.Vectors = append(fs.Vectors, v)

		key := pairKey{region: p.Region, candidate: p.Candidate}
		st, ok := fs.recent[key]
		if !ok {
			st.minDays = int(days)
		} else if int(days) < st.minDays {
			st.minDays = int(days)
		}
		st.sum += p.PctEstimate
		st.n++
		fs.recent[key] = st
	}

	return fs, nil
}

// ByCandidate splits the feature vectors per candidate.
func (fs *FeatureSet) ByCandidate() map[string][]models.FeatureVector {
	out := make(map[string][]models.FeatureVector)
	for _, v := range fs.Vectors {
		out[v.Candidate] = append(out[v.Candidate], v)
	}
	return out
}

// PredictionVector builds the "today" feature vector for a (candidate,
// region) pair using the same vocabulary and window stats as training.
// Pairs with no polls in the window fall back to a neutral prior.
func (fs *FeatureSet) PredictionVector(candidate, region string, meta models.RegionMetadata) []float64 {
	recentAvg := 45.0
	daysRecent := 30.0
	if st, ok := fs.recent[pairKey{region: region, candidate: candidate}]; ok && st.n > 0 {
		recentAvg = st.sum / float64(st.n)
		daysRecent = float64(st.minDays)
	}

	v := models.FeatureVector{
		DaysSincePollNorm: Normalize(daysRecent, fs.minDays, fs.maxDays),
		WeeksSincePoll:    daysRecent / 7,
		TimeWeight:        1.0, // the vector represents "now"
		RegionEncoded:     float64(fs.Vocabulary.Encode(region)),
		RegionLean:        float64(meta.HistoricalLean),
		IsSwingRegion:     boolToFloat(meta.IsSwing),
		PollAvg7d:         recentAvg,
		PollAvg14d:        recentAvg,
		PollAvg30d:        recentAvg,
		QualityScoreNorm:  0.5,
		InfluenceNorm:     0.5,
	}
	return v.Values()
}

// trailingMean averages pct_estimate over records for the same (region,
// candidate) dated within `windowDays` days at or before record i's own
// date. Records dated strictly after i never contribute. The slice is
// sorted by (region, candidate, date), so the group is contiguous.
func trailingMean(sorted []models.PollRecord, i int, windowDays int) float64 {
	cur := sorted[i]
	cutoff := cur.ObservationDate.AddDate(0, 0, -windowDays)

	sum := 0.0
	n := 0
	for j := i; j >= 0; j-- {
		p := sorted[j]
		if p.Region != cur.Region || p.Candidate != cur.Candidate {
			break
		}
		if !p.ObservationDate.After(cutoff) {
			break
		}
		sum += p.PctEstimate
		n++
	}
	if n == 0 {
		return cur.PctEstimate
	}
	return sum / float64(n)
}

func windowRange(polls []models.PollRecord, f func(models.PollRecord) float64) (lo, hi float64) {
	lo = f(polls[0])
	hi = lo
	for _, p := range polls[1:] {
		x := f(p)
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func daysSince(t, current time.Time) float64 {
	return current.Sub(t).Hours() / 24
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

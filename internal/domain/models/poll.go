package models

import "time"

// PollRecord is one cleaned opinion-poll observation. Records are owned by
// the collaborator supplying poll data; the core only reads them.
type PollRecord struct {
	Candidate         string
	Region            string
	ObservationDate   time.Time
	PctEstimate       float64 // [0,100]
	PollsterQuality   float64
	PollsterInfluence float64
}

// RegionMetadata describes one region of the race.
type RegionMetadata struct {
	RegionID       string
	OutcomeUnits   int
	HistoricalLean int // -1 lean A, 0 neutral, +1 lean B
	IsSwing        bool
}

// FeatureVector is the engineered representation of one poll record.
// Derived deterministically per engineering run; never mutated after creation.
type FeatureVector struct {
	Candidate string
	Region    string
	Target    float64 // observed pct_estimate

	DaysSincePollNorm float64
	WeeksSincePoll    float64
	TimeWeight        float64
	RegionEncoded     float64
	RegionLean        float64
	IsSwingRegion     float64
	PollAvg7d         float64
	PollAvg14d        float64
	PollAvg30d        float64
	QualityScoreNorm  float64
	InfluenceNorm     float64
}

// Values returns the feature columns in their canonical training order.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.DaysSincePollNorm,
		v.WeeksSincePoll,
		v.TimeWeight,
		v.RegionEncoded,
		v.RegionLean,
		v.IsSwingRegion,
		v.PollAvg7d,
		v.PollAvg14d,
		v.PollAvg30d,
		v.QualityScoreNorm,
		v.InfluenceNorm,
	}
}

// NumFeatures is the width of FeatureVector.Values.
const NumFeatures = 11

// ModelDiagnostics reports fit quality for one candidate model.
type ModelDiagnostics struct {
	RSquared float64 `json:"r_squared"`
	NSamples int     `json:"n_samples"`
}

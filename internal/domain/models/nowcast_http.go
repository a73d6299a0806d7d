package models

// Requests for nowcast HTTP endpoints. Defined in domain for consistency and reuse.

type NowcastRequest struct {
	ElectionPeriodID  string   `query:"election_period_id" json:"election_period_id"`
	Candidates        []string `json:"candidates" validate:"omitempty,min=2,dive,required"`
	CurrentDate       string   `query:"current_date" json:"current_date"`
	LookbackDays      int      `query:"lookback_days" json:"lookback_days" default:"60" validate:"gte=1,lte=730"`
	NSimulations      int      `query:"n_simulations" json:"n_simulations" default:"10000" validate:"gte=1,lte=1000000"`
	ShyVoterAdjust    float64  `query:"shy_voter_adjustment" json:"shy_voter_adjustment"`
	ShyCandidate      string   `query:"shy_candidate" json:"shy_candidate"`
	ShyRegions        []string `json:"shy_regions"`
	UncertaintyStd    float64  `query:"uncertainty_std" json:"uncertainty_std" default:"3.0" validate:"gte=0"`
	RandomSeed        *int64   `query:"random_seed" json:"random_seed"`
	MinSamples        int      `query:"min_samples" json:"min_samples" default:"30" validate:"gte=1"`
	RequireAll        bool     `query:"require_all" json:"require_all"`
	UseCache          bool     `query:"use_cache" json:"use_cache"`
	RefreshCache      bool     `query:"refresh_cache" json:"refresh_cache"`
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		PollsTopic    string   `yaml:"polls_topic"`
		ForecastTopic string   `yaml:"forecast_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Consumer      struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Election struct {
		PeriodID              string   `yaml:"period_id"`
		DataSourceLabel       string   `yaml:"data_source_label"`
		Candidates            []string `yaml:"candidates"`
		CurrentDate           string   `yaml:"current_date"` // YYYY-MM-DD; empty = today
		LookbackDays          int      `yaml:"lookback_days"`
		NSimulations          int      `yaml:"n_simulations"`
		ShyVoterAdjustment    float64  `yaml:"shy_voter_adjustment"`
		ShyCandidate          string   `yaml:"shy_candidate"`
		ShyRegions            []string `yaml:"shy_regions"`
		UncertaintyStd        float64  `yaml:"uncertainty_std"`
		RandomSeed            *int64   `yaml:"random_seed"`
		MinSamplesForTraining int      `yaml:"min_samples_for_training"`
		DecayRate             float64  `yaml:"decay_rate"`
		MaxPollRecords        int      `yaml:"max_poll_records"`
		TotalOutcomeUnits     int      `yaml:"total_outcome_units"`
		RequireAllCandidates  bool     `yaml:"require_all_candidates"`
	} `yaml:"election"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("CANDIDATES"); v != "" {
		c.Election.Candidates = strings.Split(v, ",")
	}
	if v := os.Getenv("NOWCAST_DATE"); v != "" {
		c.Election.CurrentDate = v
	}
	if v := os.Getenv("RANDOM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Election.RandomSeed = &seed
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Election.LookbackDays == 0 {
		c.Election.LookbackDays = 60
	}
	if c.Election.NSimulations == 0 {
		c.Election.NSimulations = 10000
	}
	if c.Election.UncertaintyStd == 0 {
		c.Election.UncertaintyStd = 3.0
	}
	if c.Election.MinSamplesForTraining == 0 {
		c.Election.MinSamplesForTraining = 30
	}
	if c.Election.DecayRate == 0 {
		c.Election.DecayRate = 0.05
	}
	if c.Election.MaxPollRecords == 0 {
		c.Election.MaxPollRecords = 1000
	}
	if c.Election.DataSourceLabel == "" {
		c.Election.DataSourceLabel = "pct_estimate"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Election.PeriodID == "" {
		return fmt.Errorf("election.period_id is required")
	}
	if len(c.Election.Candidates) < 2 {
		return fmt.Errorf("election.candidates needs at least 2 entries, got %d", len(c.Election.Candidates))
	}
	if c.Election.TotalOutcomeUnits <= 0 {
		return fmt.Errorf("election.total_outcome_units must be positive, got %d", c.Election.TotalOutcomeUnits)
	}
	if c.Election.NSimulations <= 0 {
		return fmt.Errorf("election.n_simulations must be positive, got %d", c.Election.NSimulations)
	}
	if c.Election.UncertaintyStd < 0 {
		return fmt.Errorf("election.uncertainty_std must be non-negative, got %v", c.Election.UncertaintyStd)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

package di

import (
	"context"
	"fmt"
	"time"

	"PollPulse/internal/domain/repository"
	"PollPulse/internal/handler/api"
	internalrepo "PollPulse/internal/repository"
	icache "PollPulse/internal/service/cache"
	"PollPulse/internal/usecase"
	pkgch "PollPulse/pkg/clickhouse"
	"PollPulse/pkg/config"
	pkgkafka "PollPulse/pkg/kafka"
	applogger "PollPulse/pkg/logger"
	"PollPulse/pkg/metrics"
	"PollPulse/pkg/server"
	"PollPulse/pkg/util"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	logCfg := &applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if logCfg.Level == "" {
		logCfg.Level = "info"
	}
	if logCfg.Format == "" {
		logCfg.Format = "console"
	}
	if logCfg.Output == "" {
		logCfg.Output = "stdout"
	}
	return applogger.New(logCfg)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.poll_records (
            period_id String,
            candidate String,
            region String,
            obs_date DateTime,
            pct_estimate Float64,
            pollster_quality Float64,
            pollster_influence Float64
        ) ENGINE=MergeTree ORDER BY (period_id, region, candidate, obs_date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.region_metadata (
            period_id String,
            region_id String,
            outcome_units Int32,
            historical_lean Int8,
            is_swing UInt8
        ) ENGINE=ReplacingMergeTree ORDER BY (period_id, region_id)`, db),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePollStore creates the ClickHouse poll store.
func ProvidePollStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PollStore {
	db := cfg.ClickHouse.Database
	store := internalrepo.NewClickHousePollStore(chClient.DB(), db+".poll_records", db+".region_metadata")
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideForecastPublisher creates the Kafka forecast publisher, or nil.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ForecastPublisher {
	if producer == nil || cfg.Kafka.ForecastTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer for poll ingest, or nil.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.PollsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvidePollsHandler registers the handler for the poll ingest topic.
func ProvidePollsHandler(store repository.PollStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaPollsHandler {
	return usecase.NewKafkaPollsHandler(cfg.Kafka.PollsTopic, store, m)
}

// ProvideNowcastPipeline creates the pipeline use case.
func ProvideNowcastPipeline(
	store repository.PollStore,
	pub repository.ForecastPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.NowcastPipeline {
	return usecase.NewNowcastPipeline(store, pub, m, l)
}

// ProvideRunDefaults maps election config onto pipeline parameters.
func ProvideRunDefaults(cfg *config.Config) usecase.NowcastParams {
	e := cfg.Election
	return usecase.NowcastParams{
		PeriodID:           e.PeriodID,
		DataSourceLabel:    e.DataSourceLabel,
		Candidates:         e.Candidates,
		CurrentDate:        util.ParseDateDefault(e.CurrentDate, time.Now().UTC().Truncate(24*time.Hour)),
		LookbackDays:       e.LookbackDays,
		NSimulations:       e.NSimulations,
		ShyVoterAdjustment: e.ShyVoterAdjustment,
		ShyCandidate:       e.ShyCandidate,
		ShyRegions:         e.ShyRegions,
		UncertaintyStd:     e.UncertaintyStd,
		RandomSeed:         e.RandomSeed,
		MinSamples:         e.MinSamplesForTraining,
		DecayRate:          e.DecayRate,
		MaxPollRecords:     e.MaxPollRecords,
		TotalOutcomeUnits:  e.TotalOutcomeUnits,
		RequireAll:         e.RequireAllCandidates,
	}
}

// ProvideForecastCache picks the cache backend, or nil when caching is off.
func ProvideForecastCache(cfg *config.Config) icache.BytesCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideNowcastHandler creates the HTTP handler.
func ProvideNowcastHandler(
	l *applogger.Logger,
	pipeline *usecase.NowcastPipeline,
	store repository.PollStore,
	defaults usecase.NowcastParams,
	forecastCache icache.BytesCache,
	cfg *config.Config,
) *api.NowcastEchoHandler {
	h := api.NewNowcastEchoHandler(l, pipeline, store, defaults)
	if forecastCache != nil {
		ttl := cfg.Cache.TTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		h.WithCache(forecastCache, ttl)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.NowcastEchoHandler,
	pipeline *usecase.NowcastPipeline,
	defaults usecase.NowcastParams,
	consumer *pkgkafka.Consumer,
	pollsHandler *usecase.KafkaPollsHandler,
	chClient *pkgch.Client,
	publisher repository.ForecastPublisher,
) *server.App {
	return server.New(cfg, l, handler, pipeline, defaults, consumer, pollsHandler, chClient, publisher)
}

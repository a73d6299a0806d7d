//go:build wireinject
// +build wireinject

package di

import (
	"PollPulse/pkg/config"
	"PollPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideForecastCache,

		// Repositories
		ProvidePollStore,
		ProvideForecastPublisher,

		// Use cases
		ProvideNowcastPipeline,
		ProvidePollsHandler,
		ProvideRunDefaults,

		// HTTP + application server
		ProvideNowcastHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

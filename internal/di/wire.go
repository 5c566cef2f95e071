//go:build wireinject
// +build wireinject

package di

import (
	"TaskStream/pkg/config"
	"TaskStream/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideBytesCache,

		// Repositories
		ProvideSeriesStore,
		ProvideAlertPublisher,

		// Analytics core
		ProvideMetricsCalculator,
		ProvideForecastEngine,

		// Use cases
		ProvideAnalyticsUseCase,

		// HTTP
		ProvideResponseCache,
		ProvideRateLimiter,
		ProvideAnalyticsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"SessionLens/pkg/config"
	"SessionLens/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires every dependency from the loaded configuration. The
// returned cleanup releases infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Core
		ProvideNormalizer,
		ProvideSessionClassifier,
		ProvideIngestor,
		ProvideDayClassifier,
		ProvideRulesEngine,
		ProvideRunRegistry,

		// Infrastructure
		ProvideClickHouseClient,
		ProvideSnapshotStore,
		ProvideRedisCache,
		ProvideResultCache,
		ProvideResultPublisher,

		// Use cases
		ProvidePipeline,
		ProvideRunQueue,
		ProvideRunJobs,

		// Transport
		ProvideRunsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/hi-noikiy/redtrader/pkg/config"
	"github.com/hi-noikiy/redtrader/pkg/server"
)

// InitializeApp wires the store, aggregator, compile job and ops server.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideCache,
		ProvideLocker,
		ProvideStore,
		ProvideCandleStore,
		ProvideMetaStore,
		ProvidePublisher,
		ProvideAggregator,
		ProvideCompileJob,
		ProvideOpsServer,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/config"
)

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (Store, error) {
	log = log.With().Str("component", "store").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverMemory:
		log.Info().Msg("using in-memory store, data is lost on exit")
		return NewMemoryStore(), nil

	case config.DriverLocal:
		s, err := OpenLocal(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Path).Msg("local store loaded")
		return s, nil

	case config.DriverMongo:
		s, err := OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return s, nil

	case config.DriverDynamoDB:
		s, err := OpenDynamo(ctx, cfg.DynamoDB.Table, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		log.Info().Str("table", cfg.DynamoDB.Table).Msg("using dynamodb store")
		return s, nil
	}
	return nil, fmt.Errorf("database: unknown driver %q", cfg.Driver)
}

package shared

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	redisad "poi_ingest/internal/adapters/redis"
	"poi_ingest/internal/domain"
	mysqlrepo "poi_ingest/internal/storage/mysql"
	"poi_ingest/internal/storage/sqlite"
)

// OpenStore connects the configured record store and migrates it. The
// returned func releases it.
func OpenStore(ctx context.Context, c Config) (domain.POIRepository, func() error, error) {
	switch c.StoreDriver {
	case "sqlite":
		r, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", c.SQLitePath).Msg("sqlite store ready")
		return r, r.Close, nil
	case "mysql":
		db, err := sql.Open("mysql", c.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("db.Ping: %w", err)
		}
		if err := mysqlrepo.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Msg("db ping ok")
		return mysqlrepo.New(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
}

// OpenStatus returns the Redis status store, or nil when REDIS_ADDR is unset
// or unreachable. Imports run without status tracking in that case.
func OpenStatus(ctx context.Context, c Config) domain.StatusStore {
	if c.RedisAddr == "" {
		return nil
	}
	s := redisad.New(c.RedisAddr, c.RedisPass, c.RedisDB, c.StatusTTL)
	if err := s.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unreachable; status tracking disabled")
		_ = s.Close()
		return nil
	}
	return s
}

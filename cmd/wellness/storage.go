package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/wellness-rewards/internal/cache"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/lock"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/internal/repository/memory"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// storage is the opened backing store plus the optional Redis pieces.
type storage struct {
	uow   repository.UnitOfWork
	db    *repository.DB
	cache *cache.Cache
	locks lock.Locker
}

// openStorage connects to the configured database and, when configured, Redis.
// Postgres schemas are managed by "wellness migrate"; SQLite is auto-migrated.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	st := &storage{}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		st.uow = memory.New()
	default:
		db, err := repository.NewDB(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Driver == config.DriverSQLite {
			if err := db.AutoMigrate(); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
			}
		}
		st.db = db
		st.uow = repository.NewUnitOfWork(db)
	}

	if cfg.RedisEnabled() {
		redisCache, err := cache.NewRedisCache(ctx, &cfg.Database.Redis)
		if err != nil {
			st.close()
			return nil, err
		}
		st.cache = redisCache
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	}

	if cfg.Lock.Backend == config.LockRedis && st.cache != nil {
		st.locks = lock.NewRedis(st.cache.Client(), time.Duration(cfg.Lock.TTL)*time.Second)
	} else {
		st.locks = lock.NewLocal()
	}

	return st, nil
}

func (st *storage) close() {
	if st.cache != nil {
		_ = st.cache.Close()
	}
	if st.db != nil {
		_ = st.db.Close()
	}
}

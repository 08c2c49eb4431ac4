// Package bootstrap picks the sales store and dashboard cache for a
// process from its configuration.
package bootstrap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bighogz/Kirana-Predict/internal/cache"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/store"
	"github.com/bighogz/Kirana-Predict/internal/supabase"
)

const pingTimeout = 10 * time.Second

// OpenStore returns the Supabase store when credentials resolve and the
// project answers, otherwise the local SQLite file. The second result
// names the backend for health output.
func OpenStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, string, error) {
	src := config.NewCredentialSource(cfg)
	creds, err := config.ResolveCredentials(src)
	switch {
	case err == nil:
		remote, err := connectRemote(ctx, creds)
		if err == nil {
			log.WithFields(logrus.Fields{
				"source": src.Name(),
				"url":    config.MaskURL(creds.URL),
			}).Info("using supabase store")
			return remote, "supabase", nil
		}
		log.WithError(err).Warn("supabase unreachable, falling back to local database")
	case errors.Is(err, config.ErrNoCredentials):
		log.Debug("no remote credentials, using local database")
	default:
		log.WithError(err).WithField("source", src.Name()).Warn("ignoring remote credentials")
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, "", err
	}
	log.WithField("path", cfg.DBPath).Info("using sqlite store")
	return db, "sqlite", nil
}

func connectRemote(ctx context.Context, creds config.Credentials) (*supabase.Client, error) {
	c, err := supabase.New(creds, nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// OpenCache returns a Redis cache when REDIS_ADDR is set and reachable,
// otherwise a file cache under the data directory.
func OpenCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) cache.Cache {
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.CacheMaxAge)
		if err == nil {
			log.WithField("addr", cfg.RedisAddr).Info("using redis cache")
			return r
		}
		log.WithError(err).Warn("redis unavailable, using file cache")
	}
	return cache.NewFile(cfg.DataDir, cfg.CacheMaxAge)
}

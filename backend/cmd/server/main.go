// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/efshare/backend/bot"
	"github.com/efchatnet/efshare/backend/config"
	"github.com/efchatnet/efshare/backend/handlers"
	"github.com/efchatnet/efshare/backend/middleware"
	"github.com/efchatnet/efshare/backend/storage/postgres"
	rediscache "github.com/efchatnet/efshare/backend/storage/redis"
	"github.com/efchatnet/efshare/backend/telegram"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "efshare",
		Level: hclog.LevelFromString(envOr("LOG_LEVEL", "info")),
	})

	cfg := config.FromEnv(logger)
	if len(cfg.Tenants) == 0 {
		logger.Warn("no tenants configured, serving with an empty registry")
	}

	// Redis is shared across tenants as a file-record cache; it is
	// optional and the service runs without it.
	var cache *rediscache.FileCache
	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, file lookups go straight to postgres", "addr", redisAddr, "error", err)
	} else {
		cache = rediscache.NewFileCache(rdb)
	}

	registry := bot.NewRegistry(logger, bot.RegistryOptions{
		Workers:       32,
		WebhookBase:   cfg.WebhookBase,
		WebhookSecret: cfg.WebhookSecret,
		LogChannel:    cfg.LogChannel,
	})

	// Each tenant gets its own database; a tenant that fails to come up
	// is skipped, the others continue.
	var dbs []*sql.DB
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for i, tenantCfg := range cfg.Tenants {
		db, err := sql.Open("postgres", tenantCfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open tenant database, skipping tenant", "slot", i+1, "error", err)
			continue
		}

		store := postgres.NewStore(db)
		if err := store.Migrate(); err != nil {
			logger.Error("failed to run migrations, skipping tenant", "slot", i+1, "error", err)
			db.Close()
			continue
		}

		transport := telegram.NewClient(tenantCfg.Token)
		tenant, err := registry.Register(ctx, tenantCfg, store, cache, transport)
		if err != nil {
			logger.Error("failed to register tenant, skipping", "slot", i+1, "error", err)
			db.Close()
			continue
		}
		dbs = append(dbs, db)
		logger.Info("tenant up", "slot", i+1, "bot", tenant.Username())
	}
	defer func() {
		for _, db := range dbs {
			db.Close()
		}
	}()

	webhookHandler := handlers.NewWebhookHandler(registry, logger)

	r := mux.NewRouter()
	r.HandleFunc("/", handlers.Home).Methods("GET")

	hooks := r.PathPrefix("/webhook").Subrouter()
	hooks.Use(middleware.NewSecretTokenMiddleware(cfg.WebhookSecret))
	hooks.HandleFunc("/{botUsername}", webhookHandler.HandleUpdate).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		for _, db := range dbs {
			if err := db.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	logger.Info("server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("server failed", "error", err)
		registry.Shutdown()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

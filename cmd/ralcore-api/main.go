// @title         RalCore API
// @version       0.1.0
// @description   Context intelligence layer between applications and LLMs

package main

import (
	"context"

	"ralcore/internal/platform/bus"
	"ralcore/internal/platform/config"
	"ralcore/internal/platform/logger"
	phttp "ralcore/internal/platform/net/http"
	"ralcore/internal/platform/store"

	"ralcore/internal/services/api"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	rdsCfg := root.Prefix("SERVICE_REDIS_")     // rdsCfg lives under SERVICE_REDIS_*

	// bring up logging early
	l := logger.Get()

	// CH (audit sink) and Redis (resolution bus) are optional; the API
	// degrades to fast-path-only without them
	chURL := chCfg.MayString("DBURL", "")
	rdsAddr := rdsCfg.MayString("ADDR", "")

	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "ralcore-api",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", true),
			},
			CH: store.CHConfig{
				Enabled: chURL != "",
				URL:     chURL,
			},
			RDS: store.RedisConfig{
				Enabled: rdsAddr != "",
				Addr:    rdsAddr,
				DB:      rdsCfg.MayInt("DB", 0),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	ctx := context.Background()

	// slow-path resolution bus rides on redis pub/sub
	var b *bus.Bus
	if st.RDS != nil {
		b = bus.New(st.RDS, bus.Config{})
		go func() {
			if err := b.Run(ctx); err != nil && ctx.Err() == nil {
				l.Error().Err(err).Msg("resolution bus stopped")
			}
		}()
	}

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			Bus:            b,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
		},
	)

	// run
	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

package main

import (
	"context"

	"ralcore/internal/modkit"
	"ralcore/internal/platform/bus"
	"ralcore/internal/platform/config"
	"ralcore/internal/platform/logger"
	"ralcore/internal/platform/store"

	"ralcore/internal/modkit/module"
	contextsmod "ralcore/internal/services/contexts/module"
	enrichermod "ralcore/internal/services/enricher/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "ralcore-enricher",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		RDS: store.RedisConfig{
			Enabled: true,
			Addr:    rdsCfg.MustString("ADDR"),
			DB:      rdsCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		RDS: st.RDS,
		Log: *l,
	}

	contexts := contextsmod.New(deps)
	module.Register(contexts.Name(), contexts.Ports())
	mem := module.MustPortsOf[contextsmod.Ports](contexts)

	mod := enrichermod.New(deps, enrichermod.Ports{
		Reader: mem.Reader,
		Writer: mem.Writer,
	})

	// Run serves the request channel and publishes responses; the API
	// side runs the matching waiter loop
	b := bus.New(st.RDS, bus.Config{})
	if err := mod.Service().Run(context.Background(), b); err != nil {
		l.Fatal().Err(err).Msg("enricher worker failed")
	}
}

// Package api provides the HTTP API for the application
package api

import (
	"ralcore/internal/core/privacy"
	"ralcore/internal/core/situational"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/platform/bus"
	"ralcore/internal/platform/config"
	"ralcore/internal/platform/logger"
	phttp "ralcore/internal/platform/net/http"
	"ralcore/internal/platform/store"

	"ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"
	"ralcore/internal/modkit/module"
	"ralcore/internal/modkit/swaggerkit"

	apicontexts "ralcore/internal/services/api/contexts/module"
	apidrift "ralcore/internal/services/api/drift/module"
	metamod "ralcore/internal/services/api/meta/module"
	apiprompt "ralcore/internal/services/api/prompt/module"
	apiuniversal "ralcore/internal/services/api/universal/module"
	auditsvc "ralcore/internal/services/audit/service"

	// Worker contexts module (owns the Reader/Writer ports)
	workercontexts "ralcore/internal/services/contexts/module"

	usvc "ralcore/internal/services/api/universal/service"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Bus            *bus.Bus // nil disables the slow path
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
		RDS: opt.Store.RDS,
	}

	// Construct the WORKER contexts module first and extract its ports
	workerContexts := workercontexts.New(deps)
	mem := module.MustPortsOf[workercontexts.Ports](workerContexts)

	// Shared in-process state: snapshot timelines and the situational
	// tracker are per-user and live for the process
	snaps := snapshot.NewHistory()
	tracker := situational.NewTracker()

	// Audit sink and user hashing share one anonymizer
	anon := privacy.NewAnonymizer(opt.Config.MayString("CORE_PRIVACY_SALT", ""))
	audit := auditsvc.New(deps.CH, anon)

	// Slow-path enrichment goes over the resolution bus when one is wired
	var slow usvc.Enricher
	if opt.Bus != nil {
		slow = opt.Bus
	}

	apiContexts := apicontexts.New(
		deps,
		modkit.WithPorts(apicontexts.Ports{
			Reader:    mem.Reader,
			Writer:    mem.Writer,
			Snapshots: snaps,
		}),
	)

	apiUniversal := apiuniversal.New(
		deps,
		modkit.WithPorts(apiuniversal.Ports{
			Reader:  mem.Reader,
			Tracker: tracker,
			Slow:    slow,
			Audit:   audit,
			Hash:    audit,
		}),
	)

	apiPrompt := apiprompt.New(
		deps,
		modkit.WithPorts(apiprompt.Ports{
			Reader:  mem.Reader,
			Tracker: tracker,
			Audit:   audit,
			Hash:    audit,
		}),
	)

	apiDrift := apidrift.New(
		deps,
		modkit.WithPorts(apidrift.Ports{
			Reader: mem.Reader,
			Writer: mem.Writer,
		}),
	)

	mods := []module.Module{
		metamod.New(deps),
		workerContexts, // include worker so its ports are registered
		apiContexts,
		apiUniversal,
		apiPrompt,
		apiDrift,
	}

	// versioned API with a common middleware stack; the identity
	// middleware resolves X-RAL-User before handlers run
	stack := append(httpkit.CommonStack(), httpkit.Identity(httpkit.NewHeaderPort("", "", nil)))

	httpkit.MountAPIV0(r, stack, func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}

// Package module wires prompt augmentation into the API using modkit
package module

import (
	"net/http"

	"ralcore/internal/core/situational"
	modkit "ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"

	phttp "ralcore/internal/services/api/prompt/http"
	psvc "ralcore/internal/services/api/prompt/service"
	auditdom "ralcore/internal/services/audit/domain"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// Ports declares the injected seams for this module
type Ports struct {
	Reader  ctxdom.ReaderPort
	Tracker *situational.Tracker
	Audit   auditdom.RecorderPort
	Hash    psvc.Hasher
}

// Module implements the prompt augmentation module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc psvc.Service
}

// New constructs the prompt module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("prompt"),
		modkit.WithPrefix("/prompt"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Reader == nil {
		panic("prompt module requires the Reader port (from services/contexts)")
	}

	cfg := FromConfig(deps.Cfg)
	svc := psvc.New(injected.Reader, injected.Tracker, injected.Audit, injected.Hash, psvc.Config{
		MaxTokens:     cfg.MaxTokens,
		MinConfidence: cfg.MinConfidence,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = injected

	external := b.Register
	m.register = func(r httpkit.Router) {
		phttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

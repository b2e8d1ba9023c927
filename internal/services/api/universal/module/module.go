// Package module wires universal augmentation into the API using modkit
package module

import (
	"net/http"

	"ralcore/internal/core/situational"
	modkit "ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"

	uhttp "ralcore/internal/services/api/universal/http"
	usvc "ralcore/internal/services/api/universal/service"
	auditdom "ralcore/internal/services/audit/domain"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// Ports declares the injected seams for this module
type Ports struct {
	Reader  ctxdom.ReaderPort
	Tracker *situational.Tracker
	Slow    usvc.Enricher
	Audit   auditdom.RecorderPort
	Hash    usvc.Hasher
}

// Module implements the universal augmentation module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc usvc.Service
}

// New constructs the universal module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("universal"),
		modkit.WithPrefix("/universal"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Reader == nil {
		panic("universal module requires the Reader port (from services/contexts)")
	}

	cfg := FromConfig(deps.Cfg)
	svc := usvc.New(injected.Reader, injected.Tracker, injected.Slow, injected.Audit, injected.Hash, usvc.Config{
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
		uhttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// Service exposes the concrete service for sibling modules
func (m *Module) Service() usvc.Service { return m.svc }

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

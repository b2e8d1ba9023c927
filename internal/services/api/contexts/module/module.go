// Package module wires the context API into the router using modkit
package module

import (
	"net/http"

	"ralcore/internal/core/snapshot"
	modkit "ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"

	chttp "ralcore/internal/services/api/contexts/http"
	csvc "ralcore/internal/services/api/contexts/service"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// Ports declares what this module needs injected and what it exposes
type Ports struct {
	Reader    ctxdom.ReaderPort
	Writer    ctxdom.WriterPort
	Snapshots *snapshot.History
}

// Module implements the context API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc csvc.Service
}

// New constructs the context API module; the memory ports come from
// the contexts worker module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("context"),
		modkit.WithPrefix("/context"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Reader == nil || injected.Writer == nil {
		panic("context API module requires Reader and Writer ports (from services/contexts)")
	}

	svc := csvc.New(injected.Reader, injected.Writer, injected.Snapshots)

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
		chttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// Service exposes the concrete service for sibling modules
func (m *Module) Service() csvc.Service { return m.svc }

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

// Package module wires drift status into the API using modkit
package module

import (
	"net/http"

	"ralcore/internal/core/drift"
	modkit "ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"

	dhttp "ralcore/internal/services/api/drift/http"
	dsvc "ralcore/internal/services/api/drift/service"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// Ports declares the injected memory ports
type Ports struct {
	Reader ctxdom.ReaderPort
	Writer ctxdom.WriterPort
}

// Module implements the drift API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc dsvc.Service
}

// New constructs the drift module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("drift"),
		modkit.WithPrefix("/drift"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Reader == nil || injected.Writer == nil {
		panic("drift module requires Reader and Writer ports (from services/contexts)")
	}

	svc := dsvc.New(injected.Reader, injected.Writer, drift.DefaultOptions())

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
		dhttp.Register(r, m.svc)
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

// Package module provides the context memory module
package module

import (
	"net/http"

	"ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"
	"ralcore/internal/modkit/repokit"
	"ralcore/internal/services/contexts/domain"
	"ralcore/internal/services/contexts/repo"
	"ralcore/internal/services/contexts/service"
)

// Ports exposed by the context memory module
type Ports struct {
	Reader domain.ReaderPort
	Writer domain.WriterPort
}

// Module implements modkit.Module; it mounts no routes of its own and
// exists so API modules can borrow its reader and writer ports
type Module struct {
	deps  modkit.Deps
	ports Ports
	svc   service.Service
}

// New constructs a new context memory module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(repokit.TxRunner(deps.PG), repo.NewPG(), service.Config{
		DecayHours:       opts.DecayHours,
		EphemeralTTL:     opts.EphemeralTTL,
		ConflictStrategy: opts.ConflictStrategy,
		CacheTTL:         opts.CacheTTL,
	}, cacheFor(deps))

	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Reader: svc, Writer: svc}
	return m
}

// Service returns the concrete memory service for sibling modules that
// need the combined surface
func (m *Module) Service() service.Service { return m.svc }

// Name implements modkit.Module
func (m *Module) Name() string { return "contexts" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}

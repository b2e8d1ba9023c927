// Package module wires the enricher worker service
package module

import (
	"ralcore/internal/core/situational"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/modkit"
	"ralcore/internal/modkit/httpkit"
	ctxdom "ralcore/internal/services/contexts/domain"
	"ralcore/internal/services/enricher/service"
)

// Ports holds the enricher module dependencies; Reader and Writer come
// from the contexts module
type Ports struct {
	Reader  ctxdom.ReaderPort
	Writer  ctxdom.WriterPort
	Snaps   *snapshot.History
	Tracker *situational.Tracker
}

// Module defines the enricher worker module
type Module struct {
	deps modkit.Deps
	svc  *service.Svc
}

// New constructs the enricher worker module
func New(deps modkit.Deps, ports Ports) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(ports.Reader, ports.Writer, ports.Snaps, ports.Tracker, service.Config{
		DecayEvery:    opts.DecayEvery,
		DecayAfter:    opts.DecayAfter,
		CleanupEvery:  opts.CleanupEvery,
		SnapshotEvery: opts.SnapshotEvery,
	})

	return &Module{deps: deps, svc: svc}
}

// Service returns the worker service for the runner binary
func (m *Module) Service() *service.Svc { return m.svc }

// Name returns the module name
func (m *Module) Name() string { return "enricher" }

// Prefix returns no route prefix; this is a worker-only module
func (m *Module) Prefix() string { return "" }

// Ports returns nothing; the enricher consumes ports, it exposes none
func (m *Module) Ports() any { return nil }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}

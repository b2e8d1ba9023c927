package domain

import (
	"context"
	"time"

	"ralcore/internal/core/memory"
)

// ReaderPort is the narrow read surface other modules depend on
type ReaderPort interface {
	GetByID(ctx context.Context, contextID string) (memory.Record, error)
	List(ctx context.Context, f ListFilter) ([]memory.Record, error)
	History(ctx context.Context, contextID string, limit int) ([]Version, error)
	GetUser(ctx context.Context, userID string) (User, error)
	ActiveSession(ctx context.Context, userID string) (Session, bool, error)
}

// WriterPort is the mutation surface; every write flows through here
type WriterPort interface {
	Store(ctx context.Context, in StoreInput) (memory.Record, error)
	Update(ctx context.Context, in UpdateInput) (memory.Record, error)
	Delete(ctx context.Context, contextID string) error
	Confirm(ctx context.Context, contextID string) (memory.Record, error)
	RecordCorrection(ctx context.Context, contextID string, newValue any) (memory.Record, error)
	Rollback(ctx context.Context, contextID string, toVersion int) (memory.Record, error)
	UpdateDriftStatus(ctx context.Context, contextID string, status memory.DriftStatus) error

	ApplyDecay(ctx context.Context, olderThan time.Time) (DecaySweep, error)
	CleanupExpired(ctx context.Context) (int, error)

	StartSession(ctx context.Context, userID string, clientInfo map[string]any) (Session, error)
	EndSession(ctx context.Context, userID, sessionID string) error
}

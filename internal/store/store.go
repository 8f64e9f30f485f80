// Package store persists pipeline runs and their funnels so successive runs
// over the same region extract can be compared.
package store

import (
	"context"
	"time"

	"github.com/osmtools/bridgematch/internal/ledger"
)

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one end-to-end pipeline execution over a region extract.
type Run struct {
	ID           string
	Region       string
	Status       RunStatus
	TotalBridges int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus
	Region string
	Limit  int
	Offset int
}

// Store defines the persistence interface for pipeline runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, region string) (*Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error
	CompleteRun(ctx context.Context, runID string, totalBridges int) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Funnels
	SaveLedger(ctx context.Context, runID string, entries []ledger.Entry) error
	LedgerFor(ctx context.Context, runID string) ([]ledger.Entry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Package store persists advisers, filings, narratives, and canonical
// profiles. Two backends are provided: Postgres for production and SQLite
// for offline development runs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/ria-hunter/internal/model"
)

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Advisers
	UpsertAdvisers(ctx context.Context, advisers []model.Adviser) (int64, error)
	UpsertAdviser(ctx context.Context, a model.Adviser) error
	AdviserKeysByCIK(ctx context.Context, ciks []string) (map[string]int64, error)

	// Filings
	AdvisersWithFilings(ctx context.Context, adviserKeys []int64) (map[int64]bool, error)
	InsertFilings(ctx context.Context, filings []model.Filing) (int64, error)
	FilingKeysByAdviser(ctx context.Context, adviserKeys []int64) (map[int64]int64, error)

	// Narratives
	InsertNarratives(ctx context.Context, narratives []model.NarrativeRecord) (int64, error)
	NarrativesMissingEmbedding(ctx context.Context, limit int) ([]model.NarrativeRecord, error)
	UpdateNarrativeEmbedding(ctx context.Context, narrativePK int64, embedding []float32) error
	CountNarrativesMissingEmbedding(ctx context.Context) (int64, error)

	// Canonical profiles
	UpsertProfiles(ctx context.Context, profiles []model.Profile) (int64, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	UpdateProfilePlacements(ctx context.Context, crdNumber string, fundCount, fundAUM int64, analyzedAt time.Time) error

	// Data-quality maintenance
	MaxProfileAUMForName(ctx context.Context, namePattern string) (int64, bool, error)
	ScaleProfileAUM(ctx context.Context, multiplier int64) (int64, error)
	DuplicateNameGroups(ctx context.Context) ([][]model.Profile, error)
	UpdateAdviserCRD(ctx context.Context, fromCRD, toCRD string) (int64, error)
	DeleteProfiles(ctx context.Context, crdNumbers []string) (int64, error)

	// Load log
	StartRun(ctx context.Context, stage string) (string, error)
	CompleteRun(ctx context.Context, runID string, rowsWritten int64, metadata map[string]any) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context) ([]model.RunEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package loader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ria-hunter/internal/model"
	"github.com/sells-group/ria-hunter/internal/store"
)

func TestDeriveCIK(t *testing.T) {
	tests := []struct {
		name      string
		secNumber string
		firm      string
		wantSEC   bool
	}{
		{name: "valid sec number wins", secNumber: "801-12345", firm: "Acme", wantSEC: true},
		{name: "empty sec number generates surrogate", secNumber: "", firm: "Acme"},
		{name: "placeholder generates surrogate", secNumber: "NONE", firm: "Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cik := DeriveCIK(tt.secNumber, tt.firm, "St. Louis", "MO")
			if tt.wantSEC {
				assert.Equal(t, tt.secNumber, cik)
				return
			}
			require.Len(t, cik, len("GEN_")+12)
			assert.True(t, len(cik) > 4 && cik[:4] == "GEN_")
			assert.Equal(t, cik, DeriveCIK(tt.secNumber, tt.firm, "St. Louis", "MO"),
				"surrogate must be stable")
		})
	}
}

func TestDeriveCIK_DistinctFirms(t *testing.T) {
	a := DeriveCIK("", "Acme Capital", "St. Louis", "MO")
	b := DeriveCIK("", "Brook Partners", "St. Louis", "MO")
	assert.NotEqual(t, a, b)
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "ria.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return &Loader{
		Store:              s,
		AdviserBatchSize:   2,
		FilingBatchSize:    2,
		NarrativeBatchSize: 2,
		LookupChunkSize:    2,
	}
}

func sampleProfiles() []model.Profile {
	return []model.Profile{
		{FirmName: "Acme Capital", CRDNumber: "123", SECNumber: "801-1", City: "St. Louis", State: "MO",
			AUM: 5_000_000, EmployeeCount: 10, IsRegistered: true, LastUpdated: "2024-03-15"},
		{FirmName: "Brook Partners", CRDNumber: "456", City: "Clayton", State: "MO",
			AUM: 1_000_000, IsRegistered: true, LastUpdated: "2024-03-15"},
		{FirmName: "", CRDNumber: "789"}, // nameless, must be skipped
	}
}

func sampleNarratives() []model.Narrative {
	return []model.Narrative{
		{CRDNumber: "123", Narrative: "Acme Capital is a registered investment adviser.", Source: "ria_profile"},
		{CRDNumber: "456", Narrative: "Brook Partners is a registered investment adviser.", Source: "ria_profile"},
		{CRDNumber: "999", Narrative: "Orphan narrative.", Source: "ria_profile"},
	}
}

func TestRun_LoadsEverything(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	summary, err := l.Run(ctx, sampleProfiles(), sampleNarratives())
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.AdvisersLoaded)
	assert.Equal(t, int64(2), summary.FilingsLoaded)
	assert.Equal(t, int64(2), summary.NarrativesLoaded)
	assert.Equal(t, int64(2), summary.ProfilesLoaded)
	// Nameless profile and orphan narrative.
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Errors)

	profiles, err := l.Store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	_, err := l.Run(ctx, sampleProfiles(), sampleNarratives())
	require.NoError(t, err)

	// Second run upserts advisers and profiles but adds no filings or
	// narratives.
	summary, err := l.Run(ctx, sampleProfiles(), sampleNarratives())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.AdvisersLoaded)
	assert.Zero(t, summary.FilingsLoaded)
	assert.Zero(t, summary.NarrativesLoaded)

	count, err := l.Store.CountNarrativesMissingEmbedding(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRun_DedupsByCIK(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	profiles := []model.Profile{
		{FirmName: "Acme Capital", CRDNumber: "123", SECNumber: "801-1", LastUpdated: "2024-03-15"},
		{FirmName: "Acme Capital Again", CRDNumber: "124", SECNumber: "801-1", LastUpdated: "2024-03-15"},
	}
	summary, err := l.Run(ctx, profiles, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.AdvisersLoaded)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRun_CollapsesSharedCRDProfiles(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	// The same firm can appear under a surrogate cik and again under its
	// SEC number while sharing one CRD. Both rows load as advisers, but
	// the profile upsert keys on crd_number and must see each CRD once
	// per batch, keeping the SEC-backed row.
	profiles := []model.Profile{
		{FirmName: "Acme Capital LLC", CRDNumber: "123", City: "St. Louis", State: "MO",
			AUM: 1_000_000, LastUpdated: "2024-03-15"},
		{FirmName: "Acme Capital", CRDNumber: "123", SECNumber: "801-1", City: "St. Louis", State: "MO",
			AUM: 5_000_000, LastUpdated: "2024-03-15"},
	}
	summary, err := l.Run(ctx, profiles, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.AdvisersLoaded)
	assert.Equal(t, int64(1), summary.ProfilesLoaded)

	got, err := l.Store.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "801-1", got[0].SECNumber)
	assert.Equal(t, int64(5_000_000), got[0].AUM)
}

// flakyStore fails every adviser batch and one specific record, forcing the
// loader down its per-record fallback path.
type flakyStore struct {
	store.Store
	batchCalls int
	poisonCIK  string
}

func (f *flakyStore) UpsertAdvisers(ctx context.Context, advisers []model.Adviser) (int64, error) {
	f.batchCalls++
	return 0, errors.New("payload too large")
}

func (f *flakyStore) UpsertAdviser(ctx context.Context, a model.Adviser) error {
	if a.CIK == f.poisonCIK {
		return errors.New("value too long for column")
	}
	return f.Store.UpsertAdviser(ctx, a)
}

func TestRun_BatchFailureFallsBackPerRecord(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)
	flaky := &flakyStore{Store: l.Store, poisonCIK: "801-1"}
	l.Store = flaky

	summary, err := l.Run(ctx, sampleProfiles(), sampleNarratives())
	require.NoError(t, err, "a failing record must not abort the run")
	assert.GreaterOrEqual(t, flaky.batchCalls, 1)

	// Acme (cik 801-1) fails even individually and is counted as an
	// error; Brook recovers through the fallback and loads fully.
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, int64(1), summary.AdvisersLoaded)
	assert.Equal(t, int64(1), summary.FilingsLoaded)
	assert.Equal(t, int64(1), summary.NarrativesLoaded)
}

func TestRun_RecordsRun(t *testing.T) {
	ctx := context.Background()
	l := newLoader(t)

	_, err := l.Run(ctx, sampleProfiles(), nil)
	require.NoError(t, err)

	runs, err := l.Store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "load", runs[0].Stage)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
}

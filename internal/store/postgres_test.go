package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ria-hunter/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestUpsertAdvisers(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_advisers"},
		[]string{"cik", "legal_name", "crd_number", "main_addr_street1", "main_addr_city", "main_addr_state", "main_addr_zip"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "advisers"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertAdvisers(context.Background(), []model.Adviser{
		{CIK: "801-12345", LegalName: "Acme Capital"},
		{CIK: "GEN_ABCDEF123456", LegalName: "Brook Partners"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAdviser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO advisers .+ ON CONFLICT \(cik\) DO UPDATE`).
		WithArgs("801-12345", "Acme Capital", "123", "100 Main St", "St. Louis", "MO", "63101").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertAdviser(context.Background(), model.Adviser{
		CIK: "801-12345", LegalName: "Acme Capital", CRDNumber: "123",
		Address: "100 Main St", City: "St. Louis", State: "MO", ZipCode: "63101",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdviserKeysByCIK(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT cik, adviser_pk FROM advisers WHERE cik = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"cik", "adviser_pk"}).
			AddRow("801-1", int64(10)).
			AddRow("801-2", int64(20)))

	keys, err := s.AdviserKeysByCIK(context.Background(), []string{"801-1", "801-2", "801-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"801-1": 10, "801-2": 20}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdviserKeysByCIK_Empty(t *testing.T) {
	s, _ := newMockStore(t)
	keys, err := s.AdviserKeysByCIK(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAdvisersWithFilings(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT DISTINCT adviser_fk FROM filings`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"adviser_fk"}).AddRow(int64(10)))

	have, err := s.AdvisersWithFilings(context.Background(), []int64{10, 20})
	require.NoError(t, err)
	assert.True(t, have[10])
	assert.False(t, have[20])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFilings(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"filings"},
		[]string{"adviser_fk", "filing_date", "total_aum", "employee_count", "services", "client_types"}).
		WillReturnResult(1)

	n, err := s.InsertFilings(context.Background(), []model.Filing{
		{AdviserFK: 10, FilingDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), TotalAUM: 5_000_000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilingKeysByAdviser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT DISTINCT ON \(adviser_fk\) adviser_fk, filing_pk`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"adviser_fk", "filing_pk"}).
			AddRow(int64(10), int64(100)))

	keys, err := s.FilingKeysByAdviser(context.Background(), []int64{10})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{10: 100}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNarratives(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"ria_narratives"},
		[]string{"adviser_fk", "filing_fk", "narrative_type", "narrative_text", "source", "embedding"}).
		WillReturnResult(1)

	n, err := s.InsertNarratives(context.Background(), []model.NarrativeRecord{
		{AdviserFK: 10, FilingFK: 100, NarrativeType: "profile", NarrativeText: "Acme is an adviser.", Source: "ria_profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNarrativesMissingEmbedding(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT narrative_pk, .+ WHERE embedding IS NULL`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(
			[]string{"narrative_pk", "adviser_fk", "filing_fk", "narrative_type", "narrative_text", "source"}).
			AddRow(int64(1), int64(10), int64(100), "profile", "Acme is an adviser.", "ria_profile"))

	out, err := s.NarrativesMissingEmbedding(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].NarrativePK)
	assert.Equal(t, "Acme is an adviser.", out[0].NarrativeText)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNarrativeEmbedding(t *testing.T) {
	s, mock := newMockStore(t)

	emb := []float32{0.1, 0.2, 0.3}
	mock.ExpectExec(`UPDATE ria_narratives SET embedding`).
		WithArgs(pgvector.NewVector(emb), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateNarrativeEmbedding(context.Background(), 7, emb))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountNarrativesMissingEmbedding(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ria_narratives WHERE embedding IS NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.CountNarrativesMissingEmbedding(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestUpdateProfilePlacements(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE ria_profiles\s+SET private_fund_count`).
		WithArgs(int64(3), int64(9_000_000), "2024-06-01", "123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateProfilePlacements(context.Background(), "123", 3, 9_000_000,
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxProfileAUMForName(t *testing.T) {
	s, mock := newMockStore(t)

	maxAUM := int64(5_000_000)
	mock.ExpectQuery(`SELECT MAX\(aum\) FROM ria_profiles`).
		WithArgs("%EDWARD JONES%").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&maxAUM))

	aum, ok, err := s.MaxProfileAUMForName(context.Background(), "%EDWARD JONES%")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5_000_000), aum)
}

func TestMaxProfileAUMForName_NoMatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT MAX\(aum\) FROM ria_profiles`).
		WithArgs("%NOBODY%").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	_, ok, err := s.MaxProfileAUMForName(context.Background(), "%NOBODY%")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScaleProfileAUM(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE ria_profiles SET aum = aum \* \$1`).
		WithArgs(int64(1000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 17000))

	n, err := s.ScaleProfileAUM(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(17000), n)
}

func TestDuplicateNameGroups(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"crd_number", "legal_name", "sec_number", "city", "state", "zip_code", "address",
		"aum", "employee_count", "is_registered", "services", "client_types",
		"data_source", "last_updated", "private_fund_count", "private_fund_aum", "last_private_fund_analysis"}
	row := func(crd, name string, aum int64) []any {
		return []any{crd, name, "", "", "", "", "", aum, 0, true, "", "", "", "", int64(0), int64(0), ""}
	}

	mock.ExpectQuery(`GROUP BY legal_name HAVING COUNT\(\*\) > 1`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(row("1", "Acme Capital", 900)...).
			AddRow(row("2", "Acme Capital", 100)...).
			AddRow(row("3", "Brook Partners", 500)...).
			AddRow(row("4", "Brook Partners", 400)...))

	groups, err := s.DuplicateNameGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "1", groups[0][0].CRDNumber)
	assert.Equal(t, int64(900), groups[0][0].AUM)
	assert.Equal(t, "Brook Partners", groups[1][0].FirmName)
}

func TestUpdateAdviserCRD(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE advisers SET crd_number`).
		WithArgs("1", "2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := s.UpdateAdviserCRD(context.Background(), "2", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteProfiles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM ria_profiles WHERE crd_number = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := s.DeleteProfiles(context.Background(), []string{"2", "4"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeleteProfiles_Empty(t *testing.T) {
	s, _ := newMockStore(t)
	n, err := s.DeleteProfiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunLifecycle(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO load_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE load_log\s+SET status = \$1, completed_at = now\(\), rows_written`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, err := s.StartRun(context.Background(), "load")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	err = s.CompleteRun(context.Background(), id, 500, map[string]any{"advisers": 500})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE load_log\s+SET status = \$1, completed_at = now\(\), error`).
		WithArgs("failed", "copy failed", "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", "copy failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	s, mock := newMockStore(t)

	started := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	mock.ExpectQuery(`SELECT id, stage, status, started_at`).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "stage", "status", "started_at", "completed_at", "rows_written", "error", "metadata"}).
			AddRow("run-2", "load", "complete", done, &done, int64(500), "", []byte(`{"advisers":500}`)).
			AddRow("run-1", "extract", "failed", started, &started, int64(0), "no files", nil))

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, float64(500), runs[0].Metadata["advisers"])
	assert.Equal(t, "no files", runs[1].Error)
}

func TestUpsertAdviser_Error(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO advisers`).
		WillReturnError(errors.New("connection reset"))

	err := s.UpsertAdviser(context.Background(), model.Adviser{CIK: "801-1", LegalName: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert adviser 801-1")
}

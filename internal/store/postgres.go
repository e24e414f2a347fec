package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/db"
	"github.com/sells-group/ria-hunter/internal/model"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse database url")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}

	zap.L().With(zap.String("component", "store")).
		Info("connected to postgres", zap.Int32("max_conns", cfg.MaxConns))
	return &PostgresStore{pool: pool}, nil
}

var adviserColumns = []string{
	"cik", "legal_name", "crd_number",
	"main_addr_street1", "main_addr_city", "main_addr_state", "main_addr_zip",
}

func adviserRow(a model.Adviser) []any {
	return []any{a.CIK, a.LegalName, a.CRDNumber, a.Address, a.City, a.State, a.ZipCode}
}

// UpsertAdvisers bulk-upserts advisers keyed on cik.
func (s *PostgresStore) UpsertAdvisers(ctx context.Context, advisers []model.Adviser) (int64, error) {
	rows := make([][]any, len(advisers))
	for i, a := range advisers {
		rows[i] = adviserRow(a)
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "advisers",
		Columns:      adviserColumns,
		ConflictKeys: []string{"cik"},
	}, rows)
}

// UpsertAdviser upserts a single adviser. Used as the per-record fallback
// when a batch upsert fails.
func (s *PostgresStore) UpsertAdviser(ctx context.Context, a model.Adviser) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO advisers (cik, legal_name, crd_number, main_addr_street1, main_addr_city, main_addr_state, main_addr_zip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cik) DO UPDATE SET
			legal_name = EXCLUDED.legal_name,
			crd_number = EXCLUDED.crd_number,
			main_addr_street1 = EXCLUDED.main_addr_street1,
			main_addr_city = EXCLUDED.main_addr_city,
			main_addr_state = EXCLUDED.main_addr_state,
			main_addr_zip = EXCLUDED.main_addr_zip,
			updated_at = now()`,
		a.CIK, a.LegalName, a.CRDNumber, a.Address, a.City, a.State, a.ZipCode)
	if err != nil {
		return eris.Wrapf(err, "store: upsert adviser %s", a.CIK)
	}
	return nil
}

// AdviserKeysByCIK maps the given ciks to their primary keys. Missing ciks
// are simply absent from the result.
func (s *PostgresStore) AdviserKeysByCIK(ctx context.Context, ciks []string) (map[string]int64, error) {
	keys := make(map[string]int64, len(ciks))
	if len(ciks) == 0 {
		return keys, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT cik, adviser_pk FROM advisers WHERE cik = ANY($1)`, ciks)
	if err != nil {
		return nil, eris.Wrap(err, "store: lookup adviser keys")
	}
	defer rows.Close()
	for rows.Next() {
		var cik string
		var pk int64
		if err := rows.Scan(&cik, &pk); err != nil {
			return nil, eris.Wrap(err, "store: scan adviser key")
		}
		keys[cik] = pk
	}
	return keys, rows.Err()
}

// AdvisersWithFilings reports which of the given advisers already have at
// least one filing.
func (s *PostgresStore) AdvisersWithFilings(ctx context.Context, adviserKeys []int64) (map[int64]bool, error) {
	have := make(map[int64]bool, len(adviserKeys))
	if len(adviserKeys) == 0 {
		return have, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT adviser_fk FROM filings WHERE adviser_fk = ANY($1)`, adviserKeys)
	if err != nil {
		return nil, eris.Wrap(err, "store: lookup advisers with filings")
	}
	defer rows.Close()
	for rows.Next() {
		var fk int64
		if err := rows.Scan(&fk); err != nil {
			return nil, eris.Wrap(err, "store: scan filing adviser")
		}
		have[fk] = true
	}
	return have, rows.Err()
}

// InsertFilings appends filing snapshots via COPY.
func (s *PostgresStore) InsertFilings(ctx context.Context, filings []model.Filing) (int64, error) {
	rows := make([][]any, len(filings))
	for i, f := range filings {
		rows[i] = []any{f.AdviserFK, f.FilingDate, f.TotalAUM, f.EmployeeCount, f.Services, f.ClientTypes}
	}
	return db.CopyFrom(ctx, s.pool, "filings",
		[]string{"adviser_fk", "filing_date", "total_aum", "employee_count", "services", "client_types"},
		rows)
}

// FilingKeysByAdviser returns the most recent filing key for each adviser.
func (s *PostgresStore) FilingKeysByAdviser(ctx context.Context, adviserKeys []int64) (map[int64]int64, error) {
	keys := make(map[int64]int64, len(adviserKeys))
	if len(adviserKeys) == 0 {
		return keys, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (adviser_fk) adviser_fk, filing_pk
		FROM filings
		WHERE adviser_fk = ANY($1)
		ORDER BY adviser_fk, filing_date DESC, filing_pk DESC`, adviserKeys)
	if err != nil {
		return nil, eris.Wrap(err, "store: lookup filing keys")
	}
	defer rows.Close()
	for rows.Next() {
		var adviserFK, filingPK int64
		if err := rows.Scan(&adviserFK, &filingPK); err != nil {
			return nil, eris.Wrap(err, "store: scan filing key")
		}
		keys[adviserFK] = filingPK
	}
	return keys, rows.Err()
}

// InsertNarratives appends narratives via COPY. Embeddings, when present,
// are stored as pgvector values.
func (s *PostgresStore) InsertNarratives(ctx context.Context, narratives []model.NarrativeRecord) (int64, error) {
	rows := make([][]any, len(narratives))
	for i, n := range narratives {
		var emb any
		if len(n.Embedding) > 0 {
			emb = pgvector.NewVector(n.Embedding)
		}
		rows[i] = []any{n.AdviserFK, n.FilingFK, n.NarrativeType, n.NarrativeText, n.Source, emb}
	}
	return db.CopyFrom(ctx, s.pool, "ria_narratives",
		[]string{"adviser_fk", "filing_fk", "narrative_type", "narrative_text", "source", "embedding"},
		rows)
}

// NarrativesMissingEmbedding returns up to limit narratives that have no
// embedding yet, oldest first.
func (s *PostgresStore) NarrativesMissingEmbedding(ctx context.Context, limit int) ([]model.NarrativeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT narrative_pk, adviser_fk, filing_fk, narrative_type, narrative_text, COALESCE(source, '')
		FROM ria_narratives
		WHERE embedding IS NULL
		ORDER BY narrative_pk
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: select narratives missing embedding")
	}
	defer rows.Close()

	var out []model.NarrativeRecord
	for rows.Next() {
		var n model.NarrativeRecord
		if err := rows.Scan(&n.NarrativePK, &n.AdviserFK, &n.FilingFK, &n.NarrativeType, &n.NarrativeText, &n.Source); err != nil {
			return nil, eris.Wrap(err, "store: scan narrative")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNarrativeEmbedding stores the embedding for one narrative.
func (s *PostgresStore) UpdateNarrativeEmbedding(ctx context.Context, narrativePK int64, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ria_narratives SET embedding = $1 WHERE narrative_pk = $2`,
		pgvector.NewVector(embedding), narrativePK)
	if err != nil {
		return eris.Wrapf(err, "store: update embedding for narrative %d", narrativePK)
	}
	return nil
}

// CountNarrativesMissingEmbedding counts narratives awaiting an embedding.
func (s *PostgresStore) CountNarrativesMissingEmbedding(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ria_narratives WHERE embedding IS NULL`).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "store: count narratives missing embedding")
	}
	return count, nil
}

var profileColumns = []string{
	"crd_number", "legal_name", "sec_number", "city", "state", "zip_code", "address",
	"aum", "employee_count", "is_registered", "services", "client_types",
	"data_source", "last_updated",
}

// UpsertProfiles bulk-upserts canonical profiles keyed on crd_number.
// Placement columns are left alone so a reload does not clobber analysis
// results.
func (s *PostgresStore) UpsertProfiles(ctx context.Context, profiles []model.Profile) (int64, error) {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{
			p.CRDNumber, p.FirmName, p.SECNumber, p.City, p.State, p.ZipCode, p.Address,
			p.AUM, p.EmployeeCount, p.IsRegistered, p.Services, p.ClientTypes,
			p.DataSource, p.LastUpdated,
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ria_profiles",
		Columns:      profileColumns,
		ConflictKeys: []string{"crd_number"},
	}, rows)
}

const selectProfile = `
	SELECT crd_number, COALESCE(legal_name, ''), COALESCE(sec_number, ''),
	       COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(address, ''),
	       aum, employee_count, is_registered,
	       COALESCE(services, ''), COALESCE(client_types, ''),
	       COALESCE(data_source, ''), COALESCE(last_updated, ''),
	       private_fund_count, private_fund_aum, COALESCE(last_private_fund_analysis, '')
	FROM ria_profiles`

func scanProfile(rows pgx.Rows) (model.Profile, error) {
	var p model.Profile
	err := rows.Scan(&p.CRDNumber, &p.FirmName, &p.SECNumber,
		&p.City, &p.State, &p.ZipCode, &p.Address,
		&p.AUM, &p.EmployeeCount, &p.IsRegistered,
		&p.Services, &p.ClientTypes,
		&p.DataSource, &p.LastUpdated,
		&p.PrivateFundCount, &p.PrivateFundAUM, &p.PlacementsAsOf)
	return p, err
}

// ListProfiles returns every canonical profile ordered by CRD number.
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, selectProfile+` ORDER BY crd_number`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan profile")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProfilePlacements records private fund analysis results on a profile.
func (s *PostgresStore) UpdateProfilePlacements(ctx context.Context, crdNumber string, fundCount, fundAUM int64, analyzedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ria_profiles
		SET private_fund_count = $1, private_fund_aum = $2, last_private_fund_analysis = $3
		WHERE crd_number = $4`,
		fundCount, fundAUM, analyzedAt.Format("2006-01-02"), crdNumber)
	if err != nil {
		return eris.Wrapf(err, "store: update placements for crd %s", crdNumber)
	}
	return nil
}

// MaxProfileAUMForName returns the highest AUM among profiles whose legal
// name matches the pattern (case-insensitive LIKE). The bool is false when
// no profile matches.
func (s *PostgresStore) MaxProfileAUMForName(ctx context.Context, namePattern string) (int64, bool, error) {
	var maxAUM *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(aum) FROM ria_profiles WHERE UPPER(legal_name) LIKE UPPER($1)`,
		namePattern).Scan(&maxAUM)
	if err != nil {
		return 0, false, eris.Wrapf(err, "store: max aum for %s", namePattern)
	}
	if maxAUM == nil {
		return 0, false, nil
	}
	return *maxAUM, true, nil
}

// ScaleProfileAUM multiplies every profile's AUM by the given factor and
// returns the number of rows touched.
func (s *PostgresStore) ScaleProfileAUM(ctx context.Context, multiplier int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE ria_profiles SET aum = aum * $1`, multiplier)
	if err != nil {
		return 0, eris.Wrap(err, "store: scale profile aum")
	}
	return tag.RowsAffected(), nil
}

// DuplicateNameGroups returns profiles sharing a legal name, grouped, with
// each group ordered by AUM descending.
func (s *PostgresStore) DuplicateNameGroups(ctx context.Context) ([][]model.Profile, error) {
	rows, err := s.pool.Query(ctx, selectProfile+`
		WHERE legal_name IN (
			SELECT legal_name FROM ria_profiles
			WHERE legal_name IS NOT NULL AND legal_name <> ''
			GROUP BY legal_name HAVING COUNT(*) > 1
		)
		ORDER BY legal_name, aum DESC, crd_number`)
	if err != nil {
		return nil, eris.Wrap(err, "store: select duplicate names")
	}
	defer rows.Close()

	var groups [][]model.Profile
	var current []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan duplicate profile")
		}
		if len(current) > 0 && current[0].FirmName != p.FirmName {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, rows.Err()
}

// UpdateAdviserCRD repoints advisers from one CRD number to another.
func (s *PostgresStore) UpdateAdviserCRD(ctx context.Context, fromCRD, toCRD string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE advisers SET crd_number = $1, updated_at = now() WHERE crd_number = $2`,
		toCRD, fromCRD)
	if err != nil {
		return 0, eris.Wrapf(err, "store: repoint crd %s", fromCRD)
	}
	return tag.RowsAffected(), nil
}

// DeleteProfiles removes the given profiles by CRD number.
func (s *PostgresStore) DeleteProfiles(ctx context.Context, crdNumbers []string) (int64, error) {
	if len(crdNumbers) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ria_profiles WHERE crd_number = ANY($1)`, crdNumbers)
	if err != nil {
		return 0, eris.Wrap(err, "store: delete profiles")
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

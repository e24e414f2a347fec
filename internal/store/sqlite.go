package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ria-hunter/internal/model"
)

// SQLiteStore implements Store on a local SQLite file. Embeddings are
// stored as JSON text since SQLite has no vector type.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open sqlite %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "store: ping sqlite %s", path)
	}

	zap.L().With(zap.String("component", "store")).
		Info("opened sqlite database", zap.String("path", path))
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS advisers (
	adviser_pk        INTEGER PRIMARY KEY AUTOINCREMENT,
	cik               TEXT NOT NULL UNIQUE,
	legal_name        TEXT NOT NULL,
	crd_number        TEXT,
	main_addr_street1 TEXT,
	main_addr_city    TEXT,
	main_addr_state   TEXT,
	main_addr_zip     TEXT,
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_advisers_crd_number ON advisers (crd_number);

CREATE TABLE IF NOT EXISTS filings (
	filing_pk      INTEGER PRIMARY KEY AUTOINCREMENT,
	adviser_fk     INTEGER NOT NULL REFERENCES advisers (adviser_pk) ON DELETE CASCADE,
	filing_date    TIMESTAMP NOT NULL,
	form_type      TEXT NOT NULL DEFAULT 'ADV',
	total_aum      INTEGER NOT NULL DEFAULT 0,
	employee_count INTEGER NOT NULL DEFAULT 0,
	services       TEXT,
	client_types   TEXT
);

CREATE INDEX IF NOT EXISTS idx_filings_adviser_fk ON filings (adviser_fk);

CREATE TABLE IF NOT EXISTS ria_narratives (
	narrative_pk   INTEGER PRIMARY KEY AUTOINCREMENT,
	adviser_fk     INTEGER NOT NULL REFERENCES advisers (adviser_pk) ON DELETE CASCADE,
	filing_fk      INTEGER NOT NULL REFERENCES filings (filing_pk) ON DELETE CASCADE,
	narrative_type TEXT NOT NULL DEFAULT 'profile',
	narrative_text TEXT NOT NULL,
	source         TEXT,
	embedding      TEXT
);

CREATE TABLE IF NOT EXISTS ria_profiles (
	crd_number                 TEXT PRIMARY KEY,
	legal_name                 TEXT,
	sec_number                 TEXT,
	city                       TEXT,
	state                      TEXT,
	zip_code                   TEXT,
	address                    TEXT,
	aum                        INTEGER NOT NULL DEFAULT 0,
	employee_count             INTEGER NOT NULL DEFAULT 0,
	is_registered              INTEGER NOT NULL DEFAULT 1,
	services                   TEXT,
	client_types               TEXT,
	data_source                TEXT,
	last_updated               TEXT,
	private_fund_count         INTEGER NOT NULL DEFAULT 0,
	private_fund_aum           INTEGER NOT NULL DEFAULT 0,
	last_private_fund_analysis TEXT
);

CREATE TABLE IF NOT EXISTS load_log (
	id           TEXT PRIMARY KEY,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	rows_written INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: apply sqlite schema")
	}
	return nil
}

const sqliteUpsertAdviser = `
	INSERT INTO advisers (cik, legal_name, crd_number, main_addr_street1, main_addr_city, main_addr_state, main_addr_zip)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (cik) DO UPDATE SET
		legal_name = excluded.legal_name,
		crd_number = excluded.crd_number,
		main_addr_street1 = excluded.main_addr_street1,
		main_addr_city = excluded.main_addr_city,
		main_addr_state = excluded.main_addr_state,
		main_addr_zip = excluded.main_addr_zip,
		updated_at = CURRENT_TIMESTAMP`

func (s *SQLiteStore) UpsertAdvisers(ctx context.Context, advisers []model.Adviser) (int64, error) {
	if len(advisers) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin adviser upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertAdviser)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare adviser upsert")
	}
	defer stmt.Close()

	for _, a := range advisers {
		if _, err := stmt.ExecContext(ctx, a.CIK, a.LegalName, a.CRDNumber, a.Address, a.City, a.State, a.ZipCode); err != nil {
			return 0, eris.Wrapf(err, "store: upsert adviser %s", a.CIK)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit adviser upsert")
	}
	return int64(len(advisers)), nil
}

func (s *SQLiteStore) UpsertAdviser(ctx context.Context, a model.Adviser) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsertAdviser,
		a.CIK, a.LegalName, a.CRDNumber, a.Address, a.City, a.State, a.ZipCode)
	if err != nil {
		return eris.Wrapf(err, "store: upsert adviser %s", a.CIK)
	}
	return nil
}

func (s *SQLiteStore) AdviserKeysByCIK(ctx context.Context, ciks []string) (map[string]int64, error) {
	keys := make(map[string]int64, len(ciks))
	if len(ciks) == 0 {
		return keys, nil
	}
	args := make([]any, len(ciks))
	for i, c := range ciks {
		args[i] = c
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cik, adviser_pk FROM advisers WHERE cik IN (`+placeholders(len(ciks))+`)`, args...)
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

func (s *SQLiteStore) AdvisersWithFilings(ctx context.Context, adviserKeys []int64) (map[int64]bool, error) {
	have := make(map[int64]bool, len(adviserKeys))
	if len(adviserKeys) == 0 {
		return have, nil
	}
	args := make([]any, len(adviserKeys))
	for i, k := range adviserKeys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT adviser_fk FROM filings WHERE adviser_fk IN (`+placeholders(len(adviserKeys))+`)`, args...)
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

func (s *SQLiteStore) InsertFilings(ctx context.Context, filings []model.Filing) (int64, error) {
	if len(filings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin filing insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO filings (adviser_fk, filing_date, total_aum, employee_count, services, client_types)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare filing insert")
	}
	defer stmt.Close()

	for _, f := range filings {
		if _, err := stmt.ExecContext(ctx, f.AdviserFK, f.FilingDate, f.TotalAUM, f.EmployeeCount, f.Services, f.ClientTypes); err != nil {
			return 0, eris.Wrapf(err, "store: insert filing for adviser %d", f.AdviserFK)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit filing insert")
	}
	return int64(len(filings)), nil
}

func (s *SQLiteStore) FilingKeysByAdviser(ctx context.Context, adviserKeys []int64) (map[int64]int64, error) {
	keys := make(map[int64]int64, len(adviserKeys))
	if len(adviserKeys) == 0 {
		return keys, nil
	}
	args := make([]any, len(adviserKeys))
	for i, k := range adviserKeys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT adviser_fk, filing_pk FROM filings
		WHERE adviser_fk IN (`+placeholders(len(adviserKeys))+`)
		ORDER BY adviser_fk, filing_date DESC, filing_pk DESC`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: lookup filing keys")
	}
	defer rows.Close()
	for rows.Next() {
		var adviserFK, filingPK int64
		if err := rows.Scan(&adviserFK, &filingPK); err != nil {
			return nil, eris.Wrap(err, "store: scan filing key")
		}
		if _, ok := keys[adviserFK]; !ok {
			keys[adviserFK] = filingPK
		}
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) InsertNarratives(ctx context.Context, narratives []model.NarrativeRecord) (int64, error) {
	if len(narratives) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin narrative insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ria_narratives (adviser_fk, filing_fk, narrative_type, narrative_text, source, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare narrative insert")
	}
	defer stmt.Close()

	for _, n := range narratives {
		emb, err := encodeEmbedding(n.Embedding)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, n.AdviserFK, n.FilingFK, n.NarrativeType, n.NarrativeText, n.Source, emb); err != nil {
			return 0, eris.Wrapf(err, "store: insert narrative for adviser %d", n.AdviserFK)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit narrative insert")
	}
	return int64(len(narratives)), nil
}

func (s *SQLiteStore) NarrativesMissingEmbedding(ctx context.Context, limit int) ([]model.NarrativeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT narrative_pk, adviser_fk, filing_fk, narrative_type, narrative_text, COALESCE(source, '')
		FROM ria_narratives
		WHERE embedding IS NULL
		ORDER BY narrative_pk
		LIMIT ?`, limit)
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

func (s *SQLiteStore) UpdateNarrativeEmbedding(ctx context.Context, narrativePK int64, embedding []float32) error {
	emb, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE ria_narratives SET embedding = ? WHERE narrative_pk = ?`, emb, narrativePK); err != nil {
		return eris.Wrapf(err, "store: update embedding for narrative %d", narrativePK)
	}
	return nil
}

func (s *SQLiteStore) CountNarrativesMissingEmbedding(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ria_narratives WHERE embedding IS NULL`).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "store: count narratives missing embedding")
	}
	return count, nil
}

const sqliteUpsertProfile = `
	INSERT INTO ria_profiles (crd_number, legal_name, sec_number, city, state, zip_code, address,
		aum, employee_count, is_registered, services, client_types, data_source, last_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (crd_number) DO UPDATE SET
		legal_name = excluded.legal_name,
		sec_number = excluded.sec_number,
		city = excluded.city,
		state = excluded.state,
		zip_code = excluded.zip_code,
		address = excluded.address,
		aum = excluded.aum,
		employee_count = excluded.employee_count,
		is_registered = excluded.is_registered,
		services = excluded.services,
		client_types = excluded.client_types,
		data_source = excluded.data_source,
		last_updated = excluded.last_updated`

func (s *SQLiteStore) UpsertProfiles(ctx context.Context, profiles []model.Profile) (int64, error) {
	if len(profiles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin profile upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertProfile)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare profile upsert")
	}
	defer stmt.Close()

	for _, p := range profiles {
		if _, err := stmt.ExecContext(ctx,
			p.CRDNumber, p.FirmName, p.SECNumber, p.City, p.State, p.ZipCode, p.Address,
			p.AUM, p.EmployeeCount, p.IsRegistered, p.Services, p.ClientTypes,
			p.DataSource, p.LastUpdated); err != nil {
			return 0, eris.Wrapf(err, "store: upsert profile %s", p.CRDNumber)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit profile upsert")
	}
	return int64(len(profiles)), nil
}

const sqliteSelectProfile = `
	SELECT crd_number, COALESCE(legal_name, ''), COALESCE(sec_number, ''),
	       COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(address, ''),
	       aum, employee_count, is_registered,
	       COALESCE(services, ''), COALESCE(client_types, ''),
	       COALESCE(data_source, ''), COALESCE(last_updated, ''),
	       private_fund_count, private_fund_aum, COALESCE(last_private_fund_analysis, '')
	FROM ria_profiles`

func scanSQLiteProfile(rows *sql.Rows) (model.Profile, error) {
	var p model.Profile
	err := rows.Scan(&p.CRDNumber, &p.FirmName, &p.SECNumber,
		&p.City, &p.State, &p.ZipCode, &p.Address,
		&p.AUM, &p.EmployeeCount, &p.IsRegistered,
		&p.Services, &p.ClientTypes,
		&p.DataSource, &p.LastUpdated,
		&p.PrivateFundCount, &p.PrivateFundAUM, &p.PlacementsAsOf)
	return p, err
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectProfile+` ORDER BY crd_number`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanSQLiteProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan profile")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateProfilePlacements(ctx context.Context, crdNumber string, fundCount, fundAUM int64, analyzedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ria_profiles
		SET private_fund_count = ?, private_fund_aum = ?, last_private_fund_analysis = ?
		WHERE crd_number = ?`,
		fundCount, fundAUM, analyzedAt.Format("2006-01-02"), crdNumber)
	if err != nil {
		return eris.Wrapf(err, "store: update placements for crd %s", crdNumber)
	}
	return nil
}

func (s *SQLiteStore) MaxProfileAUMForName(ctx context.Context, namePattern string) (int64, bool, error) {
	var maxAUM sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(aum) FROM ria_profiles WHERE UPPER(legal_name) LIKE UPPER(?)`,
		namePattern).Scan(&maxAUM)
	if err != nil {
		return 0, false, eris.Wrapf(err, "store: max aum for %s", namePattern)
	}
	if !maxAUM.Valid {
		return 0, false, nil
	}
	return maxAUM.Int64, true, nil
}

func (s *SQLiteStore) ScaleProfileAUM(ctx context.Context, multiplier int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE ria_profiles SET aum = aum * ?`, multiplier)
	if err != nil {
		return 0, eris.Wrap(err, "store: scale profile aum")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: scale profile aum rows")
	}
	return n, nil
}

func (s *SQLiteStore) DuplicateNameGroups(ctx context.Context) ([][]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectProfile+`
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
		p, err := scanSQLiteProfile(rows)
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

func (s *SQLiteStore) UpdateAdviserCRD(ctx context.Context, fromCRD, toCRD string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE advisers SET crd_number = ?, updated_at = CURRENT_TIMESTAMP WHERE crd_number = ?`,
		toCRD, fromCRD)
	if err != nil {
		return 0, eris.Wrapf(err, "store: repoint crd %s", fromCRD)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: repoint crd rows")
	}
	return n, nil
}

func (s *SQLiteStore) DeleteProfiles(ctx context.Context, crdNumbers []string) (int64, error) {
	if len(crdNumbers) == 0 {
		return 0, nil
	}
	args := make([]any, len(crdNumbers))
	for i, c := range crdNumbers {
		args[i] = c
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ria_profiles WHERE crd_number IN (`+placeholders(len(crdNumbers))+`)`, args...)
	if err != nil {
		return 0, eris.Wrap(err, "store: delete profiles")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: delete profiles rows")
	}
	return n, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, stage string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_log (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		id, stage, string(model.RunStatusRunning), time.Now().UTC())
	if err != nil {
		return "", eris.Wrapf(err, "store: start run for %s", stage)
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, rowsWritten int64, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "store: marshal run metadata")
		}
		meta = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE load_log
		SET status = ?, completed_at = ?, rows_written = ?, metadata = ?
		WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), rowsWritten, meta, runID)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE load_log
		SET status = ?, completed_at = ?, error = ?
		WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), errMsg, runID)
	if err != nil {
		return eris.Wrapf(err, "store: fail run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stage, status, started_at, completed_at, rows_written, COALESCE(error, ''), metadata
		FROM load_log
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status string
		var completed sql.NullTime
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &e.Stage, &status, &e.StartedAt, &completed, &e.RowsWritten, &e.Error, &meta); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		e.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			e.CompletedAt = &t
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, eris.Wrapf(err, "store: decode metadata for run %s", e.ID)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeEmbedding(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(embedding)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode embedding")
	}
	return string(b), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

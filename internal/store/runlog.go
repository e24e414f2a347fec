package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ria-hunter/internal/model"
)

// StartRun records the start of a pipeline stage and returns the run id.
func (s *PostgresStore) StartRun(ctx context.Context, stage string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO load_log (id, stage, status) VALUES ($1, $2, $3)`,
		id, stage, string(model.RunStatusRunning))
	if err != nil {
		return "", eris.Wrapf(err, "store: start run for %s", stage)
	}
	return id, nil
}

// CompleteRun marks a run as finished with its row count and metadata.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rowsWritten int64, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "store: marshal run metadata")
		}
		meta = string(b)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE load_log
		SET status = $1, completed_at = now(), rows_written = $2, metadata = $3
		WHERE id = $4`,
		string(model.RunStatusComplete), rowsWritten, meta, runID)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", runID)
	}
	return nil
}

// FailRun marks a run as failed with the error message.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE load_log
		SET status = $1, completed_at = now(), error = $2
		WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID)
	if err != nil {
		return eris.Wrapf(err, "store: fail run %s", runID)
	}
	return nil
}

// ListRuns returns every recorded run, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.RunEntry, error) {
	rows, err := s.pool.Query(ctx, `
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
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Stage, &status, &e.StartedAt, &e.CompletedAt, &e.RowsWritten, &e.Error, &meta); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		e.Status = model.RunStatus(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, eris.Wrapf(err, "store: decode metadata for run %s", e.ID)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "advisers", []string{"cik", "legal_name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"advisers"}, []string{"cik", "legal_name"}).WillReturnResult(3)

	rows := [][]any{
		{"801-11111", "Acme Advisors"},
		{"801-22222", "Brook Capital"},
		{"GEN_0A1B2C3D4E5F", "Cedar Wealth"},
	}
	n, err := CopyFrom(context.Background(), mock, "advisers", []string{"cik", "legal_name"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"advisers"}, []string{"cik"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"801-11111"}}
	_, err = CopyFrom(context.Background(), mock, "advisers", []string{"cik"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO advisers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

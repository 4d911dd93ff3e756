package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "court_cases",
		Columns:      []string{"case_number"},
		ConflictKeys: []string{"case_number"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	rows := [][]any{{"077-CR-0123"}}

	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"k"}}, rows)
	assert.Error(t, err, "no columns")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"c"}}, rows)
	assert.Error(t, err, "no conflict keys")
}

func TestBulkUpsert_SQLShape(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_court_cases"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_court_cases"}, []string{"case_number", "court_id", "case_type"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "court_cases" .* ON CONFLICT \("case_number", "court_id"\) DO UPDATE SET "case_type" = EXCLUDED\."case_type"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "court_cases",
		Columns:      []string{"case_number", "court_id", "case_type"},
		ConflictKeys: []string{"case_number", "court_id"},
	}, [][]any{
		{"077-CR-0123", "patanhc", "फौजदारी"},
		{"078-WO-0001", "patanhc", "रिट"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_FillEmptyCols(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_court_cases"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_court_cases"}, []string{"case_number", "court_id", "plaintiff", "updated_at"}).
		WillReturnResult(1)
	mock.ExpectExec(`DO UPDATE SET "updated_at" = EXCLUDED\."updated_at", "plaintiff" = CASE WHEN "court_cases"\."plaintiff" IS NULL OR "court_cases"\."plaintiff"::text = '' THEN EXCLUDED\."plaintiff" ELSE "court_cases"\."plaintiff" END`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:         "court_cases",
		Columns:       []string{"case_number", "court_id", "plaintiff", "updated_at"},
		ConflictKeys:  []string{"case_number", "court_id"},
		FillEmptyCols: []string{"plaintiff"},
	}, [][]any{
		{"077-CR-0123", "patanhc", "नेपाल सरकार", "2026-01-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_DoNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_case_hearings"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_case_hearings"}, []string{"case_number", "court_id", "hearing_date_bs"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "case_hearings" .* ON CONFLICT \("case_number", "court_id", "hearing_date_bs"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "case_hearings",
		Columns:      []string{"case_number", "court_id", "hearing_date_bs"},
		ConflictKeys: []string{"case_number", "court_id", "hearing_date_bs"},
		DoNothing:    true,
	}, [][]any{
		{"077-CR-0123", "patanhc", "2082-05-01"},
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

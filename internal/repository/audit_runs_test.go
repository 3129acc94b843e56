package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/claims"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/entity"
)

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?, ?)"
	assert.Equal(t, q, rebind(DialectSQLite, q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", rebind(DialectPostgres, q))
}

func openTestDB(t *testing.T) (*DB, AuditRunRepository) {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, nil) })
	repo := NewAuditRunRepository(db, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	return db, repo
}

func TestAuditRunLifecycle_SQLite(t *testing.T) {
	ctx := context.Background()
	db, repo := openTestDB(t)
	require.NoError(t, HealthCheck(ctx, db, time.Second, nil))

	run := &entity.AuditRun{
		Source:      "adjustments.csv",
		Format:      constants.CSV,
		ContentHash: "abc123",
	}
	require.NoError(t, repo.Start(ctx, run))
	require.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, constants.RunStatusRunning, run.Status)

	// an in-flight run is not a dedupe hit
	_, err := repo.FindLatestByHash(ctx, "abc123")
	require.ErrorIs(t, err, common.ErrNotFound)

	run.Status = constants.RunStatusOK
	run.RowCount = 3
	run.CandidateCount = 1
	run.Claims = []claims.Claim{{
		SKU:            "ABC-1",
		ClaimReason:    "Lost inventory",
		Quantity:       3,
		EstimatedValue: decimal.RequireFromString("25.50"),
		TransactionID:  "TX1",
	}}
	run.TotalEstimatedValue = decimal.RequireFromString("25.50")
	require.NoError(t, repo.Complete(ctx, run))
	assert.Equal(t, 1, run.ClaimCount)
	require.NotNil(t, run.FinishedAt)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusOK, got.Status)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, 1, got.ClaimCount)
	assert.True(t, got.TotalEstimatedValue.Equal(decimal.RequireFromString("25.5")))
	require.Len(t, got.Claims, 1)
	assert.Equal(t, "ABC-1", got.Claims[0].SKU)
	assert.True(t, got.Claims[0].EstimatedValue.Equal(decimal.RequireFromString("25.5")))
	assert.Nil(t, got.ErrorMessage)
	assert.True(t, got.Terminal())

	hit, err := repo.FindLatestByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, run.ID, hit.ID)
}

func TestAuditRunFailedIsNotReused(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestDB(t)

	msg := "classifier unavailable"
	run := &entity.AuditRun{Source: "a.csv", Format: constants.CSV, ContentHash: "h1"}
	require.NoError(t, repo.Start(ctx, run))
	run.Status = constants.RunStatusFailed
	run.ErrorMessage = &msg
	require.NoError(t, repo.Complete(ctx, run))

	_, err := repo.FindLatestByHash(ctx, "h1")
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.Empty(t, got.Claims)
}

func TestAuditRunListNewestFirst(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestDB(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := &entity.AuditRun{
			Source:      "f.csv",
			Format:      constants.CSV,
			ContentHash: "h",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Start(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Equal(t, base.Add(2*time.Minute), runs[0].CreatedAt)
}

func TestAuditRunGetMissing(t *testing.T) {
	_, repo := openTestDB(t)
	_, err := repo.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAuditRunStart_PostgresPlaceholders(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewAuditRunRepository(&DB{SQL: sqlDB, Dialect: DialectPostgres}, nil)
	args := make([]driver.Value, 14)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO audit_runs .* VALUES \(\$1, \$2, .*\$14\)`).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &entity.AuditRun{Source: "a.csv", Format: constants.CSV, ContentHash: "h"}
	require.NoError(t, repo.Start(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunComplete_StorageError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewAuditRunRepository(&DB{SQL: sqlDB, Dialect: DialectPostgres}, nil)
	mock.ExpectExec(`UPDATE audit_runs SET`).WillReturnError(errors.New("connection reset"))

	err = repo.Complete(context.Background(), &entity.AuditRun{ID: uuid.New(), Status: constants.RunStatusOK})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeStorage, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunComplete_UnknownID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewAuditRunRepository(&DB{SQL: sqlDB, Dialect: DialectPostgres}, nil)
	mock.ExpectExec(`UPDATE audit_runs SET .* WHERE id = \$10`).WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Complete(context.Background(), &entity.AuditRun{ID: uuid.New(), Status: constants.RunStatusEmpty})
	require.ErrorIs(t, err, common.ErrNotFound)
}

package repositories_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/database"
	"lendloop/internal/models"
	"lendloop/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var day0 = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func newLoan(t *testing.T, store repositories.Store, status models.LoanStatus) *models.LoanRequest {
	t.Helper()
	borrower := "borrower-1"
	req := &models.LoanRequest{
		ItemID:     "item-1",
		BorrowerID: &borrower,
		StartDate:  day0,
		EndDate:    day0.AddDate(0, 0, 5),
		Status:     status,
	}
	require.NoError(t, store.Loans().Create(context.Background(), req))
	return req
}

func TestUpdateStatus_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(database.NewTestDB(t))
	req := newLoan(t, store, models.LoanPending)

	stale := *req
	require.NoError(t, store.Loans().UpdateStatus(ctx, req, models.LoanApproved))
	assert.Equal(t, models.LoanApproved, req.Status)
	assert.Equal(t, 1, req.Version)

	err := store.Loans().UpdateStatus(ctx, &stale, models.LoanCanceled)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := store.Loans().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, got.Status)
}

func TestClaimReminder_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(database.NewTestDB(t))
	req := newLoan(t, store, models.LoanApproved)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := *req
			ok, err := store.Loans().ClaimReminder(ctx, &local, repositories.ReminderDueSoon, day0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)

	got, err := store.Loans().GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueSoonReminderSent)
	assert.Equal(t, req.Version, got.Version, "claims do not bump the version")
}

func TestClaimReminder_OverdueCounts(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(database.NewTestDB(t))
	req := newLoan(t, store, models.LoanApproved)

	ok, err := store.Loans().ClaimReminder(ctx, req, repositories.ReminderOverdue, day0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, req.OverdueReminderCount)

	stale := *req
	stale.OverdueReminderCount = 0
	ok, err = store.Loans().ClaimReminder(ctx, &stale, repositories.ReminderOverdue, day0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(database.NewTestDB(t))
	req := newLoan(t, store, models.LoanPending)

	err := store.Transaction(ctx, func(tx repositories.Store) error {
		require.NoError(t, tx.Loans().UpdateStatus(ctx, req, models.LoanDenied))
		return apperrors.Invalid("abort")
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)

	got, err := store.Loans().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, got.Status)
}

func TestUserSoftDelete_Conditional(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(database.NewTestDB(t))
	user := &models.User{Email: "ann@example.com", Password: "x", FirstName: "Ann", LastName: "Lee"}
	require.NoError(t, store.Users().Create(ctx, user))

	user.Anonymize(day0)
	require.NoError(t, store.Users().SoftDelete(ctx, user))

	err := store.Users().SoftDelete(ctx, user)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = store.Users().GetActiveByID(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCircleLock_PostgresSelectsForUpdate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "circles" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("c-1", "Tool Library"))

	circle, err := repositories.NewGORMCircleRepository(db).Lock(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Tool Library", circle.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircleLock_SQLiteMissing(t *testing.T) {
	_, err := repositories.NewGORMCircleRepository(database.NewTestDB(t)).Lock(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

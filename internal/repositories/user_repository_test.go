package repositories_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"securecart/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFailedLogin(t *testing.T) {
	id := uuid.MustParse("7d4f8a52-3c1e-4b6a-9f0d-2a8b5c6e1f03")

	tests := []struct {
		name         string
		prior        int
		wantAttempts int
		wantLockout  bool
	}{
		{"first failure", 0, 1, false},
		{"below the limit", 3, 4, false},
		{"reaching the limit locks the account", 4, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := repositories.NewUserRepository(db, nil)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT .* FROM "users" WHERE id = \$1`).
				WithArgs(id, 1).
				WillReturnRows(sqlmock.NewRows([]string{"id", "failed_login_attempts"}).AddRow(id.String(), tt.prior))
			if tt.wantLockout {
				mock.ExpectExec(`UPDATE "users" SET "account_lockout_until"=\$1,"failed_login_attempts"=\$2`).
					WithArgs(lockedUntil{min: time.Now().Add(14 * time.Minute)}, 0, sqlmock.AnyArg(), id).
					WillReturnResult(sqlmock.NewResult(0, 1))
			} else {
				mock.ExpectExec(`UPDATE "users" SET "failed_login_attempts"=\$1`).
					WithArgs(tt.wantAttempts, sqlmock.AnyArg(), id).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectCommit()

			attempts, err := repo.RecordFailedLogin(context.Background(), id, 5, 15*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAttempts, attempts)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repositories.NewUserRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM "users" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "failed_login_attempts"}))
		mock.ExpectRollback()

		_, err := repo.RecordFailedLogin(context.Background(), id, 5, 15*time.Minute)
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repositories.NewUserRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM "users" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "failed_login_attempts"}).AddRow(id.String(), 1))
		mock.ExpectExec(`UPDATE "users"`).WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		_, err := repo.RecordFailedLogin(context.Background(), id, 5, 15*time.Minute)
		assert.ErrorIs(t, err, repositories.ErrDatabaseOperation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// lockedUntil matches a lockout timestamp no earlier than min.
type lockedUntil struct {
	min time.Time
}

func (l lockedUntil) Match(v driver.Value) bool {
	until, ok := v.(time.Time)
	return ok && !until.Before(l.min)
}

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/microlearn/auth-service/app/entity"
	"github.com/microlearn/auth-service/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertRefreshTokenQuery   = `(?s)INSERT INTO refresh_tokens \(user_id, token, expires_at, created_at\)\s+VALUES \(\?, \?, \?, \?\)`
	findRefreshTokenQuery     = `(?s)SELECT id, user_id, token, expires_at, created_at\s+FROM refresh_tokens WHERE token = \?`
	findRefreshTokenForUpdate = `(?s)SELECT id, user_id, token, expires_at, created_at\s+FROM refresh_tokens WHERE token = \? FOR UPDATE`
	deleteRefreshTokenQuery   = `(?s)DELETE FROM refresh_tokens WHERE token = \?`
	deleteByUserIDQuery       = `(?s)DELETE FROM refresh_tokens WHERE user_id = \?`
	deleteExpiredQuery        = `(?s)DELETE FROM refresh_tokens WHERE expires_at < \?`
)

var refreshTokenColumns = []string{
	"id",
	"user_id",
	"token",
	"expires_at",
	"created_at",
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()
	token := &entity.RefreshToken{
		UserID:    2,
		Token:     "token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec(insertRefreshTokenQuery).
		WithArgs(token.UserID, token.Token, token.ExpiresAt, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.ID != 1 {
		t.Fatalf("expected ID 1, got %d", token.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_Create_Duplicate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()
	token := &entity.RefreshToken{
		UserID:    2,
		Token:     "token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec(insertRefreshTokenQuery).
		WithArgs(token.UserID, token.Token, token.ExpiresAt, token.CreatedAt).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), token)
	if !errors.Is(err, repository.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_FindByToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()

	mock.ExpectQuery(findRefreshTokenQuery).
		WithArgs("token").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1),
			uint64(2),
			"token",
			now.Add(time.Hour),
			now,
		))

	rt, err := repo.FindByToken(context.Background(), "token")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if rt == nil || rt.ID != 1 || rt.UserID != 2 {
		t.Fatalf("unexpected refresh token: %+v", rt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_Rotate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()
	fresh := &entity.RefreshToken{
		UserID:    2,
		Token:     "new-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(findRefreshTokenForUpdate).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1),
			uint64(2),
			"old-token",
			now.Add(time.Hour),
			now,
		))
	mock.ExpectExec(deleteRefreshTokenQuery).
		WithArgs("old-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertRefreshTokenQuery).
		WithArgs(fresh.UserID, fresh.Token, fresh.ExpiresAt, fresh.CreatedAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := repo.Rotate(context.Background(), "old-token", fresh); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if fresh.ID != 2 {
		t.Fatalf("expected fresh ID 2, got %d", fresh.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_Rotate_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()
	fresh := &entity.RefreshToken{
		UserID:    2,
		Token:     "new-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(findRefreshTokenForUpdate).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-token", fresh)
	if !errors.Is(err, repository.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_Rotate_Expired(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.Now()
	fresh := &entity.RefreshToken{
		UserID:    2,
		Token:     "new-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(findRefreshTokenForUpdate).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1),
			uint64(2),
			"old-token",
			now.Add(-time.Minute),
			now.Add(-time.Hour),
		))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-token", fresh)
	if !errors.Is(err, repository.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_DeleteByToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)

	mock.ExpectExec(deleteRefreshTokenQuery).
		WithArgs("token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.DeleteByToken(context.Background(), "token")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_DeleteByUserID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)

	mock.ExpectExec(deleteByUserIDQuery).
		WithArgs(uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteByUserID(context.Background(), 2); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)

	mock.ExpectExec(deleteExpiredQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	pruned, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if pruned != 5 {
		t.Fatalf("expected 5 rows pruned, got %d", pruned)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/microlearn/auth-service/app/entity"
)

const mysqlDuplicateEntry = 1062

// RefreshTokenRepository is the MySQL-backed allow-list of issued refresh
// tokens. Records are keyed by the raw token value; rotation is
// delete-then-insert inside one transaction, never update-in-place.
type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	return createRefreshToken(ctx, r.db, token)
}

func createRefreshToken(ctx context.Context, ex sqlExecutor, token *entity.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := ex.ExecContext(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateToken
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM refresh_tokens WHERE token = ?
	`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, token))
}

// Rotate atomically replaces oldToken with fresh: the record is locked,
// checked for expiry, deleted, and the replacement inserted in a single
// transaction. A token that has already been rotated yields
// ErrTokenNotFound, and a stale record yields ErrTokenExpired; in neither
// case is anything written.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, fresh *entity.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM refresh_tokens WHERE token = ? FOR UPDATE
	`
	record, err := scanRefreshToken(tx.QueryRowContext(ctx, query, oldToken))
	if err != nil {
		return err
	}
	if record == nil {
		return ErrTokenNotFound
	}
	if record.ExpiresAt.Before(time.Now()) {
		return ErrTokenExpired
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, oldToken); err != nil {
		return err
	}

	if err = createRefreshToken(ctx, tx, fresh); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

// DeleteExpired prunes records whose expiry has passed. Expiry is otherwise
// only checked lazily at use-time; this backs the `tokens prune` command.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanRefreshToken(row *sql.Row) (*entity.RefreshToken, error) {
	rt := &entity.RefreshToken{}
	err := row.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.ExpiresAt,
		&rt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

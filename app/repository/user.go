package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/microlearn/auth-service/app/entity"
)

const userSelectColumns = `id, email, password_hash, name, role, avatar, bio, is_email_verified,
	       email_verification_token, email_verification_expires_at,
	       password_reset_token, password_reset_expires_at,
	       last_login_at, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, avatar, bio, is_email_verified, email_verification_token, email_verification_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Avatar,
		user.Bio,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

// FindByEmail looks a user up by email. The users.email column uses a
// case-insensitive collation, so the lookup is case-insensitive while the
// stored value keeps its original casing.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT ` + userSelectColumns + `
		FROM users WHERE email = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT ` + userSelectColumns + `
		FROM users WHERE id = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByVerificationToken looks a user up by the SHA-256 digest of a raw
// email-verification token.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, digest string) (*entity.User, error) {
	query := `
		SELECT ` + userSelectColumns + `
		FROM users WHERE email_verification_token = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, digest))
}

// FindByResetToken looks a user up by the SHA-256 digest of a raw
// password-reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, digest string) (*entity.User, error) {
	query := `
		SELECT ` + userSelectColumns + `
		FROM users WHERE password_reset_token = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, digest))
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users SET
			email = ?,
			password_hash = ?,
			name = ?,
			role = ?,
			avatar = ?,
			bio = ?,
			is_email_verified = ?,
			email_verification_token = ?,
			email_verification_expires_at = ?,
			password_reset_token = ?,
			password_reset_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Avatar,
		user.Bio,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationExpiresAt,
		user.PasswordResetToken,
		user.PasswordResetExpiresAt,
		user.UpdatedAt,
		user.ID,
	)
	return err
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uint64, lastLogin time.Time) error {
	query := `UPDATE users SET last_login_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, lastLogin, userID)
	return err
}

func (r *UserRepository) scanUser(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Avatar,
		&user.Bio,
		&user.IsEmailVerified,
		&user.EmailVerificationToken,
		&user.EmailVerificationExpiresAt,
		&user.PasswordResetToken,
		&user.PasswordResetExpiresAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

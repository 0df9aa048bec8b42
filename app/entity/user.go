package entity

import (
	"database/sql"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleLearner    Role = "LEARNER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleLearner:
		return true
	}
	return false
}

type User struct {
	ID                         uint64
	Email                      string
	PasswordHash               string
	Name                       string
	Role                       Role
	Avatar                     sql.NullString
	Bio                        sql.NullString
	IsEmailVerified            bool
	EmailVerificationToken     sql.NullString
	EmailVerificationExpiresAt sql.NullTime
	PasswordResetToken         sql.NullString
	PasswordResetExpiresAt     sql.NullTime
	LastLoginAt                sql.NullTime
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

type RefreshToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

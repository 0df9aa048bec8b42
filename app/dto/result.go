package dto

import (
	"time"

	"github.com/microlearn/auth-service/app/entity"
)

// PublicUser is the externally visible projection of a user. It never
// carries the password digest or any stored token digest.
type PublicUser struct {
	ID              uint64      `json:"id"`
	Email           string      `json:"email"`
	Name            string      `json:"name"`
	Role            entity.Role `json:"role"`
	Avatar          string      `json:"avatar,omitempty"`
	Bio             string      `json:"bio,omitempty"`
	IsEmailVerified bool        `json:"isEmailVerified"`
	LastLoginAt     *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func NewPublicUser(user *entity.User) PublicUser {
	pu := PublicUser{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Role:            user.Role,
		IsEmailVerified: user.IsEmailVerified,
		CreatedAt:       user.CreatedAt,
	}
	if user.Avatar.Valid {
		pu.Avatar = user.Avatar.String
	}
	if user.Bio.Valid {
		pu.Bio = user.Bio.String
	}
	if user.LastLoginAt.Valid {
		t := user.LastLoginAt.Time
		pu.LastLoginAt = &t
	}
	return pu
}

type RegisterResult struct {
	User PublicUser
}

type LoginResult struct {
	User         PublicUser
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

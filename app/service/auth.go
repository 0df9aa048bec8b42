package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/microlearn/auth-service/app/dto"
	"github.com/microlearn/auth-service/app/entity"
	"github.com/microlearn/auth-service/app/repository"
	"github.com/microlearn/auth-service/app/security"
	"github.com/microlearn/auth-service/config"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrAlreadyVerified    = errors.New("email is already verified")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrInvalidRole        = errors.New("invalid role")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByVerificationToken(ctx context.Context, digest string) (*entity.User, error)
	FindByResetToken(ctx context.Context, digest string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	UpdateLastLogin(ctx context.Context, userID uint64, lastLogin time.Time) error
}

// RefreshTokenStore is the allow-list of valid refresh tokens. The MySQL
// and Redis backed implementations are interchangeable; wiring picks one.
type RefreshTokenStore interface {
	Create(ctx context.Context, token *entity.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)
	Rotate(ctx context.Context, oldToken string, fresh *entity.RefreshToken) error
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint64) error
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string, role entity.Role) (*dto.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*dto.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResult, error)
	Logout(ctx context.Context, userID uint64) error
	Me(ctx context.Context, userID uint64) (*dto.PublicUser, error)
	VerifyEmail(ctx context.Context, rawToken string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

// AsyncRunner dispatches fire-and-forget side effects. The default runs
// each task on its own goroutine; tests substitute a synchronous runner.
type AsyncRunner func(task func())

type AuthServiceOption func(*authService)

type authService struct {
	userRepo      userRepository
	refreshTokens RefreshTokenStore
	codec         *security.TokenCodec
	hasher        *security.PasswordHasher
	mailer        Mailer
	cfg           *config.Config
	asyncRunner   AsyncRunner
}

func NewAuthService(
	userRepo userRepository,
	refreshTokens RefreshTokenStore,
	codec *security.TokenCodec,
	hasher *security.PasswordHasher,
	mailer Mailer,
	cfg *config.Config,
	opts ...AuthServiceOption,
) AuthService {
	svc := &authService{
		userRepo:      userRepo,
		refreshTokens: refreshTokens,
		codec:         codec,
		hasher:        hasher,
		mailer:        mailer,
		cfg:           cfg,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) AuthServiceOption {
	return func(s *authService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string, role entity.Role) (*dto.RegisterResult, error) {
	if role == "" {
		role = entity.RoleLearner
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	if err = s.cfg.Password.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	verification, err := security.NewVerificationToken(s.cfg.Tokens.VerificationTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		Email:                  email,
		PasswordHash:           passwordHash,
		Name:                   name,
		Role:                   role,
		IsEmailVerified:        false,
		EmailVerificationToken: sql.NullString{String: security.HashToken(verification.Raw), Valid: true},
		EmailVerificationExpiresAt: sql.NullTime{
			Time:  verification.ExpiresAt,
			Valid: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendMailAsync(VerificationEmail(s.cfg.Mail.AppURL, user.Email, user.Name, verification.Raw))

	result := dto.NewPublicUser(user)
	return &dto.RegisterResult{User: result}, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*dto.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	s.asyncRunner(func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if updateErr := s.userRepo.UpdateLastLogin(updateCtx, user.ID, time.Now()); updateErr != nil {
			logrus.WithError(updateErr).WithField("user_id", user.ID).Error("failed to update last_login_at")
		}
	})

	accessToken, refreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		User:         dto.NewPublicUser(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResult, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	payload := claims.Payload()

	accessToken, err := s.codec.IssueAccess(payload)
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := s.rotateRefreshToken(ctx, refreshToken, payload)
	if err != nil {
		return nil, err
	}

	return &dto.RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout terminates every active session for the user, not just the one
// that presented the request.
func (s *authService) Logout(ctx context.Context, userID uint64) error {
	return s.refreshTokens.DeleteByUserID(ctx, userID)
}

func (s *authService) Me(ctx context.Context, userID uint64) (*dto.PublicUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	profile := dto.NewPublicUser(user)
	return &profile, nil
}

func (s *authService) VerifyEmail(ctx context.Context, rawToken string) error {
	user, err := s.userRepo.FindByVerificationToken(ctx, security.HashToken(rawToken))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}

	if !user.EmailVerificationExpiresAt.Valid || security.IsExpired(user.EmailVerificationExpiresAt.Time) {
		return ErrTokenExpired
	}

	user.IsEmailVerified = true
	user.EmailVerificationToken = sql.NullString{Valid: false}
	user.EmailVerificationExpiresAt = sql.NullTime{Valid: false}

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.sendMailAsync(WelcomeEmail(s.cfg.Mail.AppURL, user.Email, user.Name))
	return nil
}

// ResendVerification is anti-enumeration: an unknown email yields the same
// nil result as a successful resend, with no record touched.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	verification, err := security.NewVerificationToken(s.cfg.Tokens.VerificationTTL)
	if err != nil {
		return err
	}

	// Only one digest/expiry pair is stored, so any prior token is
	// implicitly invalidated here.
	user.EmailVerificationToken = sql.NullString{String: security.HashToken(verification.Raw), Valid: true}
	user.EmailVerificationExpiresAt = sql.NullTime{Time: verification.ExpiresAt, Valid: true}

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.sendMailAsync(VerificationEmail(s.cfg.Mail.AppURL, user.Email, user.Name, verification.Raw))
	return nil
}

// ForgotPassword is anti-enumeration in the same way as ResendVerification.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	reset, err := security.NewResetToken(s.cfg.Tokens.ResetTTL)
	if err != nil {
		return err
	}

	user.PasswordResetToken = sql.NullString{String: security.HashToken(reset.Raw), Valid: true}
	user.PasswordResetExpiresAt = sql.NullTime{Time: reset.ExpiresAt, Valid: true}

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.sendMailAsync(PasswordResetEmail(s.cfg.Mail.AppURL, user.Email, user.Name, reset.Raw))
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.userRepo.FindByResetToken(ctx, security.HashToken(rawToken))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}

	if !user.PasswordResetExpiresAt.Valid || security.IsExpired(user.PasswordResetExpiresAt.Time) {
		return ErrTokenExpired
	}

	if err = s.cfg.Password.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = passwordHash
	user.PasswordResetToken = sql.NullString{Valid: false}
	user.PasswordResetExpiresAt = sql.NullTime{Valid: false}

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	// A password reset invalidates every existing session.
	return s.refreshTokens.DeleteByUserID(ctx, user.ID)
}

func (s *authService) issueTokens(ctx context.Context, user *entity.User) (string, string, error) {
	payload := security.TokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}

	accessToken, err := s.codec.IssueAccess(payload)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := s.persistNewRefreshToken(ctx, payload, func(fresh *entity.RefreshToken) error {
		return s.refreshTokens.Create(ctx, fresh)
	})
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *authService) rotateRefreshToken(ctx context.Context, oldToken string, payload security.TokenPayload) (string, error) {
	newToken, err := s.persistNewRefreshToken(ctx, payload, func(fresh *entity.RefreshToken) error {
		return s.refreshTokens.Rotate(ctx, oldToken, fresh)
	})
	if errors.Is(err, repository.ErrTokenNotFound) {
		return "", ErrInvalidToken
	}
	if errors.Is(err, repository.ErrTokenExpired) {
		return "", ErrTokenExpired
	}
	return newToken, err
}

// persistNewRefreshToken issues a refresh token and persists it through
// store. On the (cryptographically near-impossible) duplicate-token
// conflict it retries once with a freshly issued token.
func (s *authService) persistNewRefreshToken(ctx context.Context, payload security.TokenPayload, store func(*entity.RefreshToken) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.codec.IssueRefresh(payload)
		if err != nil {
			return "", err
		}

		now := time.Now()
		record := &entity.RefreshToken{
			UserID:    payload.UserID,
			Token:     token,
			ExpiresAt: now.Add(s.codec.RefreshTTL()),
			CreatedAt: now,
		}

		err = store(record)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return "", err
		}
		logrus.WithField("user_id", payload.UserID).Warn("refresh token collision, reissuing")
		lastErr = err
	}
	return "", lastErr
}

func (s *authService) sendMailAsync(email Email) {
	s.asyncRunner(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.mailer.Send(sendCtx, email); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"to":      email.To,
				"subject": email.Subject,
			}).Error("failed to send email")
		}
	})
}

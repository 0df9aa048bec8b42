package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	httpdto "github.com/microlearn/auth-service/app/dto/http"
	"github.com/microlearn/auth-service/app/entity"
	"github.com/microlearn/auth-service/app/service"
	"github.com/microlearn/auth-service/app/validation"
)

const (
	// Anti-enumeration responses: identical bodies whether or not the
	// email exists.
	resendVerificationMessage = "if your email exists, you will receive a verification email"
	forgotPasswordMessage     = "if your email exists, you will receive a password reset email"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req httpdto.RegisterRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.authService.Register(ctx.Request().Context(), req.Email, req.Password, req.Name, entity.Role(req.Role))
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Register failed: user already exists")
			return ctx.JSON(http.StatusConflict, httpdto.ErrorResponse{Error: "user with this email already exists"})
		}
		if errors.Is(err, service.ErrWeakPassword) || errors.Is(err, service.ErrInvalidRole) {
			logrus.WithField("email", req.Email).Warn("Register failed: invalid input")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, httpdto.RegisterResponse{
		User:    result.User,
		Message: "registration successful, please check your email to verify your account",
	})
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req httpdto.LoginRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid credentials"})
		}
		if errors.Is(err, service.ErrEmailNotVerified) {
			logrus.WithField("email", req.Email).Warn("Login failed: email not verified")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "please verify your email before logging in"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.LoginResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

func (c *AuthController) Refresh(ctx echo.Context) error {
	var req httpdto.RefreshRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	result, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Refresh failed: invalid or expired token")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid or expired refresh token"})
		}
		logrus.WithError(err).Error("Refresh failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Refresh successful")
	return ctx.JSON(http.StatusOK, httpdto.RefreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

func (c *AuthController) Logout(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Logout failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	if err := c.authService.Logout(ctx.Request().Context(), userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Logout failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Logout successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "logged out successfully"})
}

func (c *AuthController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Me failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	profile, err := c.authService.Me(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Me failed: user not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Me failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, profile)
}

func (c *AuthController) VerifyEmail(ctx echo.Context) error {
	var req httpdto.VerifyEmailRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	err := c.authService.VerifyEmail(ctx.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Verify email failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid verification token"})
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Verify email failed: token expired")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "verification token has expired"})
		}
		logrus.WithError(err).Error("Verify email failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Email verified")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "email verified successfully"})
}

func (c *AuthController) ResendVerification(ctx echo.Context) error {
	var req httpdto.EmailRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	err := c.authService.ResendVerification(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyVerified) {
			logrus.WithField("email", req.Email).Warn("Resend verification failed: already verified")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "email is already verified"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Resend verification failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: resendVerificationMessage})
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	var req httpdto.EmailRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	if err := c.authService.ForgotPassword(ctx.Request().Context(), req.Email); err != nil {
		logrus.WithError(err).WithField("email", req.Email).Error("Forgot password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: forgotPasswordMessage})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req httpdto.ResetPasswordRequest
	if bound := bindAndValidate(ctx, &req); !bound {
		return nil
	}

	err := c.authService.ResetPassword(ctx.Request().Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Reset password failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid reset token"})
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Reset password failed: token expired")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "reset token has expired"})
		}
		if errors.Is(err, service.ErrWeakPassword) {
			logrus.Warn("Reset password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password reset successfully"})
}

// bindAndValidate binds the JSON body into req and validates it. On failure
// it writes the 400 response itself and returns false.
func bindAndValidate(ctx echo.Context, req any) bool {
	if err := ctx.Bind(req); err != nil {
		logrus.WithError(err).Debug("Failed to bind request body")
		_ = ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
		return false
	}

	if err := ctx.Validate(req); err != nil {
		logrus.WithError(err).Debug("Request validation failed")
		_ = ctx.JSON(http.StatusBadRequest, httpdto.ValidationErrorResponse{
			Error:  "validation failed",
			Issues: validation.Issues(err),
		})
		return false
	}

	return true
}

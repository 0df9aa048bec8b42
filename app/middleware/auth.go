package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/microlearn/auth-service/app/entity"
	"github.com/microlearn/auth-service/app/security"
)

type accessTokenVerifier interface {
	VerifyAccess(tokenString string) (*security.Claims, error)
}

type AuthMiddleware struct {
	codec accessTokenVerifier
}

func NewAuthMiddleware(codec accessTokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{codec: codec}
}

// RequireAuth verifies the bearer access token and injects the resolved
// identity into the request context. No store lookup happens here; the
// signature is the sole authority on the access path.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := m.resolve(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid or missing access token",
			})
		}

		setIdentity(c, claims)
		return next(c)
	}
}

// OptionalAuth attempts to resolve an identity but never fails the request;
// routes that behave differently for anonymous callers check whether
// user_id was set.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims, ok := m.resolve(c); ok {
			setIdentity(c, claims)
		}
		return next(c)
	}
}

// RequireRole gates a route to the given roles. It must run after
// RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("user_role").(entity.Role)
			if !ok {
				logrus.Warn("RequireRole used without resolved identity")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "unauthorized",
				})
			}

			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}

			logrus.WithFields(logrus.Fields{
				"user_id": c.Get("user_id"),
				"role":    role,
			}).Warn("Role not permitted")
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "insufficient permissions",
			})
		}
	}
}

func (m *AuthMiddleware) resolve(c echo.Context) (*security.Claims, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		logrus.Debug("Missing authorization header")
		return nil, false
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		logrus.Debug("Invalid authorization header format")
		return nil, false
	}

	claims, err := m.codec.VerifyAccess(parts[1])
	if err != nil {
		logrus.Debug("Invalid or expired access token")
		return nil, false
	}

	return claims, true
}

func setIdentity(c echo.Context, claims *security.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("user_email", claims.Email)
	c.Set("user_role", claims.Role)
}

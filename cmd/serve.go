package cmd

import (
	"database/sql"
	"net"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/microlearn/auth-service/app/controller"
	"github.com/microlearn/auth-service/app/middleware"
	"github.com/microlearn/auth-service/app/queue"
	"github.com/microlearn/auth-service/app/repository"
	"github.com/microlearn/auth-service/app/security"
	"github.com/microlearn/auth-service/app/service"
	"github.com/microlearn/auth-service/app/validation"
	"github.com/microlearn/auth-service/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	refreshStore := newRefreshTokenStore(cfg, db)
	codec := security.NewTokenCodec(cfg.JWT)
	hasher := security.NewPasswordHasher(cfg.Password)
	mailer := newMailer(cfg)

	authService := service.NewAuthService(userRepo, refreshStore, codec, hasher, mailer, cfg)

	startHTTPServer(cfg, authService, codec)
}

// newRefreshTokenStore picks the refresh-token allow-list backend. Both
// implementations satisfy the same interface, so the auth service never
// knows which one it is talking to.
func newRefreshTokenStore(cfg *config.Config, db *sql.DB) service.RefreshTokenStore {
	if cfg.RefreshStore == config.RefreshStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logrus.WithField("addr", cfg.Redis.Addr).Info("Using Redis refresh token store")
		return repository.NewRedisRefreshTokenStore(client)
	}
	return repository.NewRefreshTokenRepository(db)
}

func newMailer(cfg *config.Config) service.Mailer {
	switch cfg.Mail.Transport {
	case config.MailTransportSMTP:
		logrus.WithField("host", cfg.Mail.SMTPHost).Info("Using SMTP mail transport")
		return service.NewSMTPMailer(cfg.Mail)
	case config.MailTransportQueue:
		logrus.WithField("queue", cfg.Mail.Queue).Info("Using queue mail transport")
		return queue.NewPublisher(cfg.Mail.AMQPURL, cfg.Mail.Queue)
	default:
		logrus.Info("Using log mail transport")
		return service.LogMailer{}
	}
}

func startHTTPServer(cfg *config.Config, authService service.AuthService, codec *security.TokenCodec) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true
	e.Validator = validation.NewEchoValidator()

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(authService)
	authMiddleware := middleware.NewAuthMiddleware(codec)

	e.GET("/health", controller.Health)

	auth := e.Group("/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/refresh", authController.Refresh)
	auth.POST("/verify-email", authController.VerifyEmail)
	auth.POST("/resend-verification", authController.ResendVerification)
	auth.POST("/forgot-password", authController.ForgotPassword)
	auth.POST("/reset-password", authController.ResetPassword)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", authController.Logout)
	authProtected.GET("/me", authController.Me)

	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

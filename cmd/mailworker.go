package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/microlearn/auth-service/app/queue"
	"github.com/microlearn/auth-service/app/service"
	"github.com/microlearn/auth-service/config"
)

var mailworkerCmd = &cobra.Command{
	Use:   "mailworker",
	Short: "Consume queued emails and deliver them",
	Run:   runMailworker,
}

func init() {
	rootCmd.AddCommand(mailworkerCmd)
}

func runMailworker(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	// The worker delivers over SMTP unless told otherwise; consuming from
	// the queue just to republish makes no sense, so "queue" falls back to
	// logging.
	var mailer service.Mailer
	if cfg.Mail.Transport == config.MailTransportSMTP {
		mailer = service.NewSMTPMailer(cfg.Mail)
	} else {
		mailer = service.LogMailer{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.Mail.AMQPURL, cfg.Mail.Queue, mailer)
	logrus.WithField("queue", cfg.Mail.Queue).Info("Starting mail worker")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Fatal("Mail worker stopped")
	}
	logrus.Info("Mail worker shut down")
}

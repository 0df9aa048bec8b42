package cmd

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/microlearn/auth-service/app/repository"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Refresh token maintenance",
}

var tokensPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired refresh tokens from the database",
	RunE:  runTokensPrune,
}

func init() {
	tokensCmd.AddCommand(tokensPruneCmd)
	rootCmd.AddCommand(tokensCmd)
}

func runTokensPrune(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		return errors.New("MYSQL_DSN environment variable is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	repo := repository.NewRefreshTokenRepository(db)
	pruned, err := repo.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	logrus.WithField("pruned", pruned).Info("Expired refresh tokens removed")
	return nil
}

// Command resetadmin deletes the admin user and recreates it as a
// superadmin with a known password.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/database"
	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/repository"
)

func main() {
	_ = godotenv.Load()

	username := flag.String("username", "admin", "user to reset")
	password := flag.String("password", envOr("ADMIN_PASSWORD", "admin123"), "new password (or ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := config.NewLogger(cfg.App)

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := repository.NewUserRepo(db).ResetUser(ctx, *username, *password, model.RoleSuperAdmin, cfg.Auth.BcryptCost)
	if err != nil {
		log.Error("reset user", slog.String("username", *username), slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("user reset", slog.String("username", *username), slog.Uint64("user_id", id), slog.String("role", model.RoleSuperAdmin))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

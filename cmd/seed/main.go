package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wonderclimb/internal/config"
	"wonderclimb/internal/database"
	"wonderclimb/internal/domain"
	"wonderclimb/internal/pkg/logger"
	"wonderclimb/internal/pkg/password"
	"wonderclimb/internal/repository"
)

type seedUser struct {
	email     string
	password  string
	firstName string
	lastName  string
	roles     []domain.UserRole
}

var users = []seedUser{
	{"admin@wonderclimb.local", "admin123", "Admin", "WonderClimb", []domain.UserRole{domain.RoleAdmin}},
	{"coach@wonderclimb.local", "coach123", "Alex", "Honnold", []domain.UserRole{domain.RoleCoach}},
	{"climber@wonderclimb.local", "climber123", "Janja", "Garnbret", []domain.UserRole{domain.RoleClimber}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.IsProduction() {
		lg.Fatal("refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db := database.NewHandle(cfg.DatabaseURL, lg)
	defer func() { _ = db.Close() }()

	gdb, err := db.Acquire(ctx)
	if err != nil {
		lg.Fatal("db connection failed", zap.Error(err))
	}
	if err := database.Migrate(gdb); err != nil {
		lg.Fatal("migrate failed", zap.Error(err))
	}

	repo := repository.NewUserRepository(db)
	hasher := password.NewHasher(bcrypt.DefaultCost)
	now := time.Now().UTC()

	for _, su := range users {
		hash, err := hasher.Hash(su.password)
		if err != nil {
			lg.Fatal("hash failed", zap.Error(err))
		}
		u := &domain.User{
			Email:            su.email,
			PasswordHash:     &hash,
			FirstName:        su.firstName,
			LastName:         su.lastName,
			Roles:            su.roles,
			AccountStatus:    domain.AccountActive,
			EmailVerified:    true,
			EmailVerifiedAt:  &now,
			ActivationStatus: domain.ActivationActivated,
		}
		err = repo.Create(ctx, u)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			lg.Info("user exists, skipped", zap.String("email", su.email))
		case err != nil:
			lg.Fatal("create user failed", zap.String("email", su.email), zap.Error(err))
		default:
			lg.Info("user created", zap.String("email", su.email), zap.Int64("id", u.ID))
		}
	}
}

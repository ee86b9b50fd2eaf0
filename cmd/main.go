package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"

	"github.com/S0uris666/Propsail/config"
	"github.com/S0uris666/Propsail/db"
	"github.com/S0uris666/Propsail/internal/auth/domain"
	"github.com/S0uris666/Propsail/internal/auth/handler"
	repo "github.com/S0uris666/Propsail/internal/auth/repository/postgres"
	redisrepo "github.com/S0uris666/Propsail/internal/auth/repository/redis"
	"github.com/S0uris666/Propsail/internal/auth/service"
	"github.com/S0uris666/Propsail/internal/notify"
	"github.com/S0uris666/Propsail/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresRepository(dbPool)

	var challengeStore domain.ChallengeStore = repo.NewPostgresChallengeStore(dbPool)
	if cfg.RedisAddr != "" {
		challengeStore = redisrepo.NewChallengeStore(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}))
	}

	securityService := security.NewService()
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.JWTExpirySeconds)
	userService := service.NewUserService(userRepo, securityService)
	authService := service.NewAuthService(userRepo, challengeStore, notify.NewEmailNotifier(),
		securityService, tokenService, cfg.TwoFactorTTLMinutes)
	authHandler := handler.NewAuthHandler(userService, authService)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	handler.RegisterRoutes(app, authHandler)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

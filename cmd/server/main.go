package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/config"
	"github.com/iliyamo/book-garden-api/internal/database"
	"github.com/iliyamo/book-garden-api/internal/handler"
	"github.com/iliyamo/book-garden-api/internal/mailer"
	"github.com/iliyamo/book-garden-api/internal/push"
	"github.com/iliyamo/book-garden-api/internal/queue"
	"github.com/iliyamo/book-garden-api/internal/repository"
	"github.com/iliyamo/book-garden-api/internal/router"
	"github.com/iliyamo/book-garden-api/internal/scheduler"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokensRepo := repository.NewTokenRepo(db)
	accounts := repository.NewAccountRepo(db)
	gardens := repository.NewGardenRepo(db)
	pushRepo := repository.NewPushRepo(db)

	sched := scheduler.New()
	defer sched.Stop()

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPAccount, cfg.SMTPPassword)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, tokensRepo)
	svc := auth.NewService(users, accounts, tokens, mail, sched, cfg.ResetCodeTTLMin, cfg.BcryptCost, "images")

	pub := queue.NewPublisherFromEnv()

	// Push pipeline: the consumer drains the broker queue, the sweeper
	// feeds it reading reminders on a fixed interval.
	go func() {
		if err := queue.StartPushConsumer(); err != nil {
			log.Printf("push-consumer: %v", err)
		}
	}()
	sweeper := push.NewSweeper(pushRepo, pub)
	sched.Every("push-sweep", time.Duration(cfg.SweepIntervalSec)*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sweeper.Run(ctx); err != nil {
			log.Printf("push-sweep: %v", err)
		}
	})

	authH := &handler.AuthHandler{Svc: svc}
	gardenH := handler.NewGardenHandler(gardens, users, pub)
	pushH := handler.NewPushHandler(pushRepo)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, tokens, authH, gardenH, pushH, config.LoadRateLimitConfig(), rdb)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/routeforge/dispatch/internal/auth"
	"github.com/routeforge/dispatch/internal/billing"
	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/fleet"
	"github.com/routeforge/dispatch/internal/gateway"
	"github.com/routeforge/dispatch/internal/jobs"
	"github.com/routeforge/dispatch/internal/progress"
	"github.com/routeforge/dispatch/internal/workload"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func main() {
	cfg := config.Load("8000")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "gateway",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer msgClient.Close()

	progressFeed := progress.NewFeed(msgClient)
	ctx, cancel := context.WithCancel(context.Background())
	if err := progressFeed.Start(ctx); err != nil {
		log.Fatalf("Failed to start progress feed: %v", err)
	}

	gw := gateway.NewGateway(gateway.Config{
		Port:            cfg.Port,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		RateLimitMax:    100,
		RateLimitWindow: time.Minute,
	}, msgClient, gateway.Services{
		Auth:     auth.NewService(db, cfg.JWTSecret),
		Jobs:     jobs.NewService(db, msgClient),
		Fleet:    fleet.NewManager(db, msgClient, cfg.RedisURL),
		Billing:  billing.NewLedger(db, msgClient),
		Workload: workload.NewCalculator(msgClient),
		Progress: progressFeed,
	})

	go func() {
		log.Printf("gateway starting on port %s", cfg.Port)
		if err := gw.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start gateway: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gateway...")
	cancel()
	progressFeed.Stop()
	log.Println("gateway stopped")
}

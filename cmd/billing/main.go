package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/routeforge/dispatch/internal/billing"
	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func main() {
	cfg := config.Load("8008")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "billing-service",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	ledger := billing.NewLedger(db, natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/billing/:owner/balance", func(c *gin.Context) {
		balance, err := ledger.Balance(c.Request.Context(), c.Param("owner"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no account for owner"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"owner": c.Param("owner"), "balance": balance.String()})
	})

	r.GET("/api/v1/billing/:owner/entries", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := ledger.Entries(c.Request.Context(), c.Param("owner"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}

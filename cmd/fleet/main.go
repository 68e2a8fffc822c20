package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/fleet"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func main() {
	cfg := config.Load("8007")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "fleet-service",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	fleetMgr := fleet.NewManager(db, natsClient, cfg.RedisURL)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/fleet/:job_id", func(c *gin.Context) {
		snapshot, err := fleetMgr.GetSnapshot(c.Request.Context(), c.Param("job_id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for job"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	// assignments publishes per-vehicle changes as jobs are reassigned;
	// the cached snapshot would otherwise go stale between full
	// RecordSolution calls.
	go func() {
		natsClient.Subscribe("assignments.reassigned", func(msg *nats.Msg) {
			var data struct {
				JobID string `json:"job_id"`
			}
			if json.Unmarshal(msg.Data, &data) == nil && data.JobID != "" {
				fleetMgr.InvalidateCache(data.JobID)
			}
		})
	}()

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

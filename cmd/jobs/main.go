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

	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/jobs"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func main() {
	cfg := config.Load("8002")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "jobs-service",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	jobSvc := jobs.NewService(db, natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/api/v1/jobs", func(c *gin.Context) {
		var req struct {
			UserID      string `json:"user_id"`
			Problem     []byte `json:"problem"`
			NumToFind   int    `json:"num_to_find"`
			MaxAttempts int    `json:"max_attempts"`
			MaxIter     int    `json:"max_iter"`
			Seed        int64  `json:"seed"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		job, err := jobSvc.Submit(c.Request.Context(), &jobs.SubmitRequest{
			UserID:      req.UserID,
			ProblemJSON: req.Problem,
			NumToFind:   req.NumToFind,
			MaxAttempts: req.MaxAttempts,
			MaxIter:     req.MaxIter,
			Seed:        req.Seed,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, job)
	})

	r.GET("/api/v1/jobs/:id", func(c *gin.Context) {
		job, err := jobSvc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	})

	r.GET("/api/v1/jobs", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		list, err := jobSvc.List(c.Request.Context(), c.Query("user_id"), c.Query("status"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": list})
	})

	r.DELETE("/api/v1/jobs/:id", func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if err := jobSvc.Cancel(c.Request.Context(), c.Param("id"), userID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
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

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/progress"
	"github.com/routeforge/dispatch/pkg/messaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cfg := config.Load("8005")

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "progress-service",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	feed := progress.NewFeed(natsClient)
	wsHandler := progress.NewWebSocketHandler(feed)

	ctx, cancel := context.WithCancel(context.Background())
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("Failed to start progress feed: %v", err)
	}

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/jobs/:id/progress", func(c *gin.Context) {
		snapshot, ok := feed.BestSoFar(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no progress recorded for job"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	r.GET("/ws", func(c *gin.Context) {
		jobIDs := strings.Split(c.Query("job_ids"), ",")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		wsHandler.ServeWS(c.Request.Context(), conn, jobIDs)
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

	cancel()
	feed.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/workload"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func main() {
	cfg := config.Load("8006")

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "workload-service",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	calc := workload.NewCalculator(natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/workload/:courier_id", func(c *gin.Context) {
		courierID, err := strconv.Atoi(c.Param("courier_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid courier id"})
			return
		}
		exposure, err := calc.Exposure(courierID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no exposure recorded for courier"})
			return
		}
		c.JSON(http.StatusOK, exposure)
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

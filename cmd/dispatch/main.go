package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/routeforge/dispatch/internal/assignments"
	"github.com/routeforge/dispatch/internal/billing"
	"github.com/routeforge/dispatch/internal/config"
	"github.com/routeforge/dispatch/internal/dispatch"
	"github.com/routeforge/dispatch/internal/fleet"
	"github.com/routeforge/dispatch/internal/jobs"
	"github.com/routeforge/dispatch/internal/store"
	"github.com/routeforge/dispatch/internal/telemetry"
	"github.com/routeforge/dispatch/internal/workload"
	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

func main() {
	cfg := config.Load("8001")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NatsURL,
		Name:           "dispatch-engine",
		ReconnectWait:  cfg.ReconnectWait(),
		MaxReconnects:  cfg.MaxReconnects(),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer msgClient.Close()

	var etcdClient *clientv3.Client
	if cfg.EtcdURL != "" {
		etcdClient, err = clientv3.New(clientv3.Config{
			Endpoints:   []string{cfg.EtcdURL},
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			log.Printf("dispatch: etcd unavailable, running as single-replica leader: %v", err)
			etcdClient = nil
		} else {
			defer etcdClient.Close()
		}
	}

	jobSvc := jobs.NewService(db, msgClient)
	workloadCalc := workload.NewCalculator(msgClient)
	fleetMgr := fleet.NewManager(db, msgClient, cfg.RedisURL)
	billingLdg := billing.NewLedger(db, msgClient)
	auditLog := store.NewAuditLog(db)
	assignTrk := assignments.NewTracker(msgClient)

	var telemetryW *telemetry.Writer
	if cfg.InfluxToken != "" {
		telemetryW = telemetry.NewWriter(telemetry.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		defer telemetryW.Close()
	}

	engine := dispatch.NewEngine(jobSvc, msgClient, etcdClient, dispatch.Sinks{
		Workload:    workloadCalc,
		Fleet:       fleetMgr,
		Billing:     billingLdg,
		Audit:       auditLog,
		Telemetry:   telemetryW,
		Assignments: assignTrk,
		Weights:     vrp.DefaultCostWeights(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Fatalf("Failed to start dispatch engine: %v", err)
	}
	log.Println("dispatch engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down dispatch engine...")
	engine.Stop()
	if telemetryW != nil {
		telemetryW.Flush(context.Background())
	}
	log.Println("dispatch engine stopped")
}

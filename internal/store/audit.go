package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/routeforge/dispatch/pkg/vrp"
)

// AuditLog persists a durable record of every solve run to Postgres,
// independent of the in-memory job cache, so a completed run's routes
// and cost survive a dispatch engine restart.
type AuditLog struct {
	db *sql.DB
}

// Record is one archived run.
type Record struct {
	JobID     string          `json:"job_id"`
	Problem   json.RawMessage `json:"problem"`
	BestCost  float64         `json:"best_cost"`
	Routes    [][]int         `json:"routes"`
	Iterations int            `json:"iterations"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Open establishes a lib/pq connection pool from a DSN. The returned
// *sql.DB is lazily connected; callers should Ping before relying on it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return db, nil
}

// Append writes one audit record for a finished job.
func (a *AuditLog) Append(ctx context.Context, jobID string, problem *vrp.Problem, s *vrp.Solution, bestCost float64, iterations int) error {
	problemJSON, err := vrp.Encode(problem)
	if err != nil {
		return fmt.Errorf("failed to encode problem for audit: %w", err)
	}

	routes := make([][]int, 0, problem.NumVehicles())
	for j := 0; j < problem.NumVehicles(); j++ {
		route := s.RouteOf(j, true, true)
		if len(route) > 2 {
			routes = append(routes, route)
		}
	}
	routesJSON, err := json.Marshal(routes)
	if err != nil {
		return fmt.Errorf("failed to encode routes for audit: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO run_audit (job_id, problem, routes, best_cost, iterations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		jobID, problemJSON, routesJSON, bestCost, iterations, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Get retrieves the archived record for a job.
func (a *AuditLog) Get(ctx context.Context, jobID string) (*Record, error) {
	var record Record
	var problemJSON, routesJSON []byte

	err := a.db.QueryRowContext(ctx,
		`SELECT job_id, problem, routes, best_cost, iterations, created_at FROM run_audit WHERE job_id = $1`,
		jobID,
	).Scan(&record.JobID, &problemJSON, &routesJSON, &record.BestCost, &record.Iterations, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit record: %w", err)
	}

	record.Problem = problemJSON
	if err := json.Unmarshal(routesJSON, &record.Routes); err != nil {
		return nil, fmt.Errorf("failed to decode audit routes: %w", err)
	}
	return &record, nil
}

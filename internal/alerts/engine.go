package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/routeforge/dispatch/pkg/messaging"
)

// Engine watches job progress events and raises operator-facing alerts
// when a run is trending badly: a courier over their work limit,
// packages served after their time window opens (positive total
// lateness), or a generator that can't find a single feasible solution.
type Engine struct {
	db          *sql.DB
	nats        *messaging.Client
	alerts      map[string][]*Alert // jobID -> alerts
	alertsMu    sync.RWMutex
	eventChannel chan JobEvent
	stopCh      chan struct{}
}

type Alert struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Condition string    `json:"condition"` // "work_limit_breach", "lateness", "infeasible"
	Detail    string    `json:"detail"`
	Triggered bool      `json:"triggered"`
	CreatedAt time.Time `json:"created_at"`
}

// JobEvent is a progress or failure signal from the dispatch engine.
type JobEvent struct {
	JobID     string
	Condition string
	Value     float64
	Threshold float64
	Detail    string
}

func NewEngine(db *sql.DB, nats *messaging.Client) *Engine {
	return &Engine{
		db:           db,
		nats:         nats,
		alerts:       make(map[string][]*Alert),
		eventChannel: make(chan JobEvent, 32),
		stopCh:       make(chan struct{}),
	}
}

// Start loads any unresolved alerts, subscribes to the conditions the
// rest of the dispatch pipeline publishes, and begins evaluating them.
func (e *Engine) Start(ctx context.Context) error {
	e.loadAlerts(ctx)
	go e.processEvents(ctx)

	if err := e.nats.Subscribe("workload.breach", e.handleWorkloadBreach); err != nil {
		return fmt.Errorf("failed to subscribe to workload breaches: %w", err)
	}
	if err := e.nats.Subscribe("jobs.infeasible", e.handleInfeasible); err != nil {
		return fmt.Errorf("failed to subscribe to infeasible runs: %w", err)
	}
	if err := e.nats.Subscribe("jobs.lateness", e.handleLateness); err != nil {
		return fmt.Errorf("failed to subscribe to lateness reports: %w", err)
	}
	return nil
}

func (e *Engine) handleLateness(msg *nats.Msg) {
	var data struct {
		JobID         string  `json:"job_id"`
		LatenessTotal float64 `json:"lateness_total"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	e.Notify(JobEvent{
		JobID:     data.JobID,
		Condition: "lateness",
		Value:     data.LatenessTotal,
		Detail:    fmt.Sprintf("job %s delivered %.1f minutes late in total", data.JobID, data.LatenessTotal),
	})
}

func (e *Engine) handleWorkloadBreach(msg *nats.Msg) {
	var data struct {
		CourierID        int     `json:"courier_id"`
		CommittedMinutes float64 `json:"committed_minutes"`
		WorkLimit        float64 `json:"work_limit"`
		UtilizationPct   float64 `json:"utilization_pct"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	e.Notify(JobEvent{
		Condition: "work_limit_breach",
		Value:     data.UtilizationPct,
		Threshold: 100,
		Detail:    fmt.Sprintf("courier %d committed %.1f of %.1f work-limit minutes (%.0f%%)", data.CourierID, data.CommittedMinutes, data.WorkLimit, data.UtilizationPct),
	})
}

func (e *Engine) handleInfeasible(msg *nats.Msg) {
	var data struct {
		JobID       string `json:"job_id"`
		NumToFind   int    `json:"num_to_find"`
		MaxAttempts int    `json:"max_attempts"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	e.Notify(JobEvent{
		JobID:     data.JobID,
		Condition: "infeasible",
		Detail:    fmt.Sprintf("no feasible solution found for %d requested solutions after %d attempts", data.NumToFind, data.MaxAttempts),
	})
}

func (e *Engine) loadAlerts(ctx context.Context) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT id, job_id, condition, detail, triggered, created_at FROM alerts WHERE triggered = false",
	)
	if err != nil {
		return
	}
	defer rows.Close()

	e.alertsMu.Lock()
	defer e.alertsMu.Unlock()

	for rows.Next() {
		var alert Alert
		if err := rows.Scan(&alert.ID, &alert.JobID, &alert.Condition, &alert.Detail, &alert.Triggered, &alert.CreatedAt); err != nil {
			continue
		}
		e.alerts[alert.JobID] = append(e.alerts[alert.JobID], &alert)
	}
}

func (e *Engine) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case event := <-e.eventChannel:
			switch event.Condition {
			case "work_limit_breach":
				if event.Value > event.Threshold {
					e.trigger(ctx, event.JobID, event.Condition, event.Detail)
				}
			case "lateness":
				if event.Value > 0 {
					e.trigger(ctx, event.JobID, event.Condition, event.Detail)
				}
			case "infeasible":
				e.trigger(ctx, event.JobID, event.Condition, event.Detail)
			}
		}
	}
}

func (e *Engine) trigger(ctx context.Context, jobID, condition, detail string) {
	alert := &Alert{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Condition: condition,
		Detail:    detail,
		Triggered: true,
		CreatedAt: time.Now(),
	}

	e.db.ExecContext(ctx,
		"INSERT INTO alerts (id, job_id, condition, detail, triggered, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		alert.ID, alert.JobID, alert.Condition, alert.Detail, alert.Triggered, alert.CreatedAt,
	)

	e.alertsMu.Lock()
	e.alerts[jobID] = append(e.alerts[jobID], alert)
	e.alertsMu.Unlock()

	notifJSON, _ := json.Marshal(alert)
	e.nats.Publish(ctx, "alerts.triggered", notifJSON)
}

// Notify queues an event for evaluation; called by this engine's own
// handlers for the workload.breach, jobs.infeasible and jobs.lateness
// subjects.
func (e *Engine) Notify(event JobEvent) {
	select {
	case e.eventChannel <- event:
	default:
		// backlog full: the alert is lost rather than blocking the
		// caller's hot path
	}
}

func (e *Engine) GetAlerts(ctx context.Context, jobID string) ([]*Alert, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT id, job_id, condition, detail, triggered, created_at FROM alerts WHERE job_id = $1",
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(&alert.ID, &alert.JobID, &alert.Condition, &alert.Detail, &alert.Triggered, &alert.CreatedAt); err != nil {
			continue
		}
		alerts = append(alerts, &alert)
	}
	return alerts, nil
}

func (e *Engine) Stop() {
	close(e.stopCh)
}

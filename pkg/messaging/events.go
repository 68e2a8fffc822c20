package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeJobSubmitted  = "jobs.submitted"
	EventTypeJobProgress   = "jobs.progress"
	EventTypeJobCompleted  = "jobs.completed"
	EventTypeJobInfeasible = "jobs.infeasible"
	EventTypeJobLateness   = "jobs.lateness"

	EventTypeRouteAssigned   = "assignments.assigned"
	EventTypeRouteReassigned = "assignments.reassigned"
	EventTypeRouteReleased   = "assignments.released"

	EventTypeFleetUpdated = "fleet.updated"

	EventTypeWorkloadBreach = "workload.breach"

	EventTypeBillingEntry = "billing.entry"

	EventTypeAlertTriggered = "alerts.triggered"
)

// Event is the base event structure
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	Metadata    EventMetadata   `json:"metadata"`
}

// EventMetadata contains event metadata
type EventMetadata struct {
	CorrelationID string `json:"correlation_id"`
	CausationID   string `json:"causation_id"`
	UserID        string `json:"user_id,omitempty"`
	Source        string `json:"source"`
}

// JobEvent contains job lifecycle event data, published as a job moves
// through submission, solving, and completion.
type JobEvent struct {
	JobID       uuid.UUID `json:"job_id"`
	Owner       string    `json:"owner"`
	NumVehicles int       `json:"num_vehicles"`
	NumPackages int       `json:"num_packages"`
	Status      string    `json:"status"`
	BestCost    string    `json:"best_cost,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// RouteAssignedEvent contains the courier/vehicle/route binding produced
// by a completed or improved GA run.
type RouteAssignedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	JobID        string    `json:"job_id"`
	VehicleID    int       `json:"vehicle_id"`
	CourierID    int       `json:"courier_id"`
	Route        []int     `json:"route"`
	Distance     string    `json:"distance"`
	Timestamp    time.Time `json:"timestamp"`
}

// FleetSnapshotEvent contains a refreshed per-job fleet snapshot.
type FleetSnapshotEvent struct {
	JobID     string    `json:"job_id"`
	Vehicles  int       `json:"vehicles"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkloadBreachEvent contains a courier work-limit exposure reading.
type WorkloadBreachEvent struct {
	CourierID        int     `json:"courier_id"`
	CommittedMinutes float64 `json:"committed_minutes"`
	WorkLimit        float64 `json:"work_limit"`
	UtilizationPct   float64 `json:"utilization_pct"`
}

// AlertEvent contains an alert condition raised against a job or courier.
type AlertEvent struct {
	AlertID      uuid.UUID `json:"alert_id"`
	JobID        string    `json:"job_id"`
	Condition    string    `json:"condition"`
	Severity     string    `json:"severity"`
	Detail       string    `json:"detail"`
	CurrentValue string    `json:"current_value"`
	Threshold    string    `json:"threshold"`
}

// LedgerEntryEvent contains a posted wage or fuel-cost ledger entry.
type LedgerEntryEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	Account     string    `json:"account"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Balance     string    `json:"balance"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
}

// NewEvent creates a new event
func NewEvent(eventType string, aggregateID uuid.UUID, data interface{}, metadata EventMetadata) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Timestamp:   time.Now(),
		Version:     1,
		Data:        dataBytes,
		Metadata:    metadata,
	}, nil
}

// ParseEventData parses event data into the specified type
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EventStore interface for event sourcing
type EventStore interface {
	Append(ctx interface{}, aggregateID uuid.UUID, events []Event, expectedVersion int) error
	Load(ctx interface{}, aggregateID uuid.UUID) ([]Event, error)
	LoadFrom(ctx interface{}, aggregateID uuid.UUID, fromVersion int) ([]Event, error)
}

// EventBus interface for publishing events
type EventBus interface {
	Publish(ctx interface{}, event Event) error
	Subscribe(eventType string, handler func(Event) error) error
}

// Snapshot represents an aggregate snapshot
type Snapshot struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Version     int             `json:"version"`
	State       json.RawMessage `json:"state"`
	Timestamp   time.Time       `json:"timestamp"`
}

package assignments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routeforge/dispatch/pkg/messaging"
)

// Tracker keeps an event-sourced history of which courier/vehicle pair
// carries which route, across the lifetime of a solve job. The dispatch
// engine calls Assign once per vehicle when a run completes; a repeated
// Assign for the same job and vehicle is treated as a reassignment of
// the existing record rather than a brand-new one.
type Tracker struct {
	assignments map[string]map[int]*Assignment // jobID -> vehicle -> assignment
	events      []Event
	mu          sync.RWMutex
	eventMu     sync.Mutex
	msgClient   *messaging.Client
	lastSeqNum  int64
}

// Assignment is the live courier/vehicle/route binding for one vehicle
// within a job.
type Assignment struct {
	ID        uuid.UUID
	JobID     string
	VehicleID int
	CourierID int
	Route     []int
	Cost      float64
	OpenedAt  time.Time
	UpdatedAt time.Time
	Version   int
}

// Event is an immutable record of an assignment change.
type Event struct {
	ID          uuid.UUID
	AssignmentID uuid.UUID
	JobID       string
	VehicleID   int
	Type        string // "assigned", "reassigned", "released"
	CourierID   int
	Route       []int
	Timestamp   time.Time
	SequenceNum int64
	Version     int
}

func NewTracker(msgClient *messaging.Client) *Tracker {
	return &Tracker{
		assignments: make(map[string]map[int]*Assignment),
		events:      make([]Event, 0),
		msgClient:   msgClient,
	}
}

// Assign records (or updates) the courier/route carried by a vehicle for
// a job's current best solution.
func (t *Tracker) Assign(ctx context.Context, jobID string, vehicleID, courierID int, route []int, cost float64) (*Assignment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.assignments[jobID] == nil {
		t.assignments[jobID] = make(map[int]*Assignment)
	}

	existing, exists := t.assignments[jobID][vehicleID]
	eventType := "assigned"
	if exists {
		eventType = "reassigned"
		existing.CourierID = courierID
		existing.Route = route
		existing.Cost = cost
		existing.UpdatedAt = time.Now()
		existing.Version++
		t.recordEvent(existing, eventType)
		t.publish(ctx, existing, eventType)
		return existing, nil
	}

	assignment := &Assignment{
		ID:        uuid.New(),
		JobID:     jobID,
		VehicleID: vehicleID,
		CourierID: courierID,
		Route:     route,
		Cost:      cost,
		OpenedAt:  time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}
	t.assignments[jobID][vehicleID] = assignment
	t.recordEvent(assignment, eventType)
	t.publish(ctx, assignment, eventType)
	return assignment, nil
}

// Release drops every assignment for a job once it completes or is
// cancelled, emitting a "released" event per vehicle for the audit log.
func (t *Tracker) Release(ctx context.Context, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, assignment := range t.assignments[jobID] {
		assignment.Version++
		t.recordEvent(assignment, "released")
		t.publish(ctx, assignment, "released")
	}
	delete(t.assignments, jobID)
}

func (t *Tracker) recordEvent(a *Assignment, eventType string) {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	t.lastSeqNum++
	t.events = append(t.events, Event{
		ID:           uuid.New(),
		AssignmentID: a.ID,
		JobID:        a.JobID,
		VehicleID:    a.VehicleID,
		Type:         eventType,
		CourierID:    a.CourierID,
		Route:        a.Route,
		Timestamp:    time.Now(),
		SequenceNum:  t.lastSeqNum,
		Version:      a.Version,
	})
}

func (t *Tracker) publish(ctx context.Context, a *Assignment, eventType string) {
	t.msgClient.Publish(ctx, "assignments."+eventType, map[string]interface{}{
		"job_id":     a.JobID,
		"vehicle_id": a.VehicleID,
		"courier_id": a.CourierID,
		"route":      a.Route,
		"cost":       a.Cost,
	})
}

// Get returns the current assignment for a vehicle within a job.
func (t *Tracker) Get(jobID string, vehicleID int) (*Assignment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.assignments[jobID] == nil {
		return nil, false
	}
	a, ok := t.assignments[jobID][vehicleID]
	return a, ok
}

// All returns every active assignment for a job.
func (t *Tracker) All(jobID string) []*Assignment {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*Assignment, 0, len(t.assignments[jobID]))
	for _, a := range t.assignments[jobID] {
		result = append(result, a)
	}
	return result
}

// EventsFor returns the full event history for a job, in the order they
// were recorded.
func (t *Tracker) EventsFor(jobID string) []Event {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	events := make([]Event, 0)
	for _, e := range t.events {
		if e.JobID == jobID {
			events = append(events, e)
		}
	}
	return events
}

// EventsFromSequence returns events recorded after fromSeq, for clients
// replaying the log incrementally.
func (t *Tracker) EventsFromSequence(fromSeq int64) []Event {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	events := make([]Event, 0)
	for _, e := range t.events {
		if e.SequenceNum > fromSeq {
			events = append(events, e)
		}
	}
	return events
}

// Replay rebuilds assignment state from an event log, used to recover a
// standby dispatch replica's view without rerunning the GA.
func (t *Tracker) Replay(events []Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range events {
		switch e.Type {
		case "assigned", "reassigned":
			if t.assignments[e.JobID] == nil {
				t.assignments[e.JobID] = make(map[int]*Assignment)
			}
			t.assignments[e.JobID][e.VehicleID] = &Assignment{
				ID:        e.AssignmentID,
				JobID:     e.JobID,
				VehicleID: e.VehicleID,
				CourierID: e.CourierID,
				Route:     e.Route,
				UpdatedAt: e.Timestamp,
				Version:   e.Version,
			}
		case "released":
			delete(t.assignments[e.JobID], e.VehicleID)
		default:
			return fmt.Errorf("unknown assignment event type: %s", e.Type)
		}
	}
	return nil
}

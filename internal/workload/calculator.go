package workload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

// Calculator tracks how much of each courier's work-limit budget is
// already committed across concurrently running jobs, so dispatch can
// flag over-commitment before a courier shows up twice in the same
// shift across unrelated solves.
type Calculator struct {
	commitments map[int]map[string]*Commitment // courierID -> jobID -> commitment
	limits      map[int]float64                // courierID -> work limit (minutes)
	mu          sync.RWMutex
	msgClient   *messaging.Client
}

// Commitment is the time a courier is booked for within one job's
// current best solution.
type Commitment struct {
	CourierID int
	JobID     string
	VehicleID int
	Minutes   float64
	UpdatedAt time.Time
}

// Exposure summarizes a courier's total committed time across jobs.
type Exposure struct {
	CourierID       int
	WorkLimit       float64
	CommittedMinutes float64
	UtilizationPct  float64
}

func NewCalculator(msgClient *messaging.Client) *Calculator {
	return &Calculator{
		commitments: make(map[int]map[string]*Commitment),
		limits:      make(map[int]float64),
		msgClient:   msgClient,
	}
}

// SetLimit records a courier's per-shift work-limit budget, read from
// the problem document's Courier.WorkLimit field.
func (c *Calculator) SetLimit(courierID int, workLimit float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits[courierID] = workLimit
}

// Commit books a courier's round-trip time against a job's vehicle, as
// computed by Solution.ArrivalTime at the warehouse.
func (c *Calculator) Commit(ctx context.Context, jobID string, vehicleID, courierID int, minutes float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.commitments[courierID] == nil {
		c.commitments[courierID] = make(map[string]*Commitment)
	}
	c.commitments[courierID][jobID] = &Commitment{
		CourierID: courierID,
		JobID:     jobID,
		VehicleID: vehicleID,
		Minutes:   minutes,
		UpdatedAt: time.Now(),
	}

	exposure := c.exposureLocked(courierID)
	if exposure.UtilizationPct > 100 {
		c.publishBreach(ctx, exposure)
	}
	return nil
}

// Release clears a courier's commitment once a job finishes or is
// cancelled.
func (c *Calculator) Release(courierID int, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.commitments[courierID], jobID)
}

// Exposure reports how much of a courier's work-limit is currently
// committed across all tracked jobs.
func (c *Calculator) Exposure(courierID int) (Exposure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.limits[courierID]; !ok {
		return Exposure{}, fmt.Errorf("no work limit recorded for courier %d", courierID)
	}
	return c.exposureLocked(courierID), nil
}

func (c *Calculator) exposureLocked(courierID int) Exposure {
	var total float64
	for _, commitment := range c.commitments[courierID] {
		total += commitment.Minutes
	}
	limit := c.limits[courierID]
	pct := 100.0
	if limit > 0 {
		pct = total / limit * 100
	}
	return Exposure{
		CourierID:        courierID,
		WorkLimit:        limit,
		CommittedMinutes: total,
		UtilizationPct:   pct,
	}
}

// CheckSolution commits every courier used by a solution's assignment
// vector and returns the couriers (if any) that exceed their work limit,
// mirroring the I-WRK invariant pkg/vrp's checker already enforces for a
// single job in isolation.
func (c *Calculator) CheckSolution(ctx context.Context, jobID string, problem *vrp.Problem, s *vrp.Solution) []Exposure {
	breaches := make([]Exposure, 0)
	z := s.Z()
	warehouse := problem.Warehouse()

	for j, courierID := range z {
		if courierID < 0 {
			continue
		}
		c.SetLimit(courierID, problem.Courier(courierID).WorkLimit)
		minutes := s.ArrivalTime(warehouse, j)
		c.Commit(ctx, jobID, j, courierID, minutes)

		exposure, err := c.Exposure(courierID)
		if err == nil && exposure.UtilizationPct > 100 {
			breaches = append(breaches, exposure)
		}
	}
	return breaches
}

func (c *Calculator) publishBreach(ctx context.Context, exposure Exposure) {
	c.msgClient.Publish(ctx, "workload.breach", map[string]interface{}{
		"alert_id":          uuid.New(),
		"courier_id":        exposure.CourierID,
		"committed_minutes": exposure.CommittedMinutes,
		"work_limit":        exposure.WorkLimit,
		"utilization_pct":   exposure.UtilizationPct,
	})
}

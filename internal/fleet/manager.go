package fleet

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

// Manager serves the current fleet snapshot (vehicle capacity, fuel
// consumption, and which vehicle is currently assigned where) behind an
// in-process cache backed by Redis and a Postgres system of record.
type Manager struct {
	db      *sql.DB
	nats    *messaging.Client
	redis   *redis.Client
	cache   map[string]*Snapshot
	cacheMu sync.RWMutex
}

// Snapshot is the fleet state for one job's best solution so far.
type Snapshot struct {
	JobID      string          `json:"job_id"`
	Vehicles   []VehicleStatus `json:"vehicles"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// VehicleStatus reports one vehicle's utilization within the current
// best solution.
type VehicleStatus struct {
	VehicleID    int     `json:"vehicle_id"`
	CourierID    int     `json:"courier_id"`
	Capacity     float64 `json:"capacity"`
	LoadFraction float64 `json:"load_fraction"`
	StopCount    int     `json:"stop_count"`
	Distance     float64 `json:"distance"`
	InUse        bool    `json:"in_use"`
}

func NewManager(db *sql.DB, nats *messaging.Client, redisAddr string) *Manager {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	return &Manager{
		db:    db,
		nats:  nats,
		redis: rdb,
		cache: make(map[string]*Snapshot),
	}
}

// GetSnapshot returns the fleet state for a job, checking the in-process
// cache, then Redis, then rebuilding from Postgres.
func (m *Manager) GetSnapshot(ctx context.Context, jobID string) (*Snapshot, error) {
	m.cacheMu.RLock()
	if cached, ok := m.cache[jobID]; ok {
		m.cacheMu.RUnlock()
		return cached, nil
	}
	m.cacheMu.RUnlock()

	cacheKey := "fleet:" + jobID
	cached, err := m.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var snapshot Snapshot
		if json.Unmarshal([]byte(cached), &snapshot) == nil {
			return &snapshot, nil
		}
	}

	snapshot, err := m.loadSnapshotFromDB(ctx, jobID)
	if err != nil {
		return nil, err
	}

	m.cacheMu.Lock()
	m.cache[jobID] = snapshot
	m.cacheMu.Unlock()

	snapshotJSON, _ := json.Marshal(snapshot)
	m.redis.Set(ctx, cacheKey, snapshotJSON, 0)

	return snapshot, nil
}

func (m *Manager) loadSnapshotFromDB(ctx context.Context, jobID string) (*Snapshot, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT vehicle_id, courier_id, capacity, load_fraction, stop_count, distance
		 FROM fleet_snapshots WHERE job_id = $1`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []VehicleStatus
	for rows.Next() {
		var v VehicleStatus
		if err := rows.Scan(&v.VehicleID, &v.CourierID, &v.Capacity, &v.LoadFraction, &v.StopCount, &v.Distance); err != nil {
			return nil, err
		}
		v.InUse = v.StopCount > 0
		vehicles = append(vehicles, v)
	}

	return &Snapshot{JobID: jobID, Vehicles: vehicles, UpdatedAt: time.Now()}, nil
}

// RecordSolution derives a fresh fleet snapshot from a solution and
// persists it, invalidating the cache so the next read picks it up.
func (m *Manager) RecordSolution(ctx context.Context, jobID string, problem *vrp.Problem, s *vrp.Solution) (*Snapshot, error) {
	vehicles := make([]VehicleStatus, 0, problem.NumVehicles())
	z := s.Z()

	for j := 0; j < problem.NumVehicles(); j++ {
		route := s.RouteOf(j, false, false)
		vehicle := problem.Vehicle(j)

		var load float64
		for _, address := range route {
			for k := 0; k < problem.NumPackages(); k++ {
				if problem.Package(k).Address == address {
					load += problem.Package(k).Weight
				}
			}
		}
		loadFraction := 0.0
		if vehicle.Capacity > 0 {
			loadFraction = load / vehicle.Capacity
		}

		vehicles = append(vehicles, VehicleStatus{
			VehicleID:    j,
			CourierID:    z[j],
			Capacity:     vehicle.Capacity,
			LoadFraction: loadFraction,
			StopCount:    len(route),
			Distance:     s.Distance(j),
			InUse:        len(route) > 0,
		})
	}

	snapshot := &Snapshot{JobID: jobID, Vehicles: vehicles, UpdatedAt: time.Now()}

	for _, v := range vehicles {
		m.db.ExecContext(ctx,
			`INSERT INTO fleet_snapshots (job_id, vehicle_id, courier_id, capacity, load_fraction, stop_count, distance)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (job_id, vehicle_id) DO UPDATE SET
			   courier_id = EXCLUDED.courier_id, capacity = EXCLUDED.capacity,
			   load_fraction = EXCLUDED.load_fraction, stop_count = EXCLUDED.stop_count, distance = EXCLUDED.distance`,
			jobID, v.VehicleID, v.CourierID, v.Capacity, v.LoadFraction, v.StopCount, v.Distance,
		)
	}

	m.InvalidateCache(jobID)
	m.nats.Publish(ctx, "fleet.updated", snapshot)

	return snapshot, nil
}

func (m *Manager) InvalidateCache(jobID string) {
	m.cacheMu.Lock()
	delete(m.cache, jobID)
	m.cacheMu.Unlock()

	m.redis.Del(context.Background(), "fleet:"+jobID)
}

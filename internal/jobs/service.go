package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidJob      = errors.New("invalid job")
	ErrJobNotCancelable = errors.New("job cannot be cancelled")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Service owns the lifecycle of solve jobs: submission, cancellation and
// status lookups. It persists jobs to Postgres and keeps a hot in-memory
// cache, the way orders were tracked in the order-entry path this is
// descended from.
type Service struct {
	db     *sql.DB
	nats   *messaging.Client
	jobsMu sync.RWMutex
	jobs   map[string]*Job
}

// Job is a request to solve one VRPPDTW-CP instance.
type Job struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProblemJSON []byte    `json:"-"`
	NumToFind   int       `json:"num_to_find"`
	MaxAttempts int       `json:"max_attempts"`
	MaxIter     int       `json:"max_iter"`
	Seed        int64     `json:"seed"`
	Status      string    `json:"status"`
	BestCost    float64   `json:"best_cost,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmitRequest describes a new solve job.
type SubmitRequest struct {
	UserID      string
	ProblemJSON []byte
	NumToFind   int
	MaxAttempts int
	MaxIter     int
	Seed        int64
}

func NewService(db *sql.DB, nats *messaging.Client) *Service {
	return &Service{
		db:   db,
		nats: nats,
		jobs: make(map[string]*Job),
	}
}

// Submit validates a job's problem payload against pkg/vrp's decoder and
// queues it for the dispatch engine.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Job, error) {
	if req.UserID == "" || len(req.ProblemJSON) == 0 || req.NumToFind <= 0 {
		return nil, ErrInvalidJob
	}
	if _, err := vrp.Decode(req.ProblemJSON); err != nil {
		return nil, &vrp.ValidationError{Field: "problem", Reason: err.Error()}
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &Job{
		ID:          jobID,
		UserID:      req.UserID,
		ProblemJSON: req.ProblemJSON,
		NumToFind:   req.NumToFind,
		MaxAttempts: req.MaxAttempts,
		MaxIter:     req.MaxIter,
		Seed:        req.Seed,
		Status:      "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, problem, num_to_find, max_attempts, max_iter, seed, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.UserID, job.ProblemJSON, job.NumToFind, job.MaxAttempts,
		job.MaxIter, job.Seed, job.Status, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.jobsMu.Lock()
	s.jobs[jobID] = job
	s.jobsMu.Unlock()

	s.nats.Publish(ctx, "jobs.submitted", job)

	return job, nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	s.jobsMu.RLock()
	if job, ok := s.jobs[jobID]; ok {
		s.jobsMu.RUnlock()
		return job, nil
	}
	s.jobsMu.RUnlock()

	var job Job
	var problem []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, problem, num_to_find, max_attempts, max_iter, seed, status, best_cost, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&job.ID, &job.UserID, &problem, &job.NumToFind, &job.MaxAttempts,
		&job.MaxIter, &job.Seed, &job.Status, &job.BestCost, &job.CreatedAt, &job.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.ProblemJSON = problem

	s.jobsMu.Lock()
	s.jobs[jobID] = &job
	s.jobsMu.Unlock()

	return &job, nil
}

func (s *Service) List(ctx context.Context, userID, status string, limit int) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, num_to_find, max_attempts, max_iter, seed, status, best_cost, created_at, updated_at
		 FROM jobs WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3`,
		userID, status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		var job Job
		err := rows.Scan(&job.ID, &job.UserID, &job.NumToFind, &job.MaxAttempts,
			&job.MaxIter, &job.Seed, &job.Status, &job.BestCost, &job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, &job)
	}
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, jobID, userID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return ErrUnauthorized
	}
	if job.Status != "queued" && job.Status != "running" {
		return ErrJobNotCancelable
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE jobs SET status = 'cancelled', updated_at = $1 WHERE id = $2",
		time.Now(), jobID,
	)
	if err != nil {
		return err
	}

	s.jobsMu.Lock()
	if cached, ok := s.jobs[jobID]; ok {
		cached.Status = "cancelled"
		cached.UpdatedAt = time.Now()
	}
	s.jobsMu.Unlock()

	cancelEvent, _ := json.Marshal(map[string]string{"job_id": jobID, "user_id": userID})
	s.nats.Publish(ctx, "jobs.cancelled", cancelEvent)
	return nil
}

// UpdateProgress is called by the dispatch engine as the GA advances.
func (s *Service) UpdateProgress(ctx context.Context, jobID, status string, bestCost float64) error {
	s.jobsMu.Lock()
	job, ok := s.jobs[jobID]
	if ok {
		job.Status = status
		job.BestCost = bestCost
		job.UpdatedAt = time.Now()
	}
	s.jobsMu.Unlock()
	if !ok {
		return ErrJobNotFound
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, best_cost = $2, updated_at = $3 WHERE id = $4",
		status, bestCost, time.Now(), jobID,
	)
	return err
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"golang.org/x/sync/errgroup"

	"github.com/routeforge/dispatch/internal/assignments"
	"github.com/routeforge/dispatch/internal/billing"
	"github.com/routeforge/dispatch/internal/fleet"
	"github.com/routeforge/dispatch/internal/jobs"
	"github.com/routeforge/dispatch/internal/store"
	"github.com/routeforge/dispatch/internal/telemetry"
	"github.com/routeforge/dispatch/internal/workload"
	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

// Engine pulls queued solve jobs and runs pkg/vrp's genetic algorithm
// against each one, publishing progress as the population improves. Only
// one Engine replica is ever active at a time; the others stand by on an
// etcd election and take over if the leader's session lapses.
type Engine struct {
	queue chan *jobs.Job

	jobSvc    *jobs.Service
	msgClient *messaging.Client

	etcd     *clientv3.Client
	electKey string
	isLeader bool
	leaderMu sync.RWMutex

	runsMu sync.Mutex
	runs   map[string]*Run

	shutdown chan struct{}
	wg       sync.WaitGroup

	// Downstream sinks a completed run feeds; any may be nil, in which
	// case that side effect is skipped (useful for tests that only care
	// about the GA loop itself).
	workloadCalc *workload.Calculator
	fleetMgr     *fleet.Manager
	billingLdg   *billing.Ledger
	auditLog     *store.AuditLog
	telemetryW   *telemetry.Writer
	assignTrk    *assignments.Tracker
	costWeights  vrp.CostWeights
}

// Sinks bundles the optional downstream consumers a completed run feeds.
type Sinks struct {
	Workload    *workload.Calculator
	Fleet       *fleet.Manager
	Billing     *billing.Ledger
	Audit       *store.AuditLog
	Telemetry   *telemetry.Writer
	Assignments *assignments.Tracker
	Weights     vrp.CostWeights
}

// Run tracks one in-flight GA execution.
type Run struct {
	JobID   string
	Cancel  context.CancelFunc
	Best    *vrp.Solution
	BestCost float64
}

// Result is published once a job finishes, whether it converged or was
// abandoned after exhausting its iteration budget.
type Result struct {
	JobID    string    `json:"job_id"`
	BestCost float64   `json:"best_cost"`
	Routes   [][]int   `json:"routes"`
	Finished time.Time `json:"finished_at"`
}

// NewEngine creates a dispatch engine. etcdClient may be nil, in which
// case the engine always behaves as leader (useful for single-replica
// deployments and tests).
func NewEngine(jobSvc *jobs.Service, msgClient *messaging.Client, etcdClient *clientv3.Client, sinks Sinks) *Engine {
	return &Engine{
		queue:        make(chan *jobs.Job, 64),
		jobSvc:       jobSvc,
		msgClient:    msgClient,
		etcd:         etcdClient,
		electKey:     "/dispatch/leader",
		isLeader:     etcdClient == nil,
		runs:         make(map[string]*Run),
		shutdown:     make(chan struct{}),
		workloadCalc: sinks.Workload,
		fleetMgr:     sinks.Fleet,
		billingLdg:   sinks.Billing,
		auditLog:     sinks.Audit,
		telemetryW:   sinks.Telemetry,
		assignTrk:    sinks.Assignments,
		costWeights:  sinks.Weights,
	}
}

// Start subscribes to newly submitted jobs and, if etcd is configured,
// contests leadership before pulling from the queue.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.msgClient.Subscribe("jobs.submitted", e.handleSubmitted); err != nil {
		return fmt.Errorf("failed to subscribe to jobs: %w", err)
	}

	if e.etcd != nil {
		e.wg.Add(1)
		go e.campaignLoop(ctx)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case job := <-e.queue:
				if e.leading() {
					e.runJob(ctx, job)
				}
			case <-e.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop drains in-flight runs and releases leadership.
func (e *Engine) Stop() {
	close(e.shutdown)
	e.wg.Wait()
}

func (e *Engine) leading() bool {
	e.leaderMu.RLock()
	defer e.leaderMu.RUnlock()
	return e.isLeader
}

// campaignLoop contests the etcd election and re-campaigns whenever the
// session lapses, so exactly one replica is ever draining the queue.
func (e *Engine) campaignLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		session, err := concurrency.NewSession(e.etcd, concurrency.WithTTL(10))
		if err != nil {
			time.Sleep(time.Second)
			continue
		}

		election := concurrency.NewElection(session, e.electKey)
		if err := election.Campaign(ctx, "dispatch-engine"); err != nil {
			session.Close()
			continue
		}

		e.leaderMu.Lock()
		e.isLeader = true
		e.leaderMu.Unlock()

		select {
		case <-session.Done():
		case <-e.shutdown:
			election.Resign(context.Background())
		case <-ctx.Done():
		}

		e.leaderMu.Lock()
		e.isLeader = false
		e.leaderMu.Unlock()
		session.Close()
	}
}

func (e *Engine) handleSubmitted(msg *nats.Msg) {
	// The wire payload is the job's JSON, which leaves out the problem
	// document; only its id is read here, and the engine re-fetches the
	// full job (with its problem document) from jobSvc so retries
	// after a crash don't depend on the in-flight message.
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Data, &envelope); err != nil || envelope.ID == "" {
		return
	}
	job, err := e.jobSvc.Get(context.Background(), envelope.ID)
	if err != nil {
		return
	}
	e.Submit(job)
}

// Submit enqueues a job directly, bypassing the message bus round trip.
func (e *Engine) Submit(job *jobs.Job) {
	select {
	case e.queue <- job:
	default:
		// queue saturated: the job is dropped from the queue and stays
		// "queued" in Postgres; nothing in the engine re-enqueues it.
	}
}

func (e *Engine) runJob(ctx context.Context, job *jobs.Job) {
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{JobID: job.ID, Cancel: cancel}

	e.runsMu.Lock()
	e.runs[job.ID] = run
	e.runsMu.Unlock()
	defer func() {
		e.runsMu.Lock()
		delete(e.runs, job.ID)
		e.runsMu.Unlock()
	}()

	e.jobSvc.UpdateProgress(runCtx, job.ID, "running", 0)

	problem, err := vrp.Decode(job.ProblemJSON)
	if err != nil {
		e.jobSvc.UpdateProgress(runCtx, job.ID, "failed", 0)
		return
	}

	rng := rand.New(rand.NewSource(job.Seed))
	population, _ := vrp.GenerateInitialPopulation(problem, job.NumToFind, job.MaxAttempts, rng)
	if len(population) == 0 {
		e.jobSvc.UpdateProgress(runCtx, job.ID, "infeasible", 0)
		e.msgClient.Publish(ctx, "jobs.infeasible", map[string]interface{}{
			"job_id":       job.ID,
			"num_to_find":  job.NumToFind,
			"max_attempts": job.MaxAttempts,
		})
		return
	}

	ga := vrp.NewGA(problem, job.MaxIter)
	var best *vrp.Solution
	var bestCost float64
	for iteration := range ga.Run(runCtx, population, rng) {
		best = iteration.Best
		bestCost = iteration.BestCost
		run.Best = best
		run.BestCost = bestCost
		e.jobSvc.UpdateProgress(runCtx, job.ID, "running", bestCost)
		e.publishIteration(job.ID, iteration)
		if e.telemetryW != nil {
			e.telemetryW.RecordIteration(job.ID, iteration)
		}
	}

	routes := extractRoutes(ctx, problem, best)

	if lateness := totalLateness(problem, best); lateness > 0 {
		e.msgClient.Publish(ctx, "jobs.lateness", map[string]interface{}{
			"job_id":         job.ID,
			"lateness_total": lateness,
		})
	}

	e.jobSvc.UpdateProgress(runCtx, job.ID, "completed", bestCost)
	e.msgClient.Publish(ctx, "jobs.completed", Result{
		JobID:    job.ID,
		BestCost: bestCost,
		Routes:   routes,
		Finished: time.Now(),
	})

	e.feedSinks(runCtx, job, problem, best, bestCost, len(routes))
}

// recordAssignments tells the assignment tracker which courier/vehicle
// pair carries which route in the winning solution, so the fleet and
// progress views can answer "who is currently on job X" without
// re-deriving it from the raw Z vector.
func (e *Engine) recordAssignments(ctx context.Context, jobID string, problem *vrp.Problem, best *vrp.Solution) {
	z := best.Z()
	for j, courierID := range z {
		if courierID < 0 {
			continue
		}
		route := best.RouteOf(j, true, true)
		if len(route) <= 2 {
			continue
		}
		if _, err := e.assignTrk.Assign(ctx, jobID, j, courierID, route, best.Distance(j)); err != nil {
			log.Printf("dispatch: recording assignment for job %s vehicle %d failed: %v", jobID, j, err)
		}
	}
}

// feedSinks pushes a finished run's solution through whichever downstream
// consumers are configured. Each sink is independent and best-effort: a
// failure in one (e.g. billing can't reach Postgres) never blocks another.
func (e *Engine) feedSinks(ctx context.Context, job *jobs.Job, problem *vrp.Problem, best *vrp.Solution, bestCost float64, routeCount int) {
	if e.workloadCalc != nil {
		e.workloadCalc.CheckSolution(ctx, job.ID, problem, best)
	}
	if e.assignTrk != nil {
		e.recordAssignments(ctx, job.ID, problem, best)
	}
	if e.fleetMgr != nil {
		if _, err := e.fleetMgr.RecordSolution(ctx, job.ID, problem, best); err != nil {
			log.Printf("dispatch: fleet snapshot for job %s failed: %v", job.ID, err)
		}
	}
	if e.billingLdg != nil {
		if err := e.billingLdg.PostJobCosts(ctx, job.ID, problem, best, e.costWeights); err != nil {
			log.Printf("dispatch: billing post for job %s failed: %v", job.ID, err)
		}
	}
	if e.auditLog != nil {
		if err := e.auditLog.Append(ctx, job.ID, problem, best, bestCost, job.MaxIter); err != nil {
			log.Printf("dispatch: audit append for job %s failed: %v", job.ID, err)
		}
	}
	if e.telemetryW != nil {
		e.telemetryW.RecordCompletion(job.ID, bestCost, routeCount)
	}
}

// extractRoutes reads back each vehicle's route from the winning
// solution concurrently; RouteOf only reads Solution state, so the
// fan-out is safe and keeps route extraction off the GA's critical path
// for large fleets.
func extractRoutes(ctx context.Context, problem *vrp.Problem, best *vrp.Solution) [][]int {
	slots := make([][]int, problem.NumVehicles())

	g, _ := errgroup.WithContext(ctx)
	for j := 0; j < problem.NumVehicles(); j++ {
		j := j
		g.Go(func() error {
			slots[j] = best.RouteOf(j, true, true)
			return nil
		})
	}
	g.Wait()

	routes := make([][]int, 0, len(slots))
	for _, route := range slots {
		if len(route) > 2 {
			routes = append(routes, route)
		}
	}
	return routes
}

// totalLateness sums how far each package's actual service time trails
// its requested start time, the same quantity pkg/vrp's cost function
// weights into the objective, reported here so alerts can flag a job
// that converged but still delivered late.
func totalLateness(problem *vrp.Problem, s *vrp.Solution) float64 {
	var total float64
	for k := 0; k < problem.NumPackages(); k++ {
		diff := s.ServiceTime(k) - problem.Package(k).StartTime
		if diff > 0 {
			total += diff
		}
	}
	return total
}

func (e *Engine) publishIteration(jobID string, iteration vrp.Iteration) {
	e.msgClient.Publish(context.Background(), "jobs.progress", map[string]interface{}{
		"job_id":     jobID,
		"index":      iteration.Index,
		"best_cost":  iteration.BestCost,
	})
}

// CancelRun cancels an in-flight GA run for a job, if one is active on
// this replica.
func (e *Engine) CancelRun(jobID string) bool {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	run, ok := e.runs[jobID]
	if !ok {
		return false
	}
	run.Cancel()
	return true
}

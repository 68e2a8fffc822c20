package gateway

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/routeforge/dispatch/internal/auth"
	"github.com/routeforge/dispatch/internal/billing"
	"github.com/routeforge/dispatch/internal/fleet"
	"github.com/routeforge/dispatch/internal/jobs"
	"github.com/routeforge/dispatch/internal/progress"
	"github.com/routeforge/dispatch/internal/workload"
	"github.com/routeforge/dispatch/pkg/circuit"
	"github.com/routeforge/dispatch/pkg/messaging"
)

// Gateway is the public HTTP/WebSocket front door onto the dispatch
// engine: it accepts job submissions, exposes job/fleet/billing reads,
// and upgrades progress-streaming connections.
type Gateway struct {
	router      *gin.Engine
	msgClient   *messaging.Client
	breakers    *circuit.BreakerGroup
	rateLimiter *RateLimiter

	authSvc     *auth.Service
	jobSvc      *jobs.Service
	fleetMgr    *fleet.Manager
	billingLdg  *billing.Ledger
	workloadCalc *workload.Calculator
	progressFeed *progress.Feed
	wsHandler   *progress.WebSocketHandler
}

// RateLimiter implements a sliding-window rate limit per client IP.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// Config holds gateway HTTP configuration.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Services bundles the domain services the gateway fronts.
type Services struct {
	Auth     *auth.Service
	Jobs     *jobs.Service
	Fleet    *fleet.Manager
	Billing  *billing.Ledger
	Workload *workload.Calculator
	Progress *progress.Feed
}

func NewGateway(cfg Config, msgClient *messaging.Client, svcs Services) *Gateway {
	breakers := circuit.NewBreakerGroup(circuit.Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	})

	g := &Gateway{
		router:       gin.Default(),
		msgClient:    msgClient,
		breakers:     breakers,
		authSvc:      svcs.Auth,
		jobSvc:       svcs.Jobs,
		fleetMgr:     svcs.Fleet,
		billingLdg:   svcs.Billing,
		workloadCalc: svcs.Workload,
		progressFeed: svcs.Progress,
		wsHandler:    progress.NewWebSocketHandler(svcs.Progress),
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
	}

	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/jobs", g.authMiddleware(), g.submitJob)
		v1.GET("/jobs/:id", g.authMiddleware(), g.getJob)
		v1.DELETE("/jobs/:id", g.authMiddleware(), g.cancelJob)
		v1.GET("/jobs", g.authMiddleware(), g.listJobs)
		v1.GET("/jobs/:id/ws", g.authMiddleware(), g.streamProgress)

		v1.GET("/fleet/:jobID", g.authMiddleware(), g.getFleetSnapshot)
		v1.GET("/workload/:courierID", g.authMiddleware(), g.getWorkloadExposure)

		v1.GET("/billing/:owner/balance", g.authMiddleware(), g.getBillingBalance)
		v1.GET("/billing/:owner/entries", g.authMiddleware(), g.getBillingEntries)
	}
}

func (g *Gateway) Start(addr string) error {
	return g.router.Run(addr)
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := g.authSvc.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !g.rateLimiter.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// Handlers

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (g *Gateway) submitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := c.MustGet("user_id").(string)

	var job *jobs.Job
	err := g.breakers.Execute(c.Request.Context(), "jobs", func() error {
		var submitErr error
		job, submitErr = g.jobSvc.Submit(c.Request.Context(), &jobs.SubmitRequest{
			UserID:      userID,
			ProblemJSON: req.Problem,
			NumToFind:   req.NumToFind,
			MaxAttempts: req.MaxAttempts,
			MaxIter:     req.MaxIter,
			Seed:        req.Seed,
		})
		return submitErr
	})

	if err != nil {
		if err == circuit.ErrCircuitOpen {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch temporarily unavailable"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (g *Gateway) getJob(c *gin.Context) {
	job, err := g.jobSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (g *Gateway) cancelJob(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	err := g.breakers.Execute(c.Request.Context(), "jobs", func() error {
		return g.jobSvc.Cancel(c.Request.Context(), c.Param("id"), userID)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "cancel requested"})
}

func (g *Gateway) listJobs(c *gin.Context) {
	userID := c.MustGet("user_id").(string)
	status := c.Query("status")

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	list, err := g.jobSvc.List(c.Request.Context(), userID, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (g *Gateway) getFleetSnapshot(c *gin.Context) {
	snapshot, err := g.fleetMgr.GetSnapshot(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for job"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (g *Gateway) getWorkloadExposure(c *gin.Context) {
	courierID, err := strconv.Atoi(c.Param("courierID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid courier id"})
		return
	}

	exposure, err := g.workloadCalc.Exposure(courierID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no exposure recorded for courier"})
		return
	}
	c.JSON(http.StatusOK, exposure)
}

func (g *Gateway) getBillingBalance(c *gin.Context) {
	balance, err := g.billingLdg.Balance(c.Request.Context(), c.Param("owner"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no account for owner"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": c.Param("owner"), "balance": balance.String()})
}

func (g *Gateway) getBillingEntries(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := g.billingLdg.Entries(c.Request.Context(), c.Param("owner"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) streamProgress(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	g.wsHandler.ServeWS(c.Request.Context(), conn, []string{c.Param("id")})
}

// Allow reports whether a request from key is within the sliding window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	requests := rl.requests[key]
	valid := make([]time.Time, 0)
	for _, t := range requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Request/Response types

type SubmitJobRequest struct {
	Problem     []byte `json:"problem" binding:"required"`
	NumToFind   int    `json:"num_to_find"`
	MaxAttempts int    `json:"max_attempts"`
	MaxIter     int    `json:"max_iter"`
	Seed        int64  `json:"seed"`
}

package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/routeforge/dispatch/pkg/messaging"
)

// Feed distributes GA progress updates to whoever is watching a job, the
// way market quotes were fanned out to subscribers in the engine this is
// descended from.
type Feed struct {
	subscribers map[string]map[uuid.UUID]*Subscriber // jobID -> subID -> subscriber
	best        map[string]*Snapshot
	updates     chan Update
	mu          sync.RWMutex
	msgClient   *messaging.Client
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// Subscriber is one client watching a set of jobs.
type Subscriber struct {
	ID      uuid.UUID
	JobIDs  []string
	Conn    *websocket.Conn
	Updates chan Update
	Done    chan struct{}
}

// Snapshot is the best-so-far state of one job.
type Snapshot struct {
	JobID     string  `json:"job_id"`
	Iteration int     `json:"iteration"`
	BestCost  float64 `json:"best_cost"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is one message pushed to subscribers.
type Update struct {
	Type      string `json:"type"` // "progress", "completed"
	JobID     string `json:"job_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewFeed(msgClient *messaging.Client) *Feed {
	return &Feed{
		subscribers: make(map[string]map[uuid.UUID]*Subscriber),
		best:        make(map[string]*Snapshot),
		updates:     make(chan Update),
		msgClient:   msgClient,
		shutdown:    make(chan struct{}),
	}
}

// Start subscribes to the dispatch engine's progress/completion events
// and fans each one out to the matching job's subscribers.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.msgClient.Subscribe("jobs.progress", f.handleProgress); err != nil {
		return fmt.Errorf("failed to subscribe to job progress: %w", err)
	}
	if err := f.msgClient.Subscribe("jobs.completed", f.handleCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to job completion: %w", err)
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case update := <-f.updates:
				f.broadcast(update)
			case <-f.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (f *Feed) Stop() {
	close(f.shutdown)
	f.wg.Wait()
}

// Subscribe registers a client interested in one or more jobs.
func (f *Feed) Subscribe(jobIDs []string) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New(),
		JobIDs:  jobIDs,
		Updates: make(chan Update),
		Done:    make(chan struct{}),
	}

	f.mu.Lock()
	for _, jobID := range jobIDs {
		if f.subscribers[jobID] == nil {
			f.subscribers[jobID] = make(map[uuid.UUID]*Subscriber)
		}
		f.subscribers[jobID][sub.ID] = sub
	}
	f.mu.Unlock()

	return sub
}

func (f *Feed) Unsubscribe(subID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for jobID, subs := range f.subscribers {
		if sub, exists := subs[subID]; exists {
			close(sub.Done)
			close(sub.Updates)
			delete(subs, subID)
		}
		if len(subs) == 0 {
			delete(f.subscribers, jobID)
		}
	}
}

// BestSoFar returns the most recent progress snapshot for a job.
func (f *Feed) BestSoFar(jobID string) (*Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snapshot, ok := f.best[jobID]
	return snapshot, ok
}

func (f *Feed) broadcast(update Update) {
	f.mu.RLock()
	subs := f.subscribers[update.JobID]
	f.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Updates <- update:
		case <-sub.Done:
		default:
			// slow consumer: drop rather than block the GA loop
		}
	}
}

func (f *Feed) handleProgress(msg *nats.Msg) {
	var data map[string]interface{}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	jobID, _ := data["job_id"].(string)
	if jobID == "" {
		return
	}

	snapshot := &Snapshot{JobID: jobID, Timestamp: time.Now()}
	if v, ok := data["best_cost"].(float64); ok {
		snapshot.BestCost = v
	}
	if v, ok := data["index"].(float64); ok {
		snapshot.Iteration = int(v)
	}

	f.mu.Lock()
	f.best[jobID] = snapshot
	f.mu.Unlock()

	select {
	case f.updates <- Update{Type: "progress", JobID: jobID, Data: snapshot, Timestamp: time.Now()}:
	default:
	}
}

func (f *Feed) handleCompleted(msg *nats.Msg) {
	var data map[string]interface{}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	jobID, _ := data["job_id"].(string)
	if jobID == "" {
		return
	}

	select {
	case f.updates <- Update{Type: "completed", JobID: jobID, Data: data, Timestamp: time.Now()}:
	default:
	}
}

// WebSocketHandler pushes a Feed's updates to a browser-connected
// client.
type WebSocketHandler struct {
	feed     *Feed
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(feed *Feed) *WebSocketHandler {
	return &WebSocketHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) ServeWS(ctx context.Context, conn *websocket.Conn, jobIDs []string) {
	sub := h.feed.Subscribe(jobIDs)
	sub.Conn = conn

	defer func() {
		h.feed.Unsubscribe(sub.ID)
		conn.Close()
	}()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(sub.Done)
				return
			}
		}
	}()

	for {
		select {
		case update := <-sub.Updates:
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-sub.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

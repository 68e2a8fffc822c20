package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/routeforge/dispatch/pkg/vrp"
)

// Writer records one InfluxDB point per GA iteration and one per
// completed job, so operators can chart convergence speed and solve
// cost across runs without replaying the dispatch event log.
type Writer struct {
	client influxdb2.Client
	write  api.WriteAPI
	org    string
	bucket string
}

// Config holds connection settings for the metrics bucket.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func NewWriter(cfg Config) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		client: client,
		write:  client.WriteAPI(cfg.Org, cfg.Bucket),
		org:    cfg.Org,
		bucket: cfg.Bucket,
	}
}

// RecordIteration writes the iteration index and best cost for a job,
// tagged so a dashboard can group by job and filter by time range.
func (w *Writer) RecordIteration(jobID string, iteration vrp.Iteration) {
	point := influxdb2.NewPoint(
		"ga_iteration",
		map[string]string{"job_id": jobID},
		map[string]interface{}{
			"index":     iteration.Index,
			"best_cost": iteration.BestCost,
		},
		time.Now(),
	)
	w.write.WritePoint(point)
}

// RecordCompletion writes the final cost and route count for a job.
func (w *Writer) RecordCompletion(jobID string, bestCost float64, routeCount int) {
	point := influxdb2.NewPoint(
		"job_completed",
		map[string]string{"job_id": jobID},
		map[string]interface{}{
			"best_cost":   bestCost,
			"route_count": routeCount,
		},
		time.Now(),
	)
	w.write.WritePoint(point)
}

// Flush blocks until buffered points are sent, and should be called
// before shutdown.
func (w *Writer) Flush(ctx context.Context) {
	w.write.Flush()
}

// Close releases the underlying HTTP client.
func (w *Writer) Close() {
	w.client.Close()
}

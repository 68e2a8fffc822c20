package unit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routeforge/dispatch/internal/assignments"
	"github.com/routeforge/dispatch/pkg/messaging"
)

func TestAssignmentTrackerCreation(t *testing.T) {
	t.Run("should create tracker", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})
		assert.NotNil(t, tracker)
	})
}

func TestAssignmentTracking(t *testing.T) {
	t.Run("should record a new assignment", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		a, err := tracker.Assign(context.Background(), "job-1", 0, 7, []int{0, 3, 5, 0}, 42.0)
		assert.NoError(t, err)
		assert.Equal(t, 7, a.CourierID)
		assert.Equal(t, 1, a.Version)

		got, exists := tracker.Get("job-1", 0)
		assert.True(t, exists)
		assert.Equal(t, 7, got.CourierID)
	})

	t.Run("should reassign an existing vehicle's assignment", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		tracker.Assign(context.Background(), "job-1", 0, 7, []int{0, 3, 0}, 10.0)
		a, err := tracker.Assign(context.Background(), "job-1", 0, 9, []int{0, 3, 5, 0}, 20.0)
		assert.NoError(t, err)

		assert.Equal(t, 9, a.CourierID)
		assert.Equal(t, 2, a.Version, "reassigning the same vehicle should bump its version, not create a new record")

		got, exists := tracker.Get("job-1", 0)
		assert.True(t, exists)
		assert.Equal(t, 9, got.CourierID)
	})
}

func TestAssignmentRelease(t *testing.T) {
	t.Run("should drop every assignment for a job", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		tracker.Assign(context.Background(), "job-1", 0, 1, []int{0, 1, 0}, 5.0)
		tracker.Assign(context.Background(), "job-1", 1, 2, []int{0, 2, 0}, 8.0)

		tracker.Release(context.Background(), "job-1")

		_, exists := tracker.Get("job-1", 0)
		assert.False(t, exists)
		assert.Len(t, tracker.All("job-1"), 0)
	})
}

func TestAssignmentEventOrdering(t *testing.T) {
	t.Run("should record events in the order they happened", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		tracker.Assign(context.Background(), "job-1", 0, 1, []int{0, 1, 0}, 5.0)
		tracker.Assign(context.Background(), "job-1", 0, 2, []int{0, 1, 0}, 6.0)
		tracker.Release(context.Background(), "job-1")

		events := tracker.EventsFor("job-1")
		assert.Len(t, events, 3)
		assert.Equal(t, "assigned", events[0].Type)
		assert.Equal(t, "reassigned", events[1].Type)
		assert.Equal(t, "released", events[2].Type)

		for i := 1; i < len(events); i++ {
			assert.Greater(t, events[i].SequenceNum, events[i-1].SequenceNum,
				"sequence numbers must be strictly increasing")
		}
	})

	t.Run("should only return events after the given sequence", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		tracker.Assign(context.Background(), "job-1", 0, 1, []int{0, 1, 0}, 5.0)
		tracker.Assign(context.Background(), "job-1", 1, 2, []int{0, 2, 0}, 6.0)

		all := tracker.EventsFor("job-1")
		assert.Len(t, all, 2)

		fromFirst := tracker.EventsFromSequence(all[0].SequenceNum)
		assert.Len(t, fromFirst, 1)
		assert.Equal(t, all[1].ID, fromFirst[0].ID)
	})
}

func TestAssignmentReplay(t *testing.T) {
	t.Run("should rebuild state from a recorded event log", func(t *testing.T) {
		source := assignments.NewTracker(&messaging.Client{})
		source.Assign(context.Background(), "job-1", 0, 1, []int{0, 4, 0}, 15.0)
		source.Assign(context.Background(), "job-1", 1, 2, []int{0, 6, 0}, 22.0)
		events := source.EventsFor("job-1")

		replica := assignments.NewTracker(&messaging.Client{})
		err := replica.Replay(events)
		assert.NoError(t, err)

		got, exists := replica.Get("job-1", 0)
		assert.True(t, exists)
		assert.Equal(t, 1, got.CourierID)

		got, exists = replica.Get("job-1", 1)
		assert.True(t, exists)
		assert.Equal(t, 2, got.CourierID)
	})

	t.Run("should reject an unknown event type", func(t *testing.T) {
		replica := assignments.NewTracker(&messaging.Client{})
		err := replica.Replay([]assignments.Event{{JobID: "job-1", VehicleID: 0, Type: "bogus"}})
		assert.Error(t, err)
	})

	t.Run("should remove the assignment on a released event", func(t *testing.T) {
		source := assignments.NewTracker(&messaging.Client{})
		source.Assign(context.Background(), "job-1", 0, 1, []int{0, 4, 0}, 15.0)
		source.Release(context.Background(), "job-1")
		events := source.EventsFor("job-1")

		replica := assignments.NewTracker(&messaging.Client{})
		replica.Replay(events)

		_, exists := replica.Get("job-1", 0)
		assert.False(t, exists)
	})
}

func TestAllAssignments(t *testing.T) {
	t.Run("should return every active assignment for a job", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		tracker.Assign(context.Background(), "job-1", 0, 1, []int{0, 1, 0}, 5.0)
		tracker.Assign(context.Background(), "job-1", 1, 2, []int{0, 2, 0}, 6.0)
		tracker.Assign(context.Background(), "job-1", 2, 3, []int{0, 3, 0}, 7.0)

		assert.Len(t, tracker.All("job-1"), 3)
	})

	t.Run("should return empty for an unknown job", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})
		assert.Len(t, tracker.All("unknown"), 0)
	})
}

func TestConcurrentAssignmentUpdates(t *testing.T) {
	t.Run("should handle concurrent assignments across vehicles safely", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(vehicleID int) {
				defer wg.Done()
				tracker.Assign(context.Background(), "job-concurrent", vehicleID, vehicleID+100, []int{0, vehicleID, 0}, float64(vehicleID))
			}(i)
		}
		wg.Wait()

		assert.Len(t, tracker.All("job-concurrent"), 50)
	})

	t.Run("should handle concurrent reassignment of the same vehicle safely", func(t *testing.T) {
		tracker := assignments.NewTracker(&messaging.Client{})
		tracker.Assign(context.Background(), "job-1", 0, 1, []int{0, 1, 0}, 1.0)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				tracker.Assign(context.Background(), "job-1", 0, idx, []int{0, idx, 0}, float64(idx))
			}(i)
		}
		wg.Wait()

		got, exists := tracker.Get("job-1", 0)
		assert.True(t, exists)
		assert.GreaterOrEqual(t, got.Version, 2)
	})
}

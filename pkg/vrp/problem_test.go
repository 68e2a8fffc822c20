package vrp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	t.Run("symmetrizes a single directed edge", func(t *testing.T) {
		g, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 5, Time: 10}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 5.0, g.Distance(0, 1))
		assert.Equal(t, 5.0, g.Distance(1, 0))
		assert.Equal(t, 10.0, g.Time(0, 1))
		assert.Equal(t, 10.0, g.Time(1, 0))
	})

	t.Run("self-loops are zero regardless of input", func(t *testing.T) {
		g, err := NewGraph(3, 0, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, g.Distance(1, 1))
		assert.Equal(t, 0.0, g.Time(2, 2))
	})

	t.Run("rejects an out-of-range warehouse", func(t *testing.T) {
		_, err := NewGraph(2, 5, nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects conflicting duplicate edges", func(t *testing.T) {
		_, err := NewGraph(2, 0, []Edge{
			{From: 0, To: 1, Distance: 1, Time: 1},
			{From: 0, To: 1, Distance: 2, Time: 1},
		}, nil)
		assert.Error(t, err)
	})
}

func TestNewProblem(t *testing.T) {
	t.Run("builds a valid problem", func(t *testing.T) {
		p := s1Problem(t)
		assert.Equal(t, 1, p.NumCouriers())
		assert.Equal(t, 1, p.NumVehicles())
		assert.Equal(t, 1, p.NumPackages())
		assert.True(t, p.HasPermission(0, 0))
	})

	t.Run("rejects a package addressed at the warehouse", func(t *testing.T) {
		graph, err := NewGraph(2, 0, nil, nil)
		require.NoError(t, err)
		_, err = NewProblem(
			[]Courier{{HourlyRate: 1, WorkLimit: 1}},
			[]Vehicle{{Capacity: 1, FuelConsumption: 1}},
			[]Package{{Address: 0, Weight: 1, StartTime: 0, EndTime: 1, Kind: PackageDelivery}},
			nil,
			graph,
		)
		assert.Error(t, err)
	})

	t.Run("rejects an inverted time window", func(t *testing.T) {
		graph, err := NewGraph(2, 0, nil, nil)
		require.NoError(t, err)
		_, err = NewProblem(
			[]Courier{{HourlyRate: 1, WorkLimit: 1}},
			[]Vehicle{{Capacity: 1, FuelConsumption: 1}},
			[]Package{{Address: 1, Weight: 1, StartTime: 10, EndTime: 5, Kind: PackageDelivery}},
			nil,
			graph,
		)
		assert.Error(t, err)
	})

	t.Run("rejects a permission naming an out-of-range vehicle", func(t *testing.T) {
		graph, err := NewGraph(2, 0, nil, nil)
		require.NoError(t, err)
		_, err = NewProblem(
			[]Courier{{HourlyRate: 1, WorkLimit: 1}},
			[]Vehicle{{Capacity: 1, FuelConsumption: 1}},
			nil,
			[]Permission{{Courier: 0, Vehicle: 9}},
			graph,
		)
		assert.Error(t, err)
	})
}

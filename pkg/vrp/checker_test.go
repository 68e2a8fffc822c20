package vrp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerAcceptsTheS1Solution(t *testing.T) {
	problem := s1Problem(t)
	checker := NewChecker(problem)

	ok, reason := checker.CheckVerbose(s1Solution(problem))
	assert.True(t, ok, "expected feasible, failed at %q", reason)
}

func TestCheckerRejectsEachPredicateViolation(t *testing.T) {
	problem := s1Problem(t)
	checker := NewChecker(problem)

	t.Run("P1 courier uniqueness", func(t *testing.T) {
		sol := s1Solution(problem)
		// duplicate z by adding a second vehicle sharing courier 0.
		graph := problem.Graph()
		p2, err := NewProblem(
			problemCouriers(problem),
			append(problemVehicles(problem), Vehicle{Capacity: 10, FuelConsumption: 1}),
			problemPackages(problem),
			[]Permission{{Courier: 0, Vehicle: 0}, {Courier: 0, Vehicle: 1}},
			graph,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		n1 := p2.N1()
		row0 := sol.X()[0]
		row1 := make([]int, n1)
		for i := range row1 {
			row1[i] = p2.Warehouse()
		}
		dup := NewSolution(p2, [][]int{row0, row1}, []int{0}, []int{0, 0})
		c2 := NewChecker(p2)
		ok, reason := c2.CheckVerbose(dup)
		assert.False(t, ok)
		assert.Equal(t, "P1 courier-uniqueness", reason)
	})

	t.Run("P3 permission", func(t *testing.T) {
		sol := s1Solution(problem)
		noPermProblem, err := NewProblem(
			problemCouriers(problem), problemVehicles(problem), problemPackages(problem), nil, problem.Graph(),
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		unauthorized := NewSolution(noPermProblem, sol.X(), sol.Y(), sol.Z())
		ok, reason := NewChecker(noPermProblem).CheckVerbose(unauthorized)
		assert.False(t, ok)
		assert.Equal(t, "P3 permission", reason)
	})

	t.Run("P5 time windows", func(t *testing.T) {
		late, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 60}}, nil)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		lateProblem, err := NewProblem(
			[]Courier{{HourlyRate: 30, WorkLimit: 480}},
			[]Vehicle{{Capacity: 50, FuelConsumption: 2}},
			[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 5, Kind: PackageDelivery}},
			[]Permission{{Courier: 0, Vehicle: 0}},
			late,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		sol := s1Solution(lateProblem)
		ok, reason := NewChecker(lateProblem).CheckVerbose(sol)
		assert.False(t, ok)
		assert.Equal(t, "P5 time-windows", reason)
	})

	t.Run("P7 capacity overflow", func(t *testing.T) {
		overloaded, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 60}}, nil)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		overProblem, err := NewProblem(
			[]Courier{{HourlyRate: 30, WorkLimit: 480}},
			[]Vehicle{{Capacity: 5, FuelConsumption: 2}},
			[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 1000, Kind: PackageDelivery}},
			[]Permission{{Courier: 0, Vehicle: 0}},
			overloaded,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		sol := s1Solution(overProblem)
		ok, reason := NewChecker(overProblem).CheckVerbose(sol)
		assert.False(t, ok)
		assert.Equal(t, "P7 capacity", reason)
	})
}

func problemCouriers(p *Problem) []Courier {
	out := make([]Courier, p.NumCouriers())
	for i := range out {
		out[i] = p.Courier(i)
	}
	return out
}

func problemVehicles(p *Problem) []Vehicle {
	out := make([]Vehicle, p.NumVehicles())
	for j := range out {
		out[j] = p.Vehicle(j)
	}
	return out
}

func problemPackages(p *Problem) []Package {
	out := make([]Package, p.NumPackages())
	for k := range out {
		out[k] = p.Package(k)
	}
	return out
}

package vrp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateInitialPopulationS1(t *testing.T) {
	t.Run("finds the unique feasible solution within 10 attempts", func(t *testing.T) {
		problem := s1Problem(t)
		rng := rand.New(rand.NewSource(1))

		population, err := GenerateInitialPopulation(problem, 1, 10, rng)
		assert.NoError(t, err)
		assert.Len(t, population, 1)

		checker := NewChecker(problem)
		assert.True(t, checker.Check(population[0]))
	})
}

func TestGenerateInitialPopulationS2PermissionDenial(t *testing.T) {
	t.Run("returns an empty set when no permission exists", func(t *testing.T) {
		graph, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 60}}, nil)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		problem, err := NewProblem(
			[]Courier{{HourlyRate: 30, WorkLimit: 480}},
			[]Vehicle{{Capacity: 50, FuelConsumption: 2}},
			[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 1000, Kind: PackageDelivery}},
			nil,
			graph,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}

		rng := rand.New(rand.NewSource(1))
		population, err := GenerateInitialPopulation(problem, 1, 50, rng)
		assert.Error(t, err)
		assert.Empty(t, population)
	})
}

func TestGenerateInitialPopulationS3CapacityOverflow(t *testing.T) {
	t.Run("returns an empty set when the only package overflows capacity", func(t *testing.T) {
		graph, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 60}}, nil)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		problem, err := NewProblem(
			[]Courier{{HourlyRate: 30, WorkLimit: 480}},
			[]Vehicle{{Capacity: 5, FuelConsumption: 2}},
			[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 1000, Kind: PackageDelivery}},
			[]Permission{{Courier: 0, Vehicle: 0}},
			graph,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}

		rng := rand.New(rand.NewSource(1))
		population, err := GenerateInitialPopulation(problem, 1, 50, rng)
		assert.Error(t, err)
		assert.Empty(t, population)
	})
}

func TestGenerateInitialPopulationS4TimeWindowViolation(t *testing.T) {
	t.Run("returns an empty set when the only route arrives too late", func(t *testing.T) {
		graph, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 10}}, nil)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		problem, err := NewProblem(
			[]Courier{{HourlyRate: 30, WorkLimit: 480}},
			[]Vehicle{{Capacity: 50, FuelConsumption: 2}},
			[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 5, Kind: PackageDelivery}},
			[]Permission{{Courier: 0, Vehicle: 0}},
			graph,
		)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}

		rng := rand.New(rand.NewSource(1))
		population, err := GenerateInitialPopulation(problem, 1, 50, rng)
		assert.Error(t, err)
		assert.Empty(t, population)
	})
}

func TestGenerateInitialPopulationDeterminism(t *testing.T) {
	t.Run("the same seed produces the same population", func(t *testing.T) {
		problem := biggerProblem(t)

		pop1, err1 := GenerateInitialPopulation(problem, 8, 2000, rand.New(rand.NewSource(42)))
		pop2, err2 := GenerateInitialPopulation(problem, 8, 2000, rand.New(rand.NewSource(42)))

		assert.NoError(t, err1)
		assert.NoError(t, err2)
		assert.Equal(t, len(pop1), len(pop2))
		for idx := range pop1 {
			assert.Equal(t, pop1[idx].Hash(), pop2[idx].Hash())
		}
	})
}

// biggerProblem builds a small but non-trivial instance (3 couriers,
// 3 vehicles, 5 packages, full permissions) used by tests that need
// more than one feasible route shape.
func biggerProblem(t *testing.T) *Problem {
	t.Helper()

	n := 6
	edges := make([]Edge, 0, n*n)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			edges = append(edges, Edge{From: u, To: v, Distance: float64(v - u), Time: float64((v - u) * 15)})
		}
	}
	graph, err := NewGraph(n, 0, edges, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	couriers := []Courier{{HourlyRate: 20, WorkLimit: 600}, {HourlyRate: 25, WorkLimit: 600}, {HourlyRate: 30, WorkLimit: 600}}
	vehicles := []Vehicle{{Capacity: 100, FuelConsumption: 1}, {Capacity: 100, FuelConsumption: 1.5}, {Capacity: 100, FuelConsumption: 2}}
	packages := []Package{
		{Address: 1, Weight: 5, StartTime: 0, EndTime: 1000, Kind: PackageDelivery},
		{Address: 2, Weight: 5, StartTime: 0, EndTime: 1000, Kind: PackageDelivery},
		{Address: 3, Weight: 5, StartTime: 0, EndTime: 1000, Kind: PackagePickup},
		{Address: 4, Weight: 5, StartTime: 0, EndTime: 1000, Kind: PackageDelivery},
		{Address: 5, Weight: 5, StartTime: 0, EndTime: 1000, Kind: PackagePickup},
	}
	var permissions []Permission
	for i := range couriers {
		for j := range vehicles {
			permissions = append(permissions, Permission{Courier: i, Vehicle: j})
		}
	}

	problem, err := NewProblem(couriers, vehicles, packages, permissions, graph)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return problem
}

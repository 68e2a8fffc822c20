package vrp

import "testing"

// s1Problem builds the scenario of spec boundary test S1: one courier,
// one vehicle with ample capacity, one delivery package at node 1,
// warehouse at 0, s[0,1]=s[1,0]=60, g[0,1]=g[1,0]=1.
func s1Problem(t *testing.T) *Problem {
	t.Helper()
	graph, err := NewGraph(2, 0, []Edge{{From: 0, To: 1, Distance: 1, Time: 60}}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	problem, err := NewProblem(
		[]Courier{{HourlyRate: 30, WorkLimit: 480}},
		[]Vehicle{{Capacity: 50, FuelConsumption: 2}},
		[]Package{{Address: 1, Weight: 10, StartTime: 0, EndTime: 1000, Kind: PackageDelivery}},
		[]Permission{{Courier: 0, Vehicle: 0}},
		graph,
	)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return problem
}

// s1Solution builds the unique feasible solution for s1Problem.
func s1Solution(problem *Problem) *Solution {
	n1 := problem.N1()
	row := make([]int, n1)
	row[1] = 1 // position 0 stays warehouse by zero-value, rest padded below
	for p := 2; p < n1; p++ {
		row[p] = 0
	}
	return NewSolution(problem, [][]int{row}, []int{0}, []int{0})
}

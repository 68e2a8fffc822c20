package vrp

import "math/rand"

// uniqueAddresses returns, in package order, the distinct addresses of
// the packages currently assigned to vehicle j.
func uniqueAddresses(problem *Problem, y []int, j int) []int {
	seen := make(map[int]struct{})
	var out []int
	for k, pkg := range problem.packages {
		if y[k] != j {
			continue
		}
		if _, dup := seen[pkg.Address]; dup {
			continue
		}
		seen[pkg.Address] = struct{}{}
		out = append(out, pkg.Address)
	}
	return out
}

// BuildVehicleRoute writes a warehouse-padded uniform-random permutation
// of vehicle j's unique package addresses and returns it as a route
// array of length N+1 (position 0 = warehouse, tail padded with the
// warehouse).
func BuildVehicleRoute(problem *Problem, y []int, j int, rng *rand.Rand) []int {
	addresses := uniqueAddresses(problem, y, j)
	rng.Shuffle(len(addresses), func(a, b int) {
		addresses[a], addresses[b] = addresses[b], addresses[a]
	})

	row := make([]int, problem.N1())
	w := problem.Warehouse()
	for p := range row {
		row[p] = w
	}
	row[0] = w
	for p, addr := range addresses {
		row[p+1] = addr
	}
	return row
}

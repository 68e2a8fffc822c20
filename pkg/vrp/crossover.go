package vrp

import "math/rand"

// maxCrossoverRetries bounds how many times Crossover retries the
// whole two-offspring construction before giving up (spec §4.F).
const maxCrossoverRetries = 10

// CrossoverStats accumulates success/failure counts across a GA run,
// mirroring the teacher's per-kind acceptance counters.
type CrossoverStats struct {
	Accepted int
	Rejected int
}

// Crossover recombines parent1 and parent2 into up to two offspring:
// one carrying parent1's routes with couriers resampled from parent2,
// and one carrying parent2's routes with couriers resampled from
// parent1. It retries the whole pair up to ten times; stats, if
// non-nil, is updated with every attempt's outcome. The returned slice
// has 0, 1 or 2 elements.
func Crossover(problem *Problem, parent1, parent2 *Solution, checker *Checker, rng *rand.Rand, stats *CrossoverStats) []*Solution {
	for attempt := 0; attempt < maxCrossoverRetries; attempt++ {
		offspringA, okA := buildOffspring(problem, parent1, parent2, checker, rng)
		offspringB, okB := buildOffspring(problem, parent2, parent1, checker, rng)

		if stats != nil {
			if okA {
				stats.Accepted++
			} else {
				stats.Rejected++
			}
			if okB {
				stats.Accepted++
			} else {
				stats.Rejected++
			}
		}

		if !okA && !okB {
			continue
		}

		var out []*Solution
		if okA {
			out = append(out, offspringA)
		}
		if okB {
			out = append(out, offspringB)
		}
		return out
	}
	return nil
}

// buildOffspring copies body's x and y verbatim and recomputes z by
// resampling couriers from other, bucketed into other's used and
// unused couriers.
func buildOffspring(problem *Problem, body, other *Solution, checker *Checker, rng *rand.Rand) (*Solution, bool) {
	x := make([][]int, len(body.X()))
	for j, row := range body.X() {
		x[j] = append([]int(nil), row...)
	}
	y := append([]int(nil), body.Y()...)
	z := make([]int, problem.NumVehicles())
	for j := range z {
		z[j] = Unassigned
	}

	usedCouriers := sortedDistinct(assignedCouriers(other.Z()))
	unusedCouriers := sortedSetDiff(problem.NumCouriers(), usedCouriers)

	usedVehicles := sortedDistinct(y)
	rng.Shuffle(len(usedVehicles), func(a, b int) {
		usedVehicles[a], usedVehicles[b] = usedVehicles[b], usedVehicles[a]
	})

	placed := make(map[int]struct{}, len(usedVehicles))
	w := problem.Warehouse()

	for _, j := range usedVehicles {
		roundTrip := body.ArrivalTime(w, j)

		candidate, ok := sampleCourier(problem, usedCouriers, placed, j, roundTrip, rng, 2*len(usedCouriers))
		if !ok {
			candidate, ok = sampleCourier(problem, unusedCouriers, placed, j, roundTrip, rng, 2*len(unusedCouriers))
		}
		if !ok {
			return nil, false
		}

		z[j] = candidate
		placed[candidate] = struct{}{}
	}

	sol := NewSolution(problem, x, y, z)
	if !checker.Check(sol) {
		return nil, false
	}
	return sol, true
}

// sampleCourier draws up to maxTries couriers uniformly from pool,
// accepting the first one permitted to drive j, not already placed in
// this offspring, and whose work limit covers roundTrip.
func sampleCourier(problem *Problem, pool []int, placed map[int]struct{}, j int, roundTrip float64, rng *rand.Rand, maxTries int) (int, bool) {
	if len(pool) == 0 {
		return 0, false
	}
	for try := 0; try < maxTries; try++ {
		i := pool[rng.Intn(len(pool))]
		if _, taken := placed[i]; taken {
			continue
		}
		if !problem.HasPermission(i, j) {
			continue
		}
		if roundTrip > problem.Courier(i).WorkLimit {
			continue
		}
		return i, true
	}
	return 0, false
}

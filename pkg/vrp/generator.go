package vrp

import "math/rand"

// GenerateInitialPopulation builds up to populationSize distinct
// feasible solutions by repeated randomized single-attempt
// construction, stopping once the target is met or the attempt budget
// is exhausted. If the budget runs out first, the partial set found so
// far is returned alongside an *InfeasibleConstruction error — the
// caller decides whether to proceed with fewer solutions than
// requested (spec §7).
func GenerateInitialPopulation(problem *Problem, populationSize, attempts int, rng *rand.Rand) ([]*Solution, error) {
	checker := NewChecker(problem)

	seen := make(map[uint64]struct{}, populationSize)
	var population []*Solution

	attempt := 0
	for len(population) < populationSize && attempt < attempts {
		attempt++

		candidate, ok := generateOneAttempt(problem, rng)
		if !ok {
			continue
		}
		if !checker.Check(candidate) {
			continue
		}
		h := candidate.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		population = append(population, candidate)
	}

	if len(population) < populationSize {
		return population, &InfeasibleConstruction{Requested: populationSize, Found: len(population), Attempts: attempt}
	}
	return population, nil
}

// generateOneAttempt performs the single-attempt construction of
// spec §4.D: decide package->vehicle, then courier->vehicle on first
// use of a vehicle (rejection sampling, giving up after 2n tries),
// then build every used vehicle's route as a random permutation of its
// package addresses. ok is false only when the problem has no
// vehicles at all; an attempt that merely fails
// rejection sampling still returns a (likely infeasible) candidate for
// the checker to reject.
func generateOneAttempt(problem *Problem, rng *rand.Rand) (*Solution, bool) {
	n, m, f := problem.NumCouriers(), problem.NumVehicles(), problem.NumPackages()
	if m == 0 {
		return nil, false
	}

	sol := NewEmptySolution(problem)
	y := sol.Y()
	z := sol.Z()

	isUsed := make(map[int]struct{})
	var usedOrder []int // insertion order, kept deterministic under a fixed seed
	placedCouriers := 0 // vehicles in usedOrder that actually got a courier in z

	for k := 0; k < f; k++ {
		var j int
		if placedCouriers >= n && n > 0 {
			// no more couriers available: pick among vehicles already used
			j = usedOrder[rng.Intn(len(usedOrder))]
		} else {
			j = rng.Intn(m)
		}
		y[k] = j

		if _, already := isUsed[j]; !already {
			isUsed[j] = struct{}{}
			usedOrder = append(usedOrder, j)
			if n > 0 {
				assignCourierRejectionSampling(problem, z, j, rng)
				if z[j] != Unassigned {
					placedCouriers++
				}
			}
		}
	}

	for _, j := range usedOrder {
		sol.X()[j] = BuildVehicleRoute(problem, y, j, rng)
	}
	sol.Invalidate()

	return sol, true
}

// assignCourierRejectionSampling draws couriers uniformly, accepting
// the first one that is permitted to drive vehicle j and not already
// placed in z, giving up after 2n tries (the candidate is then left
// courier-less and will be rejected by the checker).
func assignCourierRejectionSampling(problem *Problem, z []int, j int, rng *rand.Rand) {
	n := problem.NumCouriers()
	maxTries := 2 * n

	placed := make(map[int]struct{}, n)
	for _, i := range z {
		if i != Unassigned {
			placed[i] = struct{}{}
		}
	}

	for try := 0; try < maxTries; try++ {
		i := rng.Intn(n)
		if _, taken := placed[i]; taken {
			continue
		}
		if !problem.HasPermission(i, j) {
			continue
		}
		z[j] = i
		return
	}
}

package vrp

import "math/rand"

// Mutation is one of the five reversible in-place local operators of
// the mutation catalog. Apply and Reverse must be exact inverses of
// each other; IsPossible is a cheap pre-check evaluated before the
// per-instance probability gate.
type Mutation interface {
	// IsPossible reports whether this mutation can be attempted at all
	// (e.g. there are at least two couriers to swap). It does not
	// itself consult the probability gate.
	IsPossible() bool
	// Name identifies the mutation kind for statistics.
	Name() string
	// Apply edits the Solution in place.
	Apply()
	// Reverse undoes the most recent Apply, restoring the Solution to
	// its pre-Apply state exactly.
	Reverse()
}

// MutationStat accumulates per-kind scheduling outcomes across a GA
// run. It is carried in the caller's own state, never in a package
// global, so concurrent runs never interfere (spec §9).
type MutationStat struct {
	Attempts int
	Accepted int
}

// Probas holds the per-mutation-kind probability gate (spec §4.E,
// default 0.5 for every kind per spec §6).
type Probas struct {
	CourierSwap         float64
	UsedVehicleSwap     float64
	UnusedVehicleSwap   float64
	PackageReassignment float64
	RouteReorder        float64
}

// DefaultProbas returns the spec's default proba of 0.5 for every
// mutation kind.
func DefaultProbas() Probas {
	return Probas{
		CourierSwap:         0.5,
		UsedVehicleSwap:     0.5,
		UnusedVehicleSwap:   0.5,
		PackageReassignment: 0.5,
		RouteReorder:        0.5,
	}
}

func (p Probas) gate(name string, rng *rand.Rand) bool {
	var threshold float64
	switch name {
	case "courier-swap":
		threshold = p.CourierSwap
	case "used-vehicle-swap":
		threshold = p.UsedVehicleSwap
	case "unused-vehicle-swap":
		threshold = p.UnusedVehicleSwap
	case "package-reassignment":
		threshold = p.PackageReassignment
	case "route-reorder":
		threshold = p.RouteReorder
	default:
		threshold = 0.5
	}
	return rng.Float64() < threshold
}

// buildCatalog instantiates one of each mutation kind, plus one
// RouteReorder per currently-used vehicle, per spec §4.E scheduling.
// Every instance shares rng so the sequence of random draws consumed
// across the whole attempt is reproducible under a fixed seed.
func buildCatalog(solution *Solution, rng *rand.Rand) []Mutation {
	catalog := []Mutation{
		newCourierSwap(solution, rng),
		newUsedVehicleSwap(solution, rng),
		newUnusedVehicleSwap(solution, rng),
		newPackageReassignment(solution, rng),
	}

	used := usedVehicleSet(solution)
	for _, j := range used {
		catalog = append(catalog, newRouteReorder(solution, j, rng))
	}
	return catalog
}

// usedVehicleSet returns, in ascending order, the vehicles currently
// carrying at least one package.
func usedVehicleSet(solution *Solution) []int {
	assigned := make([]int, 0, len(solution.Y()))
	for _, j := range solution.Y() {
		if j != Unassigned {
			assigned = append(assigned, j)
		}
	}
	return sortedDistinct(assigned)
}

// AttemptMutation tries one mutation attempt against solution: it
// builds the full catalog (one of each kind, plus a RouteReorder per
// used vehicle), shuffles it, and tries each candidate in turn,
// skipping those whose IsPossible or probability gate fails. The first
// candidate that, once applied, leaves the solution feasible is kept;
// any others tried before it are reversed. If no candidate succeeds,
// solution is left exactly as it was passed in (testable property 2).
// stats, if non-nil, is updated in place with per-kind attempt/accept
// counts.
func AttemptMutation(solution *Solution, checker *Checker, rng *rand.Rand, probas Probas, stats map[string]*MutationStat) bool {
	catalog := buildCatalog(solution, rng)
	rng.Shuffle(len(catalog), func(a, b int) {
		catalog[a], catalog[b] = catalog[b], catalog[a]
	})

	for _, m := range catalog {
		if !m.IsPossible() {
			continue
		}
		if !probas.gate(m.Name(), rng) {
			continue
		}

		if stats != nil {
			st := stats[m.Name()]
			if st == nil {
				st = &MutationStat{}
				stats[m.Name()] = st
			}
			st.Attempts++
		}

		m.Apply()
		solution.Invalidate()

		if checker.Check(solution) {
			// Only a kept candidate's z gets swept for now-unused
			// vehicles; Reverse has no saved copy of z and can't
			// undo the sweep, so it must never run on a rejected one.
			normalizeUnusedVehicles(solution)
			solution.Invalidate()
			if stats != nil {
				stats[m.Name()].Accepted++
			}
			return true
		}

		m.Reverse()
		solution.Invalidate()
	}

	return false
}

// normalizeUnusedVehicles enforces "no packages ⇒ z[j] = Unassigned"
// (spec §9 open question), so mutation paths never leave a stale
// courier assignment on a vehicle nothing routes through.
func normalizeUnusedVehicles(solution *Solution) {
	used := make(map[int]struct{})
	for _, j := range solution.Y() {
		if j != Unassigned {
			used[j] = struct{}{}
		}
	}
	z := solution.Z()
	for j := range z {
		if z[j] == Unassigned {
			continue
		}
		if _, isUsed := used[j]; !isUsed {
			z[j] = Unassigned
		}
	}
}

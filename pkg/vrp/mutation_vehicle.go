package vrp

import "math/rand"

// usedVehicleSwap exchanges the routes of two used vehicles: vehicle
// a's route array becomes vehicle b's and vice versa, and every
// package previously assigned to one now points at the other. The
// courier driving each vehicle index is untouched, so this mutation
// effectively hands the two routes to each other's couriers.
type usedVehicleSwap struct {
	solution *Solution
	rng      *rand.Rand
	used     []int

	a, b  int
	oldY  []int
	oldXA []int
	oldXB []int
}

func newUsedVehicleSwap(solution *Solution, rng *rand.Rand) *usedVehicleSwap {
	return &usedVehicleSwap{solution: solution, rng: rng, used: usedVehicleSet(solution)}
}

func (m *usedVehicleSwap) Name() string { return "used-vehicle-swap" }

func (m *usedVehicleSwap) IsPossible() bool {
	return len(m.used) >= 2
}

func (m *usedVehicleSwap) Apply() {
	rng := m.rng
	used := m.used

	a := used[rng.Intn(len(used))]
	b := used[rng.Intn(len(used))]
	for a == b {
		b = used[rng.Intn(len(used))]
	}
	m.a, m.b = a, b

	y := m.solution.Y()
	x := m.solution.X()

	oldY := append([]int(nil), y...)
	m.oldY = oldY
	m.oldXA = append([]int(nil), x[a]...)
	m.oldXB = append([]int(nil), x[b]...)

	x[a], x[b] = x[b], x[a]

	for k, j := range oldY {
		switch j {
		case a:
			y[k] = b
		case b:
			y[k] = a
		}
	}
}

func (m *usedVehicleSwap) Reverse() {
	x := m.solution.X()
	y := m.solution.Y()

	x[m.a] = m.oldXA
	x[m.b] = m.oldXB
	copy(y, m.oldY)
}

// unusedVehicleSwap moves one used vehicle's courier and route onto an
// unused vehicle, freeing the original vehicle entirely (empty route,
// no courier).
type unusedVehicleSwap struct {
	solution *Solution
	rng      *rand.Rand
	used     []int
	unused   []int

	a, b  int
	oldZB int
	oldY  []int
	oldXA []int
}

func newUnusedVehicleSwap(solution *Solution, rng *rand.Rand) *unusedVehicleSwap {
	used := usedVehicleSet(solution)
	unused := sortedSetDiff(solution.Problem().NumVehicles(), used)
	return &unusedVehicleSwap{solution: solution, rng: rng, used: used, unused: unused}
}

func (m *unusedVehicleSwap) Name() string { return "unused-vehicle-swap" }

func (m *unusedVehicleSwap) IsPossible() bool {
	return len(m.used) > 0 && len(m.unused) > 0
}

func (m *unusedVehicleSwap) Apply() {
	rng := m.rng
	a := m.used[rng.Intn(len(m.used))]
	b := m.unused[rng.Intn(len(m.unused))]
	m.a, m.b = a, b

	z := m.solution.Z()
	y := m.solution.Y()
	x := m.solution.X()

	m.oldZB = z[b]
	z[b] = z[a]
	z[a] = Unassigned

	m.oldY = append([]int(nil), y...)
	for k, j := range m.oldY {
		if j == a {
			y[k] = b
		}
	}

	m.oldXA = append([]int(nil), x[a]...)
	x[b] = append([]int(nil), x[a]...)

	w := m.solution.Problem().Warehouse()
	empty := make([]int, len(x[a]))
	for p := range empty {
		empty[p] = w
	}
	x[a] = empty
}

func (m *unusedVehicleSwap) Reverse() {
	x := m.solution.X()
	y := m.solution.Y()
	z := m.solution.Z()

	w := m.solution.Problem().Warehouse()
	empty := make([]int, len(x[m.b]))
	for p := range empty {
		empty[p] = w
	}
	x[m.b] = empty
	x[m.a] = m.oldXA

	copy(y, m.oldY)

	z[m.a] = z[m.b]
	z[m.b] = m.oldZB
}

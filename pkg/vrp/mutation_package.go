package vrp

import "math/rand"

// packageReassignment moves one package from its current vehicle to a
// different vehicle already carrying at least one package, splicing
// its address into the destination route and, if no other package
// assigned to the source vehicle shares that address, compacting it
// out of the source route.
type packageReassignment struct {
	solution *Solution
	rng      *rand.Rand

	k, oldJ, j int
	oldXOldJ   []int
	oldXJ      []int
	applied    bool
}

func newPackageReassignment(solution *Solution, rng *rand.Rand) *packageReassignment {
	return &packageReassignment{solution: solution, rng: rng}
}

func (m *packageReassignment) Name() string { return "package-reassignment" }

func (m *packageReassignment) IsPossible() bool {
	p := m.solution.Problem()
	if p.NumPackages() < 2 {
		return false
	}
	return len(sortedDistinct(m.solution.Y())) >= 2
}

func (m *packageReassignment) Apply() {
	rng := m.rng
	p := m.solution.Problem()
	y := m.solution.Y()
	x := m.solution.X()
	w := p.Warehouse()

	for _, k := range rng.Perm(p.NumPackages()) {
		current := y[k]
		candidates := []int{}
		for _, j := range sortedDistinct(y) {
			if j != current {
				candidates = append(candidates, j)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		j := candidates[rng.Intn(len(candidates))]
		oldJ := current

		m.k, m.oldJ, m.j = k, oldJ, j
		m.oldXOldJ = append([]int(nil), x[oldJ]...)
		m.oldXJ = append([]int(nil), x[j]...)
		m.applied = true

		y[k] = j
		address := p.Package(k).Address

		if !contains(m.solution.visitedNodes(j), address) {
			insertIntoRoute(x[j], w, address, rng)
		}

		stillOnOldJ := false
		for kk, jj := range y {
			if jj == oldJ && p.Package(kk).Address == address {
				stillOnOldJ = true
				break
			}
		}
		if !stillOnOldJ {
			removeFromRoute(x[oldJ], w, address)
		}
		return
	}
}

func (m *packageReassignment) Reverse() {
	if !m.applied {
		return
	}
	y := m.solution.Y()
	x := m.solution.X()

	y[m.k] = m.oldJ
	x[m.oldJ] = m.oldXOldJ
	x[m.j] = m.oldXJ
}

func contains(vals []int, target int) bool {
	for _, v := range vals {
		if v == target {
			return true
		}
	}
	return false
}

// insertIntoRoute splices address into row at a random position within
// the existing visited prefix, shifting the remainder right by one and
// dropping it off the padded tail.
func insertIntoRoute(row []int, warehouse, address int, rng *rand.Rand) {
	visitedLen := 0
	for p := 1; p < len(row); p++ {
		if row[p] == warehouse {
			break
		}
		visitedLen++
	}

	o := 1 + rng.Intn(visitedLen)
	for l := len(row) - 1; l > o; l-- {
		row[l] = row[l-1]
	}
	row[o] = address
}

// removeFromRoute compacts address out of row, shifting every element
// after it left by one.
func removeFromRoute(row []int, warehouse, address int) {
	o := -1
	for p := 1; p < len(row); p++ {
		if row[p] == address {
			o = p
			break
		}
	}
	if o == -1 {
		return
	}
	for o < len(row)-1 && row[o] != warehouse {
		row[o] = row[o+1]
		o++
	}
}

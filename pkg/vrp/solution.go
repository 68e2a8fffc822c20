package vrp

import (
	"hash/fnv"
	"strconv"
)

// Unassigned marks a package not yet routed (only valid transiently
// during construction) or a vehicle without an assigned courier.
const Unassigned = -1

// Solution is the mutable decision state for one candidate: the route
// of every vehicle (x), the vehicle carrying each package (y), and the
// courier driving each vehicle (z). It exclusively owns this state and
// holds a read-only reference to the Problem it was built against.
//
// Derived quantities (arrival times, courier work time, package
// service time, vehicle distance, vehicle load) are cached behind a
// single dirty bit. Any code that edits x, y or z directly through
// the X/Y/Z accessors must call Invalidate afterward; Solution has no
// setters that do so on the caller's behalf.
type Solution struct {
	problem *Problem

	x [][]int // x[j] has length N+1; position 0 is always the warehouse
	y []int   // y[k] in [0,m) or Unassigned
	z []int   // z[j] in [0,n) or Unassigned

	dirty       bool
	arrival     [][]float64      // arrival[v][j] = l[v,j]
	workTime    []float64        // workTime[i] = t[i]
	serviceTime []float64        // serviceTime[k] = v_k[k]
	distance    []float64        // distance[j] = d[j]
	load        []map[int]float64 // load[j][v] = m[j,v]
}

// NewSolution builds a Solution from decision arrays, taking ownership
// of deep copies of x, y and z.
func NewSolution(problem *Problem, x [][]int, y []int, z []int) *Solution {
	s := &Solution{problem: problem}
	s.x = make([][]int, len(x))
	for j, row := range x {
		s.x[j] = append([]int(nil), row...)
	}
	s.y = append([]int(nil), y...)
	s.z = append([]int(nil), z...)
	s.dirty = true
	return s
}

// NewEmptySolution builds a Solution with no packages or couriers
// assigned yet: every route is all-warehouse, every package
// unassigned, every vehicle courier-less. Used as the starting point
// for the generator and for crossover offspring.
func NewEmptySolution(problem *Problem) *Solution {
	m := problem.NumVehicles()
	n := problem.N1() // N+1
	x := make([][]int, m)
	for j := range x {
		row := make([]int, n)
		for p := range row {
			row[p] = problem.Warehouse()
		}
		x[j] = row
	}
	y := make([]int, problem.NumPackages())
	for k := range y {
		y[k] = Unassigned
	}
	z := make([]int, m)
	for j := range z {
		z[j] = Unassigned
	}
	return NewSolution(problem, x, y, z)
}

// N1 returns N+1, the fixed length of each route array.
func (p *Problem) N1() int { return p.graph.N + 1 }

// Problem returns the (shared, read-only) problem this solution was
// built against.
func (s *Solution) Problem() *Problem { return s.problem }

// X returns the route arrays by reference. Callers that mutate must
// call Invalidate afterward.
func (s *Solution) X() [][]int { return s.x }

// Y returns the package->vehicle assignment by reference.
func (s *Solution) Y() []int { return s.y }

// Z returns the vehicle->courier assignment by reference.
func (s *Solution) Z() []int { return s.z }

// Invalidate marks the derived-quantity cache dirty. Must be called
// after any direct edit through X/Y/Z.
func (s *Solution) Invalidate() { s.dirty = true }

// Clone returns a deep copy of the decision state. The derived cache
// is not copied; it is lazily recomputed on first access.
func (s *Solution) Clone() *Solution {
	return NewSolution(s.problem, s.x, s.y, s.z)
}

// Equal reports whether two solutions have bitwise-identical decision
// state. Cached derived quantities play no part in equality.
func (s *Solution) Equal(other *Solution) bool {
	if other == nil || s.problem != other.problem {
		return false
	}
	if len(s.x) != len(other.x) || len(s.y) != len(other.y) || len(s.z) != len(other.z) {
		return false
	}
	for j := range s.x {
		if len(s.x[j]) != len(other.x[j]) {
			return false
		}
		for p := range s.x[j] {
			if s.x[j][p] != other.x[j][p] {
				return false
			}
		}
	}
	for k := range s.y {
		if s.y[k] != other.y[k] {
			return false
		}
	}
	for j := range s.z {
		if s.z[j] != other.z[j] {
			return false
		}
	}
	return true
}

// Hash returns a hash of (x, y, z), suitable for deduplicating a
// population.
func (s *Solution) Hash() uint64 {
	h := fnv.New64a()
	buf := make([]byte, 0, 16)
	writeInt := func(v int) {
		buf = strconv.AppendInt(buf[:0], int64(v), 10)
		h.Write(buf)
		h.Write([]byte{','})
	}
	for _, row := range s.x {
		for _, v := range row {
			writeInt(v)
		}
		h.Write([]byte{';'})
	}
	for _, v := range s.y {
		writeInt(v)
	}
	h.Write([]byte{'|'})
	for _, v := range s.z {
		writeInt(v)
	}
	return h.Sum64()
}

// RouteOf returns the compact sequence of visited nodes for vehicle j,
// with the warehouse optionally included at the front and/or back.
func (s *Solution) RouteOf(j int, includeLeadingW, includeTrailingW bool) []int {
	visited := s.visitedNodes(j)
	w := s.problem.Warehouse()

	out := make([]int, 0, len(visited)+2)
	if includeLeadingW {
		out = append(out, w)
	}
	out = append(out, visited...)
	if includeTrailingW {
		out = append(out, w)
	}
	return out
}

// visitedNodes returns the contiguous, warehouse-free prefix of
// vehicle j's route (positions 1..k of x[j]).
func (s *Solution) visitedNodes(j int) []int {
	w := s.problem.Warehouse()
	row := s.x[j]
	var out []int
	for p := 1; p < len(row); p++ {
		if row[p] == w {
			break
		}
		out = append(out, row[p])
	}
	return out
}

// ArrivalTime returns l[v,j]: the arrival time of vehicle j at node v,
// or, for v = warehouse, the full round-trip closure time.
func (s *Solution) ArrivalTime(v, j int) float64 {
	s.ensure()
	return s.arrival[v][j]
}

// TotalWorkTime returns t[i]: courier i's total accumulated travel
// time across the one vehicle (if any) they drive.
func (s *Solution) TotalWorkTime(i int) float64 {
	s.ensure()
	return s.workTime[i]
}

// ServiceTime returns v_k[k]: the moment package k is handled.
func (s *Solution) ServiceTime(k int) float64 {
	s.ensure()
	return s.serviceTime[k]
}

// Distance returns d[j]: the total distance vehicle j covers over its
// closed route.
func (s *Solution) Distance(j int) float64 {
	s.ensure()
	return s.distance[j]
}

// Load returns m[j,v]: vehicle j's load immediately after handling
// node v (or at the warehouse before departure, for v = warehouse).
// ok is false if v is not on vehicle j's route and is not the
// warehouse.
func (s *Solution) Load(j, v int) (float64, bool) {
	s.ensure()
	val, ok := s.load[j][v]
	return val, ok
}

func (s *Solution) ensure() {
	if s.dirty {
		s.recalculate()
		s.dirty = false
	}
}

// recalculate recomputes every derived quantity from scratch against
// the current (x, y, z). It has no observable side effects besides
// updating the cache.
func (s *Solution) recalculate() {
	p := s.problem
	n, m, f, nodes := p.NumCouriers(), p.NumVehicles(), p.NumPackages(), p.NumNodes()
	w := p.Warehouse()

	s.arrival = make([][]float64, nodes)
	for v := range s.arrival {
		s.arrival[v] = make([]float64, m)
	}
	s.distance = make([]float64, m)
	s.load = make([]map[int]float64, m)
	s.workTime = make([]float64, n)
	s.serviceTime = make([]float64, f)

	deliveries := make([][]float64, m)
	pickups := make([][]float64, m)
	for j := 0; j < m; j++ {
		deliveries[j] = make([]float64, nodes)
		pickups[j] = make([]float64, nodes)
	}
	initialLoad := make([]float64, m)
	for k, pkg := range p.packages {
		j := s.y[k]
		if j == Unassigned {
			continue
		}
		switch pkg.Kind {
		case PackageDelivery:
			deliveries[j][pkg.Address] += pkg.Weight
			initialLoad[j] += pkg.Weight
		case PackagePickup:
			pickups[j][pkg.Address] += pkg.Weight
		}
	}

	for j := 0; j < m; j++ {
		visited := s.visitedNodes(j)
		loadMap := make(map[int]float64, len(visited)+1)
		cur := w
		cum := 0.0
		dist := 0.0
		load := initialLoad[j]
		loadMap[w] = load

		for _, v := range visited {
			cum += p.Time(cur, v)
			dist += p.Distance(cur, v)
			s.arrival[v][j] = cum
			load = load - deliveries[j][v] + pickups[j][v]
			loadMap[v] = load
			cur = v
		}
		cum += p.Time(cur, w)
		dist += p.Distance(cur, w)
		s.arrival[w][j] = cum
		s.distance[j] = dist
		s.load[j] = loadMap
	}

	for j := 0; j < m; j++ {
		if i := s.z[j]; i != Unassigned {
			s.workTime[i] += s.arrival[w][j]
		}
	}

	for k, pkg := range p.packages {
		j := s.y[k]
		if j == Unassigned {
			continue
		}
		s.serviceTime[k] = s.arrival[pkg.Address][j]
	}
}

package vrp

// DefaultEpsilon is the floating-point tolerance applied to time-window
// and capacity boundary comparisons.
const DefaultEpsilon = 1e-9

// Checker runs the ordered P1-P7 feasibility predicate suite against a
// (Problem, Solution) pair. It never mutates the solution and never
// raises; callers that need to know which predicate failed use
// CheckVerbose.
type Checker struct {
	Problem *Problem
	Epsilon float64
}

// NewChecker builds a Checker with the default epsilon.
func NewChecker(problem *Problem) *Checker {
	return &Checker{Problem: problem, Epsilon: DefaultEpsilon}
}

// Check reports whether s satisfies every predicate P1-P7.
func (c *Checker) Check(s *Solution) bool {
	ok, _ := c.CheckVerbose(s)
	return ok
}

// CheckVerbose reports feasibility and, on failure, the name of the
// first predicate that failed.
func (c *Checker) CheckVerbose(s *Solution) (bool, string) {
	preds := []struct {
		name string
		fn   func(*Solution) bool
	}{
		{"P1 courier-uniqueness", c.checkCourierUniqueness},
		{"P2 work-limit", c.checkWorkLimit},
		{"P3 permission", c.checkPermission},
		{"P4 package-coverage", c.checkPackageCoverage},
		{"P5 time-windows", c.checkTimeWindows},
		{"P6 route-structure", c.checkRouteStructure},
		{"P7 capacity", c.checkCapacity},
	}
	for _, pred := range preds {
		if !pred.fn(s) {
			return false, pred.name
		}
	}
	return true, ""
}

// P1: z has no duplicate non-Unassigned values.
func (c *Checker) checkCourierUniqueness(s *Solution) bool {
	seen := make(map[int]struct{}, len(s.z))
	for _, i := range s.z {
		if i == Unassigned {
			continue
		}
		if _, dup := seen[i]; dup {
			return false
		}
		seen[i] = struct{}{}
	}
	return true
}

// P2: every courier's total work time is within their work limit.
func (c *Checker) checkWorkLimit(s *Solution) bool {
	for i := 0; i < c.Problem.NumCouriers(); i++ {
		if s.TotalWorkTime(i) > c.Problem.Courier(i).WorkLimit+c.Epsilon {
			return false
		}
	}
	return true
}

// P3: every assigned vehicle's courier is permitted to drive it.
func (c *Checker) checkPermission(s *Solution) bool {
	for j, i := range s.z {
		if i == Unassigned {
			continue
		}
		if !c.Problem.HasPermission(i, j) {
			return false
		}
	}
	return true
}

// P4: every package's address appears in its assigned vehicle's route.
func (c *Checker) checkPackageCoverage(s *Solution) bool {
	for k, pkg := range c.Problem.packages {
		j := s.y[k]
		if j == Unassigned {
			return false
		}
		found := false
		for _, v := range s.visitedNodes(j) {
			if v == pkg.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// P5: every package's service time lies within its time window.
func (c *Checker) checkTimeWindows(s *Solution) bool {
	for k, pkg := range c.Problem.packages {
		st := s.ServiceTime(k)
		if st < pkg.StartTime-c.Epsilon || st > pkg.EndTime+c.Epsilon {
			return false
		}
	}
	return true
}

// P6: route well-formedness — warehouse at position 0, visited nodes a
// contiguous, duplicate-free prefix from position 1, the remainder
// padded with the warehouse.
func (c *Checker) checkRouteStructure(s *Solution) bool {
	w := c.Problem.Warehouse()
	n1 := c.Problem.N1()

	for _, row := range s.x {
		if len(row) != n1 {
			return false
		}
		if row[0] != w {
			return false
		}

		seen := make(map[int]struct{})
		inPrefix := true
		for p := 1; p < len(row); p++ {
			v := row[p]
			if v == w {
				inPrefix = false
				continue
			}
			if !inPrefix {
				// a non-warehouse node after the prefix closed
				return false
			}
			if v < 0 || v >= c.Problem.NumNodes() {
				return false
			}
			if _, dup := seen[v]; dup {
				return false
			}
			seen[v] = struct{}{}
		}
	}
	return true
}

// P7: at every prefix of a vehicle's traversal, accumulated load lies
// within [0, capacity].
func (c *Checker) checkCapacity(s *Solution) bool {
	for j := 0; j < c.Problem.NumVehicles(); j++ {
		capacity := c.Problem.Vehicle(j).Capacity
		w := c.Problem.Warehouse()

		if load, ok := s.Load(j, w); ok {
			if load < -c.Epsilon || load > capacity+c.Epsilon {
				return false
			}
		}
		for _, v := range s.visitedNodes(j) {
			load, _ := s.Load(j, v)
			if load < -c.Epsilon || load > capacity+c.Epsilon {
				return false
			}
		}
	}
	return true
}

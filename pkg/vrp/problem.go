package vrp

import "fmt"

// PackageKind distinguishes a delivery drop from a pickup.
type PackageKind string

const (
	PackageDelivery PackageKind = "delivery"
	PackagePickup   PackageKind = "pickup"
)

// Courier is a driver with an hourly rate (currency per hour; cost and
// billing convert it to a per-minute rate by dividing by 60) and a
// work limit (minutes) bounding their total accumulated travel time
// across one run.
type Courier struct {
	HourlyRate float64
	WorkLimit  float64
}

// Vehicle is a fleet vehicle with a weight capacity and a fuel
// consumption rate per distance unit.
type Vehicle struct {
	Capacity        float64
	FuelConsumption float64
}

// Package is a pickup or delivery at a city node, with a service time
// window in minutes.
type Package struct {
	Address   int
	Weight    float64
	StartTime float64
	EndTime   float64
	Kind      PackageKind
}

// Permission authorizes a specific courier to drive a specific
// vehicle.
type Permission struct {
	Courier int
	Vehicle int
}

// Problem is the immutable problem instance: built once via NewProblem
// and never mutated afterward. Solutions hold a read-only reference to
// it for their entire lifetime.
type Problem struct {
	couriers    []Courier
	vehicles    []Vehicle
	packages    []Package
	permissions map[Permission]struct{}
	graph       *Graph
}

// NewProblem validates and assembles a Problem instance.
func NewProblem(couriers []Courier, vehicles []Vehicle, packages []Package, permissions []Permission, graph *Graph) (*Problem, error) {
	if graph == nil {
		return nil, &ValidationError{Field: "graph", Reason: "must not be nil"}
	}
	for k, p := range packages {
		if p.Address == graph.Warehouse {
			return nil, &ValidationError{Field: "packages", Reason: fmt.Sprintf("package %d addressed at the warehouse node", k)}
		}
		if p.Address < 0 || p.Address >= graph.N {
			return nil, &ValidationError{Field: "packages", Reason: fmt.Sprintf("package %d address out of range", k)}
		}
		if p.StartTime > p.EndTime {
			return nil, &ValidationError{Field: "packages", Reason: fmt.Sprintf("package %d has start_time > end_time", k)}
		}
		if p.Kind != PackageDelivery && p.Kind != PackagePickup {
			return nil, &ValidationError{Field: "packages", Reason: fmt.Sprintf("package %d has unknown type %q", k, p.Kind)}
		}
	}

	permSet := make(map[Permission]struct{}, len(permissions))
	for _, perm := range permissions {
		if perm.Courier < 0 || perm.Courier >= len(couriers) {
			return nil, &ValidationError{Field: "permissions", Reason: "courier index out of range"}
		}
		if perm.Vehicle < 0 || perm.Vehicle >= len(vehicles) {
			return nil, &ValidationError{Field: "permissions", Reason: "vehicle index out of range"}
		}
		permSet[perm] = struct{}{}
	}

	return &Problem{
		couriers:    append([]Courier(nil), couriers...),
		vehicles:    append([]Vehicle(nil), vehicles...),
		packages:    append([]Package(nil), packages...),
		permissions: permSet,
		graph:       graph,
	}, nil
}

func (p *Problem) NumCouriers() int { return len(p.couriers) }
func (p *Problem) NumVehicles() int { return len(p.vehicles) }
func (p *Problem) NumPackages() int { return len(p.packages) }
func (p *Problem) NumNodes() int    { return p.graph.N }
func (p *Problem) Warehouse() int   { return p.graph.Warehouse }

func (p *Problem) Courier(i int) Courier { return p.couriers[i] }
func (p *Problem) Vehicle(j int) Vehicle { return p.vehicles[j] }
func (p *Problem) Package(k int) Package { return p.packages[k] }

func (p *Problem) Graph() *Graph { return p.graph }

// HasPermission reports whether courier i is authorized to drive
// vehicle j.
func (p *Problem) HasPermission(i, j int) bool {
	_, ok := p.permissions[Permission{Courier: i, Vehicle: j}]
	return ok
}

// Distance returns g[u,v].
func (p *Problem) Distance(u, v int) float64 { return p.graph.Distance(u, v) }

// Time returns s[u,v].
func (p *Problem) Time(u, v int) float64 { return p.graph.Time(u, v) }

// PermittedVehicles returns, in ascending order, the vehicles courier i
// is authorized to drive.
func (p *Problem) PermittedVehicles(i int) []int {
	var out []int
	for j := range p.vehicles {
		if p.HasPermission(i, j) {
			out = append(out, j)
		}
	}
	return out
}

// PermittedCouriers returns, in ascending order, the couriers
// authorized to drive vehicle j.
func (p *Problem) PermittedCouriers(j int) []int {
	var out []int
	for i := range p.couriers {
		if p.HasPermission(i, j) {
			out = append(out, i)
		}
	}
	return out
}

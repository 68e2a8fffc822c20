package vrp

import "encoding/json"

// problemDocument is the on-disk JSON shape of a Problem, matching
// the persistence format byte-for-byte (snake_case keys, 1-indexed
// package addresses excluded from the warehouse).
type problemDocument struct {
	Couriers    []courierDocument    `json:"couriers"`
	Vehicles    []vehicleDocument    `json:"vehicles"`
	Packages    []packageDocument    `json:"packages"`
	Permissions []permissionDocument `json:"permissions"`
	Graph       graphDocument        `json:"graph"`
}

type courierDocument struct {
	HourlyRate float64 `json:"hourly_rate"`
	WorkLimit  float64 `json:"work_limit"`
}

type vehicleDocument struct {
	Capacity        float64 `json:"capacity"`
	FuelConsumption float64 `json:"fuel_consumption"`
}

type packageDocument struct {
	Address   int     `json:"address"`
	Weight    float64 `json:"weight"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Type      string  `json:"type"`
}

type permissionDocument struct {
	Courier int `json:"courier"`
	Vehicle int `json:"vehicle"`
}

type graphDocument struct {
	Points    []pointDocument `json:"points"`
	Routes    []routeDocument `json:"routes"`
	Warehouse int             `json:"warehouse"`
}

type pointDocument struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type routeDocument struct {
	StartNode int     `json:"start_node"`
	EndNode   int     `json:"end_node"`
	Distance  float64 `json:"distance"`
	Time      float64 `json:"time"`
}

// Encode serializes problem into the persistence format of spec §6.
func Encode(problem *Problem) ([]byte, error) {
	doc := problemDocument{
		Graph: graphDocument{Warehouse: problem.Warehouse()},
	}

	for i := 0; i < problem.NumCouriers(); i++ {
		c := problem.Courier(i)
		doc.Couriers = append(doc.Couriers, courierDocument{HourlyRate: c.HourlyRate, WorkLimit: c.WorkLimit})
	}
	for j := 0; j < problem.NumVehicles(); j++ {
		v := problem.Vehicle(j)
		doc.Vehicles = append(doc.Vehicles, vehicleDocument{Capacity: v.Capacity, FuelConsumption: v.FuelConsumption})
	}
	for k := 0; k < problem.NumPackages(); k++ {
		p := problem.Package(k)
		doc.Packages = append(doc.Packages, packageDocument{
			Address:   p.Address,
			Weight:    p.Weight,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
			Type:      string(p.Kind),
		})
	}
	for i := 0; i < problem.NumCouriers(); i++ {
		for j := 0; j < problem.NumVehicles(); j++ {
			if problem.HasPermission(i, j) {
				doc.Permissions = append(doc.Permissions, permissionDocument{Courier: i, Vehicle: j})
			}
		}
	}

	g := problem.Graph()
	for _, pt := range g.Points {
		doc.Graph.Points = append(doc.Graph.Points, pointDocument{X: pt.X, Y: pt.Y})
	}
	for u := 0; u < g.N; u++ {
		for v := u + 1; v < g.N; v++ {
			dist := g.Distance(u, v)
			tm := g.Time(u, v)
			if dist == 0 && tm == 0 {
				continue
			}
			doc.Graph.Routes = append(doc.Graph.Routes, routeDocument{StartNode: u, EndNode: v, Distance: dist, Time: tm})
		}
	}

	return json.Marshal(doc)
}

// Decode parses the persistence format of spec §6 into a Problem. It
// wraps malformed JSON or out-of-range values in a *ValidationError or
// *IOFailure as appropriate.
func Decode(data []byte) (*Problem, error) {
	var doc problemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &IOFailure{Op: "decode", Err: err}
	}

	couriers := make([]Courier, len(doc.Couriers))
	for i, c := range doc.Couriers {
		couriers[i] = Courier{HourlyRate: c.HourlyRate, WorkLimit: c.WorkLimit}
	}
	vehicles := make([]Vehicle, len(doc.Vehicles))
	for j, v := range doc.Vehicles {
		vehicles[j] = Vehicle{Capacity: v.Capacity, FuelConsumption: v.FuelConsumption}
	}
	packages := make([]Package, len(doc.Packages))
	for k, p := range doc.Packages {
		var kind PackageKind
		switch p.Type {
		case string(PackageDelivery):
			kind = PackageDelivery
		case string(PackagePickup):
			kind = PackagePickup
		default:
			return nil, &ValidationError{Field: "packages.type", Reason: "must be \"delivery\" or \"pickup\", got " + p.Type}
		}
		packages[k] = Package{Address: p.Address, Weight: p.Weight, StartTime: p.StartTime, EndTime: p.EndTime, Kind: kind}
	}
	permissions := make([]Permission, len(doc.Permissions))
	for idx, perm := range doc.Permissions {
		permissions[idx] = Permission{Courier: perm.Courier, Vehicle: perm.Vehicle}
	}

	points := make([]Point, len(doc.Graph.Points))
	for idx, pt := range doc.Graph.Points {
		points[idx] = Point{X: pt.X, Y: pt.Y}
	}
	edges := make([]Edge, len(doc.Graph.Routes))
	for idx, r := range doc.Graph.Routes {
		edges[idx] = Edge{From: r.StartNode, To: r.EndNode, Distance: r.Distance, Time: r.Time}
	}

	// Points carries one entry per node when the front-end supplied it;
	// when absent, the node count is recovered from the highest index
	// any route or the warehouse itself references.
	n := len(points)
	if n == 0 {
		n = doc.Graph.Warehouse + 1
		for _, e := range edges {
			if e.From+1 > n {
				n = e.From + 1
			}
			if e.To+1 > n {
				n = e.To + 1
			}
		}
	}

	graph, err := NewGraph(n, doc.Graph.Warehouse, edges, points)
	if err != nil {
		return nil, err
	}

	return NewProblem(couriers, vehicles, packages, permissions, graph)
}

package vrp

import "fmt"

// Edge is a directed input edge between two nodes, carrying both the
// distance (g) and travel time (s) the graph is built from. NewGraph
// mirrors each edge so the resulting matrices are symmetric, per
// spec §3: edge(u,v) ≡ edge(v,u).
type Edge struct {
	From, To int
	Distance float64
	Time     float64
}

// Point is a 2D coordinate, carried only for persistence/front-end
// round-tripping (spec §6 graph.points) — it plays no role in the
// engine's own computations.
type Point struct {
	X, Y float64
}

// Graph is the symmetric weighted road graph: a distance matrix g[u,v]
// and a travel-time matrix s[u,v], both zero on the diagonal, with a
// distinguished warehouse node.
type Graph struct {
	N         int
	Warehouse int
	Points    []Point

	distance [][]float64
	time     [][]float64
}

// NewGraph builds a Graph from n nodes and a set of directed edges.
// Each edge is symmetrized; conflicting duplicate edges (same pair,
// different weights) are rejected as a ValidationError. Self-loops are
// implicitly zero and need not be supplied.
func NewGraph(n, warehouse int, edges []Edge, points []Point) (*Graph, error) {
	if n <= 0 {
		return nil, &ValidationError{Field: "graph.n_nodes", Reason: "must be positive"}
	}
	if warehouse < 0 || warehouse >= n {
		return nil, &ValidationError{Field: "graph.warehouse", Reason: "out of range"}
	}

	g := &Graph{
		N:         n,
		Warehouse: warehouse,
		Points:    points,
		distance:  make([][]float64, n),
		time:      make([][]float64, n),
	}
	for i := range g.distance {
		g.distance[i] = make([]float64, n)
		g.time[i] = make([]float64, n)
	}

	set := func(u, v int, dist, tm float64) error {
		if u < 0 || u >= n || v < 0 || v >= n {
			return &ValidationError{Field: "graph.routes", Reason: fmt.Sprintf("node out of range in edge (%d,%d)", u, v)}
		}
		if u == v {
			return nil
		}
		if g.distance[u][v] != 0 || g.time[u][v] != 0 {
			if g.distance[u][v] != dist || g.time[u][v] != tm {
				return &ValidationError{Field: "graph.routes", Reason: fmt.Sprintf("conflicting duplicate edge (%d,%d)", u, v)}
			}
		}
		g.distance[u][v] = dist
		g.time[u][v] = tm
		return nil
	}

	for _, e := range edges {
		if err := set(e.From, e.To, e.Distance, e.Time); err != nil {
			return nil, err
		}
		if err := set(e.To, e.From, e.Distance, e.Time); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Distance returns g[u,v].
func (g *Graph) Distance(u, v int) float64 { return g.distance[u][v] }

// Time returns s[u,v].
func (g *Graph) Time(u, v int) float64 { return g.time[u][v] }

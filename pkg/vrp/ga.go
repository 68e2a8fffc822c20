package vrp

import (
	"context"
	"math/rand"
	"sort"
)

// Iteration is one state yielded by GA.Run: the population sorted by
// cost, its best member, and the running mutation/crossover
// statistics at that point.
type Iteration struct {
	Index          int
	Best           *Solution
	BestCost       float64
	Population     []*Solution
	CrossoverStats CrossoverStats
	MutationStats  map[string]*MutationStat
}

// GA holds the tunables of one genetic-algorithm run: the problem it
// optimizes against, the feasibility checker, the cost weights and
// mutation probabilities, and the iteration budget.
type GA struct {
	Problem *Problem
	Checker *Checker
	Weights CostWeights
	Probas  Probas
	MaxIter int
}

// NewGA builds a GA with the spec's default weights and mutation
// probabilities.
func NewGA(problem *Problem, maxIter int) *GA {
	return &GA{
		Problem: problem,
		Checker: NewChecker(problem),
		Weights: DefaultCostWeights(),
		Probas:  DefaultProbas(),
		MaxIter: maxIter,
	}
}

// Run drives the generational loop as a lazy sequence: a goroutine
// sorts, yields, recombines and mutates one generation per loop turn,
// sending an Iteration on the returned channel after each sort step.
// The consumer ranges over the channel; cancelling ctx stops the loop
// at the next yield boundary and closes the channel. The loop also
// stops on its own once MaxIter iterations have been yielded.
func (g *GA) Run(ctx context.Context, initialPopulation []*Solution, rng *rand.Rand) <-chan Iteration {
	out := make(chan Iteration)

	go func() {
		defer close(out)

		population := make([]*Solution, len(initialPopulation))
		copy(population, initialPopulation)

		crossStats := CrossoverStats{}
		mutStats := make(map[string]*MutationStat)

		for iter := 1; iter <= g.MaxIter; iter++ {
			g.sortByCost(population)

			snapshot := Iteration{
				Index:          iter,
				Best:           population[0],
				BestCost:       Cost(g.Problem, population[0], g.Weights),
				Population:     population,
				CrossoverStats: crossStats,
				MutationStats:  mutStats,
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}

			population = g.advance(population, rng, &crossStats, mutStats)
		}
	}()

	return out
}

// sortByCost sorts population ascending by cost, breaking ties by
// original index so the yield sequence stays reproducible under a
// fixed seed (spec §5).
func (g *GA) sortByCost(population []*Solution) {
	costs := make([]float64, len(population))
	for idx, s := range population {
		costs[idx] = Cost(g.Problem, s, g.Weights)
	}
	order := make([]int, len(population))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(a, b int) bool {
		return costs[order[a]] < costs[order[b]]
	})

	sorted := make([]*Solution, len(population))
	for pos, idx := range order {
		sorted[pos] = population[idx]
	}
	copy(population, sorted)
}

// advance builds the next generation: the top half of population
// survives unchanged, and the bottom half is replaced by crossing and
// mutating P/2 random pairs drawn from the top half, refilled with
// extra top solutions if crossover/mutation under-produces.
func (g *GA) advance(population []*Solution, rng *rand.Rand, crossStats *CrossoverStats, mutStats map[string]*MutationStat) []*Solution {
	half := len(population) / 2
	if half == 0 {
		return population
	}

	var pairs [][2]int
	for i := 0; i < half; i++ {
		for j := i + 1; j < half; j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}

	newHalf := make([]*Solution, 0, half)
	if len(pairs) > 0 {
		for attempt := 0; attempt < half && len(newHalf) < half; attempt++ {
			pair := pairs[rng.Intn(len(pairs))]
			offspring := Crossover(g.Problem, population[pair[0]], population[pair[1]], g.Checker, rng, crossStats)
			for _, child := range offspring {
				if len(newHalf) >= half {
					break
				}
				AttemptMutation(child, g.Checker, rng, g.Probas, mutStats)
				newHalf = append(newHalf, child)
			}
		}
	}

	extra := 0
	for len(newHalf) < half && half+extra < len(population) {
		newHalf = append(newHalf, population[half+extra].Clone())
		extra++
	}

	next := make([]*Solution, 0, len(population))
	next = append(next, population[:half]...)
	next = append(next, newHalf...)
	return next
}

package vrp

// CostWeights holds the two tunable scalars of the cost function: C
// weights total fuel burn, alpha weights average package lateness.
type CostWeights struct {
	C     float64
	Alpha float64
}

// DefaultCostWeights returns the spec's baseline weights (fuel counted
// at face value, no lateness penalty).
func DefaultCostWeights() CostWeights {
	return CostWeights{C: 1, Alpha: 0}
}

// Cost computes cost(S) = Σ rate(i)*t[i] + C*Σ fuelRate(j)*d[j] +
// (alpha/f)*Σ(v_k[k]-a_k). It is a pure function of the solution's
// decision state and may be memoized by the caller keyed on
// Solution.Hash().
func Cost(problem *Problem, s *Solution, weights CostWeights) float64 {
	var wageCost float64
	for i := 0; i < problem.NumCouriers(); i++ {
		wageCost += problem.Courier(i).HourlyRate / 60 * s.TotalWorkTime(i)
	}

	var fuelCost float64
	for j := 0; j < problem.NumVehicles(); j++ {
		fuelCost += problem.Vehicle(j).FuelConsumption * s.Distance(j)
	}

	var lateness float64
	f := problem.NumPackages()
	if f > 0 {
		for k := 0; k < f; k++ {
			lateness += s.ServiceTime(k) - problem.Package(k).StartTime
		}
		lateness = weights.Alpha / float64(f) * lateness
	}

	return wageCost + weights.C*fuelCost + lateness
}

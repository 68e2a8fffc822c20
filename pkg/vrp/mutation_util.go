package vrp

import "sort"

// sortedDistinct returns the ascending, duplicate-free values of vals,
// mirroring numpy.unique's ordering so mutation instances enumerate
// candidates in a fixed order regardless of Go's randomized map
// iteration.
func sortedDistinct(vals []int) []int {
	seen := make(map[int]struct{}, len(vals))
	var out []int
	for _, v := range vals {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// sortedSetDiff returns, ascending, the values of [0,n) not present in
// exclude.
func sortedSetDiff(n int, exclude []int) []int {
	present := make(map[int]struct{}, len(exclude))
	for _, v := range exclude {
		present[v] = struct{}{}
	}
	out := make([]int, 0, n-len(present))
	for v := 0; v < n; v++ {
		if _, found := present[v]; !found {
			out = append(out, v)
		}
	}
	return out
}

// indexOf returns the first index of target in vals, or -1.
func indexOf(vals []int, target int) int {
	for idx, v := range vals {
		if v == target {
			return idx
		}
	}
	return -1
}

package adjust

// Pair links a total row to the exclude row whose values are subtracted from it.
// Exclude is always above Total.
type Pair struct {
	Total   int `json:"total"`
	Exclude int `json:"exclude"`
}

// Match pairs each total row with the nearest exclude row above it. Both
// inputs must be ascending. Totals with no exclude row above them are left
// out of the result.
func Match(totals, excludes []int) []Pair {
	var (
		pairs []Pair
		seen  []int
		next  int
	)
	for _, t := range totals {
		for next < len(excludes) && excludes[next] < t {
			seen = append(seen, excludes[next])
			next++
		}
		if len(seen) > 0 {
			pairs = append(pairs, Pair{Total: t, Exclude: seen[len(seen)-1]})
		}
	}
	return pairs
}

// overlap returns the rows present in both ascending slices.
func overlap(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

package recorder

import "sort"

// sortSuggestions orders by score descending; ties fall back to more
// attempts (better-proven history), then selector for stability.
func sortSuggestions(s []Suggestion) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		if s[i].Attempts != s[j].Attempts {
			return s[i].Attempts > s[j].Attempts
		}
		return s[i].Selector < s[j].Selector
	})
}

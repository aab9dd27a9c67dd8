package sortutil

import "sort"

// StablePathSort returns a new slice containing the input paths sorted
// lexicographically. The original slice is not modified.
func StablePathSort(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of a string set in lexicographic order.
// Used wherever map iteration must be deterministic (bundle iteration
// during emission, log output).
func SortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

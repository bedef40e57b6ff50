// Package analysis derives recommendations from normalized usage data.
//
// Every function here is pure and deterministic: the same input always
// yields the same output, in the same order. An empty denominator means
// "no data" and is reported as such, never as zero.
package analysis

import (
	"math"
	"sort"
	"strings"
)

// ratio divides num by den and reports false for an empty denominator.
func ratio(num, den float64) (float64, bool) {
	if den == 0 || math.IsNaN(den) {
		return 0, false
	}
	return num / den, true
}

// percent is ratio*100, with 0 for an empty denominator.
func percent(num, den float64) float64 {
	r, ok := ratio(num, den)
	if !ok {
		return 0
	}
	return r * 100
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

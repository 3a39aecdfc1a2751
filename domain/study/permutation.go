package study

import (
	"sort"
)

// Permutation records a reordering of study indices. Sorting a set produces a
// permutation once; applying it to studies, labels or any covariate column
// keeps all of them aligned, and the inverse restores original order.
type Permutation []int

// IdentityPermutation returns the permutation that leaves order unchanged.
func IdentityPermutation(n int) Permutation {
	p := make(Permutation, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// SortAscending returns the permutation that orders values ascending.
// The sort is stable so ties keep their input order.
func SortAscending(values []float64) Permutation {
	p := IdentityPermutation(len(values))
	sort.SliceStable(p, func(a, b int) bool {
		return values[p[a]] < values[p[b]]
	})
	return p
}

// Valid reports whether p is a permutation of 0..len(p)-1.
func (p Permutation) Valid() bool {
	seen := make([]bool, len(p))
	for _, i := range p {
		if i < 0 || i >= len(p) || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// Inverse returns the permutation that undoes p.
func (p Permutation) Inverse() Permutation {
	inv := make(Permutation, len(p))
	for dst, src := range p {
		inv[src] = dst
	}
	return inv
}

// Floats returns xs rearranged by p: out[i] = xs[p[i]].
func (p Permutation) Floats(xs []float64) []float64 {
	out := make([]float64, len(p))
	for i, src := range p {
		out[i] = xs[src]
	}
	return out
}

// Strings returns xs rearranged by p.
func (p Permutation) Strings(xs []string) []string {
	out := make([]string, len(p))
	for i, src := range p {
		out[i] = xs[src]
	}
	return out
}

// Ints returns xs rearranged by p.
func (p Permutation) Ints(xs []int) []int {
	out := make([]int, len(p))
	for i, src := range p {
		out[i] = xs[src]
	}
	return out
}

// Studies returns xs rearranged by p.
func (p Permutation) Studies(xs []Study) []Study {
	out := make([]Study, len(p))
	for i, src := range p {
		out[i] = xs[src]
	}
	return out
}

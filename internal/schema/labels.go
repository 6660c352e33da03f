package schema

import "slices"

// Sorted returns a sorted copy of ls without duplicates.
func Sorted(ls []Label) []Label {
	out := slices.Clone(ls)
	slices.Sort(out)
	return slices.Compact(out)
}

// Union returns the sorted union of the given sets.
func Union(sets ...[]Label) []Label {
	var out []Label
	for _, s := range sets {
		out = append(out, s...)
	}
	return Sorted(out)
}

// Intersect returns the sorted intersection of a and b.
func Intersect(a, b []Label) []Label {
	var out []Label
	for _, l := range Sorted(a) {
		if slices.Contains(b, l) {
			out = append(out, l)
		}
	}
	return out
}

// StripMeta returns ls without meta labels, sorted.
func StripMeta(ls []Label) []Label {
	var out []Label
	for _, l := range ls {
		if !IsMeta(l) {
			out = append(out, l)
		}
	}
	return Sorted(out)
}

// SameSet reports whether a and b hold the same labels.
func SameSet(a, b []Label) bool {
	return slices.Equal(Sorted(a), Sorted(b))
}

// Subset reports whether every label of a is in b.
func Subset(a, b []Label) bool {
	for _, l := range a {
		if !slices.Contains(b, l) {
			return false
		}
	}
	return true
}

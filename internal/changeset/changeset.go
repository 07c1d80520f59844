// Package changeset computes the difference between an authoritative list of
// items and a locally cached one.
package changeset

// Diff is the result of comparing a reference sequence against a current one.
type Diff[T any] struct {
	// ToAdd holds reference items with no counterpart in current.
	ToAdd []T
	// ToUpdate holds reference items that also exist in current.
	// The reference value always wins.
	ToUpdate []T
	// Previous[i] is the current counterpart of ToUpdate[i].
	Previous []T
	// ToRemove holds current items with no counterpart in reference.
	ToRemove []T
}

// Empty reports whether the diff contains no additions and no removals.
// Updates are ignored since they are reported for every matching pair.
func (d Diff[T]) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Compute diffs reference against current, matching items by key.
//
// ToAdd and ToUpdate follow the order of reference, ToRemove follows the order
// of current. If reference contains the same key twice only the first item is
// used. Every current item whose key is missing from reference is removed,
// so repeated keys in current are all reported.
func Compute[T any, K comparable](reference, current []T, key func(T) K) Diff[T] {
	var d Diff[T]

	byKey := make(map[K]T, len(current))
	for _, c := range current {
		k := key(c)
		if _, ok := byKey[k]; !ok {
			byKey[k] = c
		}
	}

	seen := make(map[K]struct{}, len(reference))
	for _, r := range reference {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		if prev, ok := byKey[k]; ok {
			d.ToUpdate = append(d.ToUpdate, r)
			d.Previous = append(d.Previous, prev)
		} else {
			d.ToAdd = append(d.ToAdd, r)
		}
	}

	for _, c := range current {
		if _, ok := seen[key(c)]; !ok {
			d.ToRemove = append(d.ToRemove, c)
		}
	}

	return d
}

// Members diffs two sets of plain comparable values, such as voter ids.
func Members[K comparable](reference, current []K) (toAdd, toRemove []K) {
	d := Compute(reference, current, func(k K) K { return k })
	return d.ToAdd, d.ToRemove
}

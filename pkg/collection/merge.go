package collection

// Merge appends to existing every incoming item that is not already present
// and that keep accepts (a nil keep accepts everything). Duplicates inside
// incoming are collapsed to their first occurrence.
//
// updated is a new slice: existing followed by delta, in arrival order.
// Neither argument is modified.
func Merge[T comparable](existing, incoming []T, keep func(T) bool) (updated, delta []T) {
	seen := make(map[T]struct{}, len(existing)+len(incoming))
	for _, v := range existing {
		seen[v] = struct{}{}
	}

	updated = make([]T, len(existing), len(existing)+len(incoming))
	copy(updated, existing)
	return absorb(seen, updated, incoming, keep)
}

// absorb appends to dst the incoming items keep accepts and seen lacks,
// recording them in seen. Set.Merge runs the same step on its own state.
func absorb[T comparable](seen map[T]struct{}, dst, incoming []T, keep func(T) bool) (updated, delta []T) {
	for _, v := range incoming {
		if keep != nil && !keep(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
		delta = append(delta, v)
	}
	return dst, delta
}

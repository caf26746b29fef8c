package utils

// SliceSelect maps every element of x through f, preserving order.
func SliceSelect[T any, K any](x []T, f func(x T) K) []K {
	selected := make([]K, 0, len(x))
	for _, item := range x {
		selected = append(selected, f(item))
	}
	return selected
}

// SliceWhere returns the elements of x for which f holds, preserving order. The result is never nil.
func SliceWhere[T any](x []T, f func(x T) bool) []T {
	matched := []T{}
	for _, item := range x {
		if f(item) {
			matched = append(matched, item)
		}
	}
	return matched
}

package index

// lowerBound returns the first index i such that cmp(keys[i], target) >= 0.
func lowerBound(keys [][]byte, target []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// exactIndex returns the index of target in keys, or -1 if absent.
func exactIndex(keys [][]byte, target []byte, cmp func(a, b []byte) int) int {
	i := lowerBound(keys, target, cmp)
	if i < len(keys) && cmp(keys[i], target) == 0 {
		return i
	}
	return -1
}

func insertAt[T any](slice []T, i int, elem T) []T {
	var zero T
	slice = append(slice, zero)
	copy(slice[i+1:], slice[i:])
	slice[i] = elem
	return slice
}

func removeAt[T any](slice []T, i int) []T {
	return append(slice[:i], slice[i+1:]...)
}

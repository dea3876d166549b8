package utils

// CopyAddMap returns a new map holding all entries of src plus the new entry.
// The source map is never mutated so a previously published snapshot stays valid.
func CopyAddMap[K comparable, V any](src map[K]V, newKey K, newValue V) map[K]V {
	newMap := make(map[K]V, len(src)+1)
	for k, v := range src {
		newMap[k] = v
	}
	newMap[newKey] = newValue
	return newMap
}

// CopyDelMap returns a new map holding all entries of src except delKey.
func CopyDelMap[K comparable, V any](src map[K]V, delKey K) map[K]V {
	newMap := make(map[K]V, len(src))
	for k, v := range src {
		if k == delKey {
			continue
		}
		newMap[k] = v
	}
	return newMap
}

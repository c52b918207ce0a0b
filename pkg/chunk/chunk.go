// Package chunk splits ordered sequences into provider sized batches.
package chunk

// Split partitions items into consecutive chunks of at most size elements,
// preserving order. Input that already fits (including a non-positive size)
// yields a single chunk; empty input yields no chunks.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}

	return chunks
}

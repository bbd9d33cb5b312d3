package scoring

// SplitBatches splits turns into contiguous batches of at most size
// elements, preserving order within and across batches. size < 1 is
// treated as 1.
func SplitBatches(turns []Turn, size int) [][]Turn {
	if size < 1 {
		size = 1
	}
	var batches [][]Turn
	for start := 0; start < len(turns); start += size {
		end := start + size
		if end > len(turns) {
			end = len(turns)
		}
		batches = append(batches, turns[start:end])
	}
	return batches
}

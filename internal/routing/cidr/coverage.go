package cidr

// FilterResult holds the blocks kept by Filter and the address counts behind the coverage ratio.
type FilterResult struct {
	Blocks  []Block
	Total   uint64 // addresses in every input block
	Covered uint64 // addresses in kept blocks
}

// Coverage returns Covered/Total, or 0 when there were no addresses.
func (r FilterResult) Coverage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Covered) / float64(r.Total)
}

// Filter drops blocks smaller than minSize. A minSize of 0 or 1 keeps everything.
func Filter(blocks []Block, minSize uint64) FilterResult {
	result := FilterResult{Blocks: make([]Block, 0, len(blocks))}

	for _, b := range blocks {
		size := b.Size()
		result.Total += size
		if size >= minSize {
			result.Blocks = append(result.Blocks, b)
			result.Covered += size
		}
	}

	return result
}

// Compute runs the whole pipeline: aggregate, split, then filter.
func Compute(ranges []AddressRange, minSize uint64) (FilterResult, error) {
	merged, err := Aggregate(ranges)
	if err != nil {
		return FilterResult{}, err
	}
	return Filter(SplitAll(merged), minSize), nil
}

package cidr

import (
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// Aggregate merges exactly adjacent ranges into maximal contiguous runs.
// Input must be sorted ascending by start; an overlap (or a range starting
// before the previous one ends) fails with a MalformedInput error.
func Aggregate(ranges []AddressRange) ([]AddressRange, error) {
	merged := make([]AddressRange, 0, len(ranges))

	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}

		if i == 0 {
			merged = append(merged, r)
			continue
		}

		last := &merged[len(merged)-1]
		switch {
		case uint64(r.Start) < last.End():
			return nil, &types.RouteError{
				Kind:        types.ErrMalformedInput,
				Message:     "address ranges overlap or are not sorted",
				Destination: r.String(),
			}
		case uint64(r.Start) == last.End():
			last.Length += r.Length
		default:
			merged = append(merged, r)
		}
	}

	return merged, nil
}

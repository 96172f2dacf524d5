package cidr

import (
	"math/bits"
)

// Split decomposes one range into the minimal ordered set of aligned blocks
// covering exactly [Start, Start+Length).
//
// Each step emits the largest block that is both aligned at the current
// start and no larger than what remains.
func Split(r AddressRange) []Block {
	var blocks []Block

	start := uint64(r.Start)
	remaining := r.Length
	if start+remaining > AddressSpace {
		remaining = AddressSpace - start
	}

	for remaining > 0 {
		maxByAlignment := AddressSpace
		if start != 0 {
			maxByAlignment = start & -start
		}
		maxBySize := uint64(1) << (63 - bits.LeadingZeros64(remaining))

		size := min(maxByAlignment, maxBySize)
		blocks = append(blocks, Block{
			Network:   uint32(start),
			PrefixLen: uint8(32 - bits.TrailingZeros64(size)),
		})

		start += size
		remaining -= size
	}

	return blocks
}

// SplitAll splits every range in order.
func SplitAll(ranges []AddressRange) []Block {
	var blocks []Block
	for _, r := range ranges {
		blocks = append(blocks, Split(r)...)
	}
	return blocks
}

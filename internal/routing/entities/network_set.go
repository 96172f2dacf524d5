package entities

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/wesleywu/lucky-route/internal/routing/cidr"
)

// NetworkSet is an insertion-ordered set of blocks keyed by network address
type NetworkSet struct {
	index  map[uint64]int // maps network hash to position in blocks
	blocks []cidr.Block
}

// NewNetworkSet creates a new NetworkSet
func NewNetworkSet() *NetworkSet {
	return &NetworkSet{
		index: make(map[uint64]int),
	}
}

// NewDesiredRouteSet builds the desired route set: blocks deduplicated by
// network, first occurrence wins, original order kept.
func NewDesiredRouteSet(blocks []cidr.Block) *NetworkSet {
	set := NewNetworkSet()
	for _, b := range blocks {
		set.Add(b)
	}
	return set
}

// Add adds a block to the set. It returns false if the network is already present.
func (ns *NetworkSet) Add(b cidr.Block) bool {
	hash := hashNetwork(b.Network)
	if _, exists := ns.index[hash]; exists {
		return false
	}

	ns.index[hash] = len(ns.blocks)
	ns.blocks = append(ns.blocks, b)
	return true
}

// Size returns the number of networks in the set
func (ns *NetworkSet) Size() int {
	return len(ns.blocks)
}

// Blocks returns a copy of the blocks in insertion order
func (ns *NetworkSet) Blocks() []cidr.Block {
	blocks := make([]cidr.Block, len(ns.blocks))
	copy(blocks, ns.blocks)
	return blocks
}

// hashNetwork hashes only the network address, the set's identity key
func hashNetwork(network uint32) uint64 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], network)
	return xxhash.Sum64(buf[:])
}

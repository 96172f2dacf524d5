// Package cidr turns IPv4 address ranges into aligned CIDR blocks.
package cidr

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// AddressSpace is the number of addresses in IPv4.
const AddressSpace uint64 = 1 << 32

// AddressRange is a contiguous run of addresses starting at Start.
// Length is kept in 64 bits so a run may reach the very end of the space.
type AddressRange struct {
	Start  uint32
	Length uint64
}

// End returns the first address past the range.
func (r AddressRange) End() uint64 {
	return uint64(r.Start) + r.Length
}

// Validate checks that the range is non-empty and fits in the address space.
func (r AddressRange) Validate() error {
	if r.Length == 0 {
		return types.Errorf(types.ErrMalformedInput, "empty address range at %s", Uint32ToAddr(r.Start))
	}
	if r.End() > AddressSpace {
		return types.Errorf(types.ErrMalformedInput, "address range at %s overflows the IPv4 space", Uint32ToAddr(r.Start))
	}
	return nil
}

func (r AddressRange) String() string {
	return fmt.Sprintf("%s+%d", Uint32ToAddr(r.Start), r.Length)
}

// Block is a CIDR block. Network is aligned to PrefixLen.
type Block struct {
	Network   uint32
	PrefixLen uint8
}

// Size returns the number of addresses in the block.
func (b Block) Size() uint64 {
	return uint64(1) << (32 - uint64(b.PrefixLen))
}

// End returns the first address past the block.
func (b Block) End() uint64 {
	return uint64(b.Network) + b.Size()
}

// Valid reports whether the prefix length is in range and the network aligned.
func (b Block) Valid() bool {
	return b.PrefixLen <= 32 && uint64(b.Network)%b.Size() == 0
}

// Addr returns the network address.
func (b Block) Addr() netip.Addr {
	return Uint32ToAddr(b.Network)
}

// Prefix returns the block as a netip.Prefix.
func (b Block) Prefix() netip.Prefix {
	return netip.PrefixFrom(b.Addr(), int(b.PrefixLen))
}

func (b Block) String() string {
	return b.Prefix().String()
}

// FromPrefix converts an IPv4 prefix into a Block. The prefix must be aligned.
func FromPrefix(p netip.Prefix) (Block, error) {
	if !p.IsValid() || !p.Addr().Is4() {
		return Block{}, types.Errorf(types.ErrMalformedInput, "not an IPv4 prefix: %s", p)
	}
	b := Block{Network: AddrToUint32(p.Addr()), PrefixLen: uint8(p.Bits())}
	if !b.Valid() {
		return Block{}, types.Errorf(types.ErrMalformedInput, "network %s is not aligned to /%d", p.Addr(), p.Bits())
	}
	return b, nil
}

// ParseBlock parses "a.b.c.d/n". A bare address is treated as /32.
func ParseBlock(s string) (Block, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		s += "/32"
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Block{}, &types.RouteError{Kind: types.ErrMalformedInput, Message: "invalid CIDR", Destination: s, Cause: err}
	}
	return FromPrefix(p)
}

// AddrToUint32 converts an IPv4 address to its numeric form.
func AddrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// Uint32ToAddr converts a numeric IPv4 address into netip.Addr.
func Uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

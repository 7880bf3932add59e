package ipam

import (
	"fmt"
	"net/netip"

	"github.com/as36198/linkd/internal/script"
)

var (
	// ErrFamilyMismatch is returned when the requested address family
	// does not match the block's family
	ErrFamilyMismatch = script.NewCancel("address family mismatch")

	// ErrPoolExhausted is returned when no available range in the
	// block can fit the requested subnet
	ErrPoolExhausted = script.NewCancel("address pool exhausted")

	// ErrBlockNotFound is returned when a supplied block reference
	// does not resolve to exactly one block of the required family
	ErrBlockNotFound = script.NewCancel("address block not found")
)

// AllocatePair reserves the first available point-to-point subnet of
// the requested prefix length (31 for IPv4, 127 for IPv6) and returns
// its two addresses: the primary (first) and the secondary (second,
// peer). Both are marked consumed in the pool.
//
// The scan walks the available prefixes in ascending address order and
// carves the subnet from the start of the first prefix large enough to
// hold it, so allocation is deterministic for a given pool state.
func AllocatePair(pool *Pool, family, bits int) (netip.Addr, netip.Addr, error) {
	if pool.family != family {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: requested family %d against family %d block",
			ErrFamilyMismatch, family, pool.family)
	}

	addrLen := 32
	if family == 6 {
		addrLen = 128
	}
	if bits < 0 || bits > addrLen {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: invalid prefix length /%d for family %d",
			ErrFamilyMismatch, bits, family)
	}

	for i, prefix := range pool.prefixes {
		if prefix.Bits() > bits {
			continue // too small to hold the requested subnet
		}

		sub, remainder := carve(prefix, bits)
		pool.removeAt(i)
		for _, r := range remainder {
			pool.insert(r)
		}

		primary := sub.Addr()
		return primary, primary.Next(), nil
	}

	return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: no free /%d subnet", ErrPoolExhausted, bits)
}

// carve splits one subnet of the requested length off the start of a
// larger (or equal) prefix and returns it together with the prefixes
// covering the remainder.
func carve(prefix netip.Prefix, bits int) (netip.Prefix, []netip.Prefix) {
	if prefix.Bits() == bits {
		return prefix, nil
	}

	addrLen := prefix.Addr().BitLen()
	start := addrToUint128(prefix.Addr())
	family := 6
	if prefix.Addr().Is4() {
		family = 4
	}

	// Halve repeatedly, keeping the upper sibling of each split
	var remainder []netip.Prefix
	for b := prefix.Bits(); b < bits; b++ {
		sibling := start.addPow2(uint(addrLen - b - 1))
		remainder = append(remainder, netip.PrefixFrom(uint128ToAddr(sibling, family), b+1))
	}

	return netip.PrefixFrom(prefix.Addr(), bits), remainder
}

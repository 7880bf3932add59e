package ipam

import (
	"fmt"
	"net/netip"
	"sort"
)

// Pool is the consumable set of available addresses of one address
// block, held as a sorted list of disjoint aligned prefixes. The set
// shrinks as pairs are allocated from it; consumption is visible to
// every later allocation against the same Pool value.
type Pool struct {
	family   int
	prefixes []netip.Prefix
}

// NewPool creates an empty pool for the given address family
func NewPool(family int) *Pool {
	return &Pool{family: family}
}

// Family returns the pool's address family (4 or 6)
func (p *Pool) Family() int {
	return p.family
}

// Prefixes returns the available prefixes in ascending address order
func (p *Pool) Prefixes() []netip.Prefix {
	return p.prefixes
}

// Empty reports whether no addresses remain available
func (p *Pool) Empty() bool {
	return len(p.prefixes) == 0
}

// PoolFromBlock builds the available set of a block: the block's CIDR
// minus every address already recorded inside it.
func PoolFromBlock(cidr string, used []netip.Addr) (*Pool, error) {
	block, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("parsing block CIDR: %w", err)
	}
	block = block.Masked()

	family := 6
	if block.Addr().Is4() {
		family = 4
	}

	// Consumed addresses inside the block, sorted and deduplicated
	var consumed []uint128
	for _, a := range used {
		if a.Is4() != block.Addr().Is4() {
			continue
		}
		if !block.Contains(a) {
			continue
		}
		consumed = append(consumed, addrToUint128(a))
	}
	sort.Slice(consumed, func(i, j int) bool { return consumed[i].cmp(consumed[j]) < 0 })

	addrLen := block.Addr().BitLen()
	lo := addrToUint128(block.Addr())
	hi := lo
	if span := addrLen - block.Bits(); span > 0 {
		hi = lo.addPow2(uint(span)).sub(uint128{0, 1})
	}

	pool := NewPool(family)
	cursor := lo
	for _, c := range consumed {
		if c.cmp(cursor) < 0 {
			continue // duplicate
		}
		if c.cmp(cursor) > 0 {
			pool.addRange(cursor, c.sub(uint128{0, 1}), addrLen)
		}
		cursor = c.addPow2(0)
		if cursor.isZero() || cursor.cmp(hi) > 0 {
			return pool.normalize(), nil
		}
	}
	pool.addRange(cursor, hi, addrLen)

	return pool.normalize(), nil
}

// addRange appends the aligned prefix decomposition of [lo, hi]
func (p *Pool) addRange(lo, hi uint128, addrLen int) {
	for lo.cmp(hi) <= 0 {
		// Largest aligned block starting at lo
		size := lo.trailingZeros()
		if size > addrLen {
			size = addrLen
		}

		// Largest block that still fits in the remaining range
		diff := hi.sub(lo)
		if fit := diff.addPow2(0).bitLen() - 1; !diff.addPow2(0).isZero() && fit < size {
			size = fit
		}

		p.prefixes = append(p.prefixes, netip.PrefixFrom(uint128ToAddr(lo, p.family), addrLen-size))

		next := lo.addPow2(uint(size))
		if next.cmp(lo) <= 0 || next.cmp(hi) > 0 {
			return
		}
		lo = next
	}
}

// normalize sorts the prefix list in ascending address order
func (p *Pool) normalize() *Pool {
	sort.Slice(p.prefixes, func(i, j int) bool {
		if c := p.prefixes[i].Addr().Compare(p.prefixes[j].Addr()); c != 0 {
			return c < 0
		}
		return p.prefixes[i].Bits() < p.prefixes[j].Bits()
	})
	return p
}

// insert adds a prefix keeping the list sorted
func (p *Pool) insert(prefix netip.Prefix) {
	p.prefixes = append(p.prefixes, prefix)
	p.normalize()
}

// removeAt removes the i-th prefix
func (p *Pool) removeAt(i int) {
	p.prefixes = append(p.prefixes[:i], p.prefixes[i+1:]...)
}

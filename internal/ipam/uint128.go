package ipam

import (
	"math/bits"
	"net/netip"
)

// uint128 is an unsigned 128-bit integer used for address arithmetic.
// IPv4 addresses occupy the low 32 bits.
type uint128 struct {
	hi, lo uint64
}

func addrToUint128(a netip.Addr) uint128 {
	b := a.As16()
	var u uint128
	for i := 0; i < 8; i++ {
		u.hi = u.hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		u.lo = u.lo<<8 | uint64(b[i])
	}
	return u
}

func uint128ToAddr(u uint128, family int) netip.Addr {
	var b [16]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(u.hi)
		u.hi >>= 8
	}
	for i := 15; i >= 8; i-- {
		b[i] = byte(u.lo)
		u.lo >>= 8
	}
	if family == 4 {
		var v4 [4]byte
		copy(v4[:], b[12:])
		return netip.AddrFrom4(v4)
	}
	return netip.AddrFrom16(b)
}

func (u uint128) cmp(v uint128) int {
	switch {
	case u.hi < v.hi:
		return -1
	case u.hi > v.hi:
		return 1
	case u.lo < v.lo:
		return -1
	case u.lo > v.lo:
		return 1
	}
	return 0
}

// addPow2 returns u + 2^s
func (u uint128) addPow2(s uint) uint128 {
	if s < 64 {
		lo, carry := bits.Add64(u.lo, 1<<s, 0)
		return uint128{u.hi + carry, lo}
	}
	return uint128{u.hi + 1<<(s-64), u.lo}
}

// sub returns u - v; the caller guarantees u >= v
func (u uint128) sub(v uint128) uint128 {
	lo, borrow := bits.Sub64(u.lo, v.lo, 0)
	hi, _ := bits.Sub64(u.hi, v.hi, borrow)
	return uint128{hi, lo}
}

func (u uint128) trailingZeros() int {
	if u.lo != 0 {
		return bits.TrailingZeros64(u.lo)
	}
	if u.hi != 0 {
		return 64 + bits.TrailingZeros64(u.hi)
	}
	return 128
}

func (u uint128) bitLen() int {
	if u.hi != 0 {
		return 64 + bits.Len64(u.hi)
	}
	return bits.Len64(u.lo)
}

func (u uint128) isZero() bool {
	return u.hi == 0 && u.lo == 0
}

package ipam

import (
	"errors"
	"net/netip"
	"testing"

	"pgregory.net/rapid"
)

func TestAllocatePair_IPv4(t *testing.T) {
	pool, err := PoolFromBlock("10.0.0.0/24", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	primary, secondary, err := AllocatePair(pool, 4, 31)
	if err != nil {
		t.Fatalf("AllocatePair failed: %v", err)
	}
	if primary.String() != "10.0.0.0" || secondary.String() != "10.0.0.1" {
		t.Errorf("Expected (10.0.0.0, 10.0.0.1), got (%s, %s)", primary, secondary)
	}

	primary, secondary, err = AllocatePair(pool, 4, 31)
	if err != nil {
		t.Fatalf("Second AllocatePair failed: %v", err)
	}
	if primary.String() != "10.0.0.2" || secondary.String() != "10.0.0.3" {
		t.Errorf("Expected (10.0.0.2, 10.0.0.3), got (%s, %s)", primary, secondary)
	}
}

func TestAllocatePair_IPv6(t *testing.T) {
	pool, err := PoolFromBlock("2001:db8::/64", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	primary, secondary, err := AllocatePair(pool, 6, 127)
	if err != nil {
		t.Fatalf("AllocatePair failed: %v", err)
	}
	if primary.String() != "2001:db8::" || secondary.String() != "2001:db8::1" {
		t.Errorf("Expected (2001:db8::, 2001:db8::1), got (%s, %s)", primary, secondary)
	}
}

func TestAllocatePair_SkipsFragments(t *testing.T) {
	// With 10.0.0.0 consumed the free /32 at 10.0.0.1 cannot hold a
	// /31; the first fitting subnet is 10.0.0.2/31
	pool, err := PoolFromBlock("10.0.0.0/24", []netip.Addr{mustAddr(t, "10.0.0.0")})
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	primary, _, err := AllocatePair(pool, 4, 31)
	if err != nil {
		t.Fatalf("AllocatePair failed: %v", err)
	}
	if primary.String() != "10.0.0.2" {
		t.Errorf("Expected 10.0.0.2, got %s", primary)
	}
}

func TestAllocatePair_FamilyMismatch(t *testing.T) {
	pool, err := PoolFromBlock("10.0.0.0/24", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	_, _, err = AllocatePair(pool, 6, 127)
	if !errors.Is(err, ErrFamilyMismatch) {
		t.Errorf("Expected ErrFamilyMismatch, got %v", err)
	}
}

func TestAllocatePair_InvalidBits(t *testing.T) {
	pool, err := PoolFromBlock("10.0.0.0/24", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	_, _, err = AllocatePair(pool, 4, 64)
	if !errors.Is(err, ErrFamilyMismatch) {
		t.Errorf("Expected ErrFamilyMismatch for /64 in IPv4, got %v", err)
	}
}

func TestAllocatePair_Exhausted(t *testing.T) {
	pool, err := PoolFromBlock("10.0.0.0/31", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	if _, _, err := AllocatePair(pool, 4, 31); err != nil {
		t.Fatalf("First AllocatePair failed: %v", err)
	}
	if !pool.Empty() {
		t.Error("Expected pool to be empty after allocating the whole block")
	}

	_, _, err = AllocatePair(pool, 4, 31)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Expected ErrPoolExhausted, got %v", err)
	}
}

// Repeated allocations against one pool never overlap each other or any
// consumed address, pair up as adjacent addresses, and come back in
// ascending order.
func TestAllocatePair_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		octets := rapid.SliceOfN(rapid.IntRange(0, 255), 0, 64).Draw(t, "used")

		seen := make(map[netip.Addr]bool)
		var used []netip.Addr
		for _, o := range octets {
			addr := netip.AddrFrom4([4]byte{10, 0, 0, byte(o)})
			used = append(used, addr)
			seen[addr] = true
		}

		pool, err := PoolFromBlock("10.0.0.0/24", used)
		if err != nil {
			t.Fatalf("PoolFromBlock failed: %v", err)
		}

		n := rapid.IntRange(1, 64).Draw(t, "allocations")
		var prev netip.Addr
		for i := 0; i < n; i++ {
			primary, secondary, err := AllocatePair(pool, 4, 31)
			if errors.Is(err, ErrPoolExhausted) {
				return
			}
			if err != nil {
				t.Fatalf("AllocatePair %d failed: %v", i, err)
			}

			if secondary != primary.Next() {
				t.Fatalf("Pair %d not adjacent: (%s, %s)", i, primary, secondary)
			}
			if prev.IsValid() && primary.Compare(prev) <= 0 {
				t.Fatalf("Allocation %d (%s) not above previous (%s)", i, primary, prev)
			}
			for _, addr := range []netip.Addr{primary, secondary} {
				if seen[addr] {
					t.Fatalf("Address %s allocated twice or already in use", addr)
				}
				seen[addr] = true
			}
			prev = primary
		}
	})
}

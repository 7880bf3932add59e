package ipam

import (
	"net/netip"
	"testing"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("Failed to parse address %q: %v", s, err)
	}
	return addr
}

func prefixStrings(pool *Pool) []string {
	var out []string
	for _, p := range pool.Prefixes() {
		out = append(out, p.String())
	}
	return out
}

func TestPoolFromBlock_EmptyBlock(t *testing.T) {
	pool, err := PoolFromBlock("10.0.0.0/24", nil)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	if pool.Family() != 4 {
		t.Errorf("Expected family 4, got %d", pool.Family())
	}
	got := prefixStrings(pool)
	if len(got) != 1 || got[0] != "10.0.0.0/24" {
		t.Errorf("Expected [10.0.0.0/24], got %v", got)
	}
}

func TestPoolFromBlock_Decomposition(t *testing.T) {
	// Consuming 10.0.0.3 leaves [.0-.2] and [.4-.7]
	pool, err := PoolFromBlock("10.0.0.0/29", []netip.Addr{mustAddr(t, "10.0.0.3")})
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	want := []string{"10.0.0.0/31", "10.0.0.2/32", "10.0.0.4/30"}
	got := prefixStrings(pool)
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Prefix %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPoolFromBlock_IgnoresOutsideAddresses(t *testing.T) {
	used := []netip.Addr{
		mustAddr(t, "192.168.1.1"), // outside the block
		mustAddr(t, "2001:db8::1"), // wrong family
	}
	pool, err := PoolFromBlock("10.0.0.0/24", used)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	got := prefixStrings(pool)
	if len(got) != 1 || got[0] != "10.0.0.0/24" {
		t.Errorf("Expected [10.0.0.0/24], got %v", got)
	}
}

func TestPoolFromBlock_DuplicateUsed(t *testing.T) {
	used := []netip.Addr{
		mustAddr(t, "10.0.0.0"),
		mustAddr(t, "10.0.0.0"),
		mustAddr(t, "10.0.0.1"),
	}
	pool, err := PoolFromBlock("10.0.0.0/31", used)
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	if !pool.Empty() {
		t.Errorf("Expected empty pool, got %v", prefixStrings(pool))
	}
}

func TestPoolFromBlock_IPv6(t *testing.T) {
	pool, err := PoolFromBlock("2001:db8::/64", []netip.Addr{mustAddr(t, "2001:db8::")})
	if err != nil {
		t.Fatalf("PoolFromBlock failed: %v", err)
	}

	if pool.Family() != 6 {
		t.Errorf("Expected family 6, got %d", pool.Family())
	}
	got := prefixStrings(pool)
	if len(got) == 0 || got[0] != "2001:db8::1/128" {
		t.Errorf("Expected first prefix 2001:db8::1/128, got %v", got)
	}
}

func TestPoolFromBlock_InvalidCIDR(t *testing.T) {
	if _, err := PoolFromBlock("not-a-cidr", nil); err == nil {
		t.Error("Expected error for invalid CIDR")
	}
}

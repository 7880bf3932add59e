package renumber

import (
	"errors"
	"testing"

	"github.com/as36198/linkd/internal/ipam"
	"github.com/as36198/linkd/internal/labels"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

func newTestTx(t *testing.T) *storage.Tx {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })

	return tx
}

type fixture struct {
	portA *model.Port
	portB *model.Port
}

// seedPair creates two devices linked port to port, both marked for
// renumbering with an l3ptp role and carrying one old address each,
// plus the replacement blocks.
func seedPair(t *testing.T, tx *storage.Tx) *fixture {
	t.Helper()

	site, err := tx.CreateSite("ams1")
	if err != nil {
		t.Fatalf("Failed to create site: %v", err)
	}

	renumberLabel, err := labels.GetOrCreate(tx, labels.Renumber)
	if err != nil {
		t.Fatalf("Failed to create renumber label: %v", err)
	}
	roleLabel, err := labels.GetOrCreate(tx, labels.L3PTP)
	if err != nil {
		t.Fatalf("Failed to create role label: %v", err)
	}

	ports := make([]*model.Port, 2)
	for i, name := range []string{"r1", "r2"} {
		device, err := tx.CreateDevice(name, site.ID)
		if err != nil {
			t.Fatalf("Failed to create device: %v", err)
		}
		port := &model.Port{DeviceID: device.ID, Name: "xe-0/0/0", Kind: model.PortKindPhysical, Mode: model.PortModeTrunk}
		if err := tx.CreatePort(port); err != nil {
			t.Fatalf("Failed to create port: %v", err)
		}
		for _, label := range []*model.Label{renumberLabel, roleLabel} {
			if err := tx.AddPortLabel(port.ID, label.ID); err != nil {
				t.Fatalf("Failed to label port: %v", err)
			}
		}
		ports[i] = port
	}
	if _, err := tx.CreateLink(ports[0].ID, ports[1].ID); err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	for i, addr := range []string{"192.0.2.0/31", "192.0.2.1/31"} {
		record := &model.AddressRecord{Address: addr, Family: 4, PortID: ports[i].ID}
		if err := tx.CreateAddress(record); err != nil {
			t.Fatalf("Failed to create old address: %v", err)
		}
	}

	if _, err := tx.CreateBlock("203.0.113.0/24", 4, ""); err != nil {
		t.Fatalf("Failed to create IPv4 block: %v", err)
	}
	if _, err := tx.CreateBlock("2001:db8::/64", 6, ""); err != nil {
		t.Fatalf("Failed to create IPv6 block: %v", err)
	}

	return &fixture{portA: ports[0], portB: ports[1]}
}

func generateParams() *Params {
	return &Params{
		BlockV4: BlockRef{CIDR: "203.0.113.0/24"},
		BlockV6: BlockRef{CIDR: "2001:db8::/64"},
	}
}

func TestBlockRefResolve(t *testing.T) {
	tx := newTestTx(t)
	block, err := tx.CreateBlock("203.0.113.0/24", 4, "")
	if err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}

	byCIDR, err := BlockRef{CIDR: "203.0.113.0/24"}.Resolve(tx, 4)
	if err != nil {
		t.Fatalf("Resolve by CIDR failed: %v", err)
	}
	if byCIDR.ID != block.ID {
		t.Errorf("Expected block %s, got %s", block.ID, byCIDR.ID)
	}

	byID, err := BlockRef{ID: block.ID}.Resolve(tx, 4)
	if err != nil {
		t.Fatalf("Resolve by ID failed: %v", err)
	}
	if byID.CIDR != "203.0.113.0/24" {
		t.Errorf("Expected CIDR 203.0.113.0/24, got %q", byID.CIDR)
	}

	if _, err := (BlockRef{CIDR: "203.0.113.0/24"}).Resolve(tx, 6); !errors.Is(err, ipam.ErrFamilyMismatch) {
		t.Errorf("Expected ErrFamilyMismatch, got %v", err)
	}
	if _, err := (BlockRef{CIDR: "198.51.100.0/24"}).Resolve(tx, 4); !errors.Is(err, ipam.ErrBlockNotFound) {
		t.Errorf("Expected ErrBlockNotFound, got %v", err)
	}
	if _, err := (BlockRef{}).Resolve(tx, 4); !errors.Is(err, ipam.ErrBlockNotFound) {
		t.Errorf("Expected ErrBlockNotFound for an empty reference, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	tx := newTestTx(t)
	fix := seedPair(t, tx)

	out, err := Generate(tx, generateParams())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// One entry per side, keyed by device
	if out["r1"]["xe-0/0/0"].Status != "renumbered" || out["r2"]["xe-0/0/0"].Status != "renumbered" {
		t.Fatalf("Expected both sides renumbered, got %+v", out)
	}

	// Each port now carries the old address plus the new pair
	for _, port := range []*model.Port{fix.portA, fix.portB} {
		addrs, err := tx.ListAddresses(&storage.AddressFilter{PortID: port.ID})
		if err != nil {
			t.Fatalf("ListAddresses failed: %v", err)
		}
		if len(addrs) != 3 {
			t.Errorf("Expected 3 addresses on %s, got %d", port.ID, len(addrs))
		}
	}

	// The two sides of the pair got adjacent primaries
	if _, err := tx.GetAddressByValue("203.0.113.0/31"); err != nil {
		t.Errorf("Expected 203.0.113.0/31 to be bound: %v", err)
	}
	if _, err := tx.GetAddressByValue("203.0.113.1/31"); err != nil {
		t.Errorf("Expected 203.0.113.1/31 to be bound: %v", err)
	}

	// Old addresses are marked, not deleted
	pruned, err := tx.ListAddresses(&storage.AddressFilter{Tag: labels.Prune})
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(pruned) != 2 {
		t.Errorf("Expected 2 addresses marked for removal, got %d", len(pruned))
	}

	// New addresses carry the fresh mark and role
	fresh, err := tx.ListAddresses(&storage.AddressFilter{Tag: labels.NewIP})
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(fresh) != 4 {
		t.Errorf("Expected 4 fresh addresses, got %d", len(fresh))
	}
	for _, addr := range fresh {
		if !labels.Has(addr.Tags, labels.L3PTP) {
			t.Errorf("Expected %s to carry the role label, got %v", addr.Address, addr.Tags)
		}
	}

	// The renumber mark is cleared from both ports
	marked, err := tx.ListPorts(&model.PortFilter{Tag: labels.Renumber})
	if err != nil {
		t.Fatalf("ListPorts failed: %v", err)
	}
	if len(marked) != 0 {
		t.Errorf("Expected no ports still marked, got %d", len(marked))
	}
}

func TestGenerate_SecondRunFindsNothing(t *testing.T) {
	tx := newTestTx(t)
	seedPair(t, tx)

	if _, err := Generate(tx, generateParams()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err := Generate(tx, generateParams())
	if !errors.Is(err, ErrNoEligiblePairs) {
		t.Errorf("Expected ErrNoEligiblePairs, got %v", err)
	}
}

func TestGenerate_NoMarkedPorts(t *testing.T) {
	tx := newTestTx(t)

	if _, err := tx.CreateBlock("203.0.113.0/24", 4, ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if _, err := tx.CreateBlock("2001:db8::/64", 6, ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}

	_, err := Generate(tx, generateParams())
	if !errors.Is(err, ErrNoEligiblePairs) {
		t.Errorf("Expected ErrNoEligiblePairs, got %v", err)
	}
	if !script.IsCancel(err) {
		t.Errorf("Expected a cancellation, got %v", err)
	}
}

func TestGenerate_SkipsPortsWithoutRole(t *testing.T) {
	tx := newTestTx(t)
	fix := seedPair(t, tx)

	// Strip the role from both sides; the mark alone is not enough
	role, err := tx.GetLabelByName(labels.L3PTP)
	if err != nil {
		t.Fatalf("GetLabelByName failed: %v", err)
	}
	for _, port := range []*model.Port{fix.portA, fix.portB} {
		if err := tx.RemovePortLabel(port.ID, role.ID); err != nil {
			t.Fatalf("RemovePortLabel failed: %v", err)
		}
	}

	_, err = Generate(tx, generateParams())
	if !errors.Is(err, ErrNoEligiblePairs) {
		t.Errorf("Expected ErrNoEligiblePairs, got %v", err)
	}
}

func TestGenerate_SkipsUnlinkedPorts(t *testing.T) {
	tx := newTestTx(t)

	site, err := tx.CreateSite("ams1")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	device, err := tx.CreateDevice("r1", site.ID)
	if err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	port := &model.Port{DeviceID: device.ID, Name: "xe-0/0/0", Kind: model.PortKindPhysical, Mode: model.PortModeTrunk}
	if err := tx.CreatePort(port); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}
	for _, name := range []string{labels.Renumber, labels.L3PTP} {
		label, err := labels.GetOrCreate(tx, name)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if err := tx.AddPortLabel(port.ID, label.ID); err != nil {
			t.Fatalf("AddPortLabel failed: %v", err)
		}
	}
	if _, err := tx.CreateBlock("203.0.113.0/24", 4, ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if _, err := tx.CreateBlock("2001:db8::/64", 6, ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}

	_, err = Generate(tx, generateParams())
	if !errors.Is(err, ErrNoEligiblePairs) {
		t.Errorf("Expected ErrNoEligiblePairs, got %v", err)
	}
}

func TestPrune(t *testing.T) {
	tx := newTestTx(t)
	fix := seedPair(t, tx)

	if _, err := Generate(tx, generateParams()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out, err := Prune(tx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("Expected a prune report")
	}

	// Old addresses are gone, new pairs remain
	for _, old := range []string{"192.0.2.0/31", "192.0.2.1/31"} {
		if _, err := tx.GetAddressByValue(old); !errors.Is(err, storage.ErrAddressNotFound) {
			t.Errorf("Expected %s to be deleted, got %v", old, err)
		}
	}
	for _, port := range []*model.Port{fix.portA, fix.portB} {
		addrs, err := tx.ListAddresses(&storage.AddressFilter{PortID: port.ID})
		if err != nil {
			t.Fatalf("ListAddresses failed: %v", err)
		}
		if len(addrs) != 2 {
			t.Errorf("Expected 2 addresses after prune, got %d", len(addrs))
		}
	}

	// The fresh mark is cleared everywhere
	fresh, err := tx.ListAddresses(&storage.AddressFilter{Tag: labels.NewIP})
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("Expected no addresses still marked fresh, got %d", len(fresh))
	}

	// A second prune is a no-op
	out, err = Prune(tx)
	if err != nil {
		t.Fatalf("Second Prune failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected an empty report on the second prune, got %+v", out)
	}
}

func TestPrune_EmptyStore(t *testing.T) {
	tx := newTestTx(t)

	out, err := Prune(tx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected an empty report, got %+v", out)
	}
}

package snmp

import (
	"testing"

	"github.com/as36198/linkd/internal/model"
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

func TestSeedPorts(t *testing.T) {
	tx := newTestTx(t)

	site, err := tx.CreateSite("ams1")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	device, err := tx.CreateDevice("r1", site.ID)
	if err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	existing := &model.Port{DeviceID: device.ID, Name: "xe-0/0/0", Kind: model.PortKindPhysical, Mode: model.PortModeTrunk}
	if err := tx.CreatePort(existing); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}

	out, err := SeedPorts(tx, device, []string{"xe-0/0/0", "xe-0/0/1", "dum10"})
	if err != nil {
		t.Fatalf("SeedPorts failed: %v", err)
	}

	if out["r1"]["xe-0/0/0"].Status != "found" {
		t.Errorf("Expected xe-0/0/0 to be found, got %q", out["r1"]["xe-0/0/0"].Status)
	}
	for _, name := range []string{"xe-0/0/1", "dum10"} {
		if out["r1"][name].Status != "created" {
			t.Errorf("Expected %s to be created, got %q", name, out["r1"][name].Status)
		}
		port, err := tx.GetPortByName(device.ID, name)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", name, err)
		}
		if port.Kind != model.PortKindPhysical || port.Mode != model.PortModeTrunk {
			t.Errorf("Unexpected port %s: %+v", name, port)
		}
	}

	// Re-running discovery changes nothing
	out, err = SeedPorts(tx, device, []string{"xe-0/0/0", "xe-0/0/1", "dum10"})
	if err != nil {
		t.Fatalf("Second SeedPorts failed: %v", err)
	}
	for name, entry := range out["r1"] {
		if entry.Status != "found" {
			t.Errorf("Expected %s to be found on the second run, got %q", name, entry.Status)
		}
	}
}

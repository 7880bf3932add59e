package script

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/as36198/linkd/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestIsCancel(t *testing.T) {
	cancel := NewCancel("nope")

	if !IsCancel(cancel) {
		t.Error("Expected IsCancel for a plain cancellation")
	}
	if !IsCancel(fmt.Errorf("context: %w", cancel)) {
		t.Error("Expected IsCancel for a wrapped cancellation")
	}
	if !IsCancel(Cancelf("port %s busy", "xe-0")) {
		t.Error("Expected IsCancel for Cancelf")
	}
	if IsCancel(errors.New("boom")) {
		t.Error("Expected plain errors not to be cancellations")
	}
	if IsCancel(nil) {
		t.Error("Expected nil not to be a cancellation")
	}
}

func TestRun_Cancel(t *testing.T) {
	store := newTestStore(t)

	result, err := Run(store, true, func(tx *storage.Tx) (Output, error) {
		if _, err := tx.CreateSite("ams1"); err != nil {
			return nil, err
		}
		return nil, NewCancel("validation failed")
	})
	if err != nil {
		t.Fatalf("Expected cancellation to yield a result, got error: %v", err)
	}
	if result.Result {
		t.Error("Expected result=false for a cancelled operation")
	}
	if result.Comment != "validation failed" {
		t.Errorf("Expected the cancellation message as comment, got %q", result.Comment)
	}

	// The site created before the cancellation must be gone
	assertNoSite(t, store, "ams1")
}

func TestRun_Fault(t *testing.T) {
	store := newTestStore(t)

	boom := errors.New("disk on fire")
	result, err := Run(store, true, func(tx *storage.Tx) (Output, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the fault to propagate, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result on fault, got %+v", result)
	}
}

func TestRun_DryRun(t *testing.T) {
	store := newTestStore(t)

	result, err := Run(store, false, func(tx *storage.Tx) (Output, error) {
		if _, err := tx.CreateSite("ams1"); err != nil {
			return nil, err
		}
		out := make(Output)
		out.Add("r1", "xe-0", Entry{Status: "created"})
		return out, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Result {
		t.Error("Expected result=true for a successful dry run")
	}
	if result.Comment != CommentRolledBack {
		t.Errorf("Expected comment %q, got %q", CommentRolledBack, result.Comment)
	}
	if result.Out["r1"]["xe-0"].Status != "created" {
		t.Error("Expected the dry run to keep its report")
	}

	assertNoSite(t, store, "ams1")
}

func TestRun_Commit(t *testing.T) {
	store := newTestStore(t)

	result, err := Run(store, true, func(tx *storage.Tx) (Output, error) {
		_, err := tx.CreateSite("ams1")
		return nil, err
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Comment != CommentCommitted {
		t.Errorf("Expected comment %q, got %q", CommentCommitted, result.Comment)
	}

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.GetSiteByName("ams1"); err != nil {
		t.Errorf("Expected the committed site to persist, got %v", err)
	}
}

func assertNoSite(t *testing.T, store *storage.Store, name string) {
	t.Helper()

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.GetSiteByName(name); !errors.Is(err, storage.ErrSiteNotFound) {
		t.Errorf("Expected site %q to be rolled back, got %v", name, err)
	}
}

func TestOutput_Add(t *testing.T) {
	out := make(Output)

	out.Add("r1", "xe-0", Entry{Status: "created", Address: []string{"192.0.2.0/31"}})
	out.Add("r1", "xe-0", Entry{Tags: []string{"l3ptp"}, Address: []string{"2001:db8::/127"}})

	entry := out["r1"]["xe-0"]
	if entry.Status != "created" {
		t.Errorf("Expected merged status created, got %q", entry.Status)
	}
	if len(entry.Address) != 2 {
		t.Errorf("Expected 2 merged addresses, got %v", entry.Address)
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != "l3ptp" {
		t.Errorf("Expected merged tags [l3ptp], got %v", entry.Tags)
	}

	// A later status overwrites
	out.Add("r1", "xe-0", Entry{Status: "updated"})
	if out["r1"]["xe-0"].Status != "updated" {
		t.Errorf("Expected status updated, got %q", out["r1"]["xe-0"].Status)
	}
}

func TestResult_YAML(t *testing.T) {
	out := make(Output)
	out.Add("r1", "xe-0", Entry{Status: "created"})

	result := &Result{Result: true, Comment: CommentCommitted, Out: out}
	text, err := result.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	for _, want := range []string{"result: true", "comment: changes committed", "status: created"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected YAML to contain %q, got:\n%s", want, text)
		}
	}
}

package report

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/as36198/linkd/internal/script"
)

func TestWriteXLSX(t *testing.T) {
	out := make(script.Output)
	out.Add("r2", "xe-0/0/0", script.Entry{
		Status:  "renumbered",
		Tags:    []string{"l3ptp", "new_ip"},
		Address: []string{"203.0.113.1/31", "2001:db8::1/127"},
	})
	out.Add("r1", "xe-0/0/0", script.Entry{
		Status:      "renumbered",
		Address:     []string{"203.0.113.0/31"},
		Description: "pending removal: 192.0.2.0/31",
	})
	result := &script.Result{Result: true, Comment: script.CommentCommitted, Out: out}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteXLSX(result, path); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen report: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected a header and 2 rows, got %d", len(rows))
	}

	if rows[0][0] != "Device" || rows[0][5] != "Description" {
		t.Errorf("Unexpected header: %v", rows[0])
	}

	// Rows come sorted by device
	if rows[1][0] != "r1" || rows[2][0] != "r2" {
		t.Errorf("Expected rows sorted by device, got %v then %v", rows[1][0], rows[2][0])
	}
	if rows[1][5] != "pending removal: 192.0.2.0/31" {
		t.Errorf("Unexpected description cell: %q", rows[1][5])
	}
	if rows[2][3] != "l3ptp, new_ip" {
		t.Errorf("Unexpected tags cell: %q", rows[2][3])
	}
}

func TestWriteXLSX_EmptyResult(t *testing.T) {
	result := &script.Result{Result: true, Comment: script.CommentRolledBack, Out: make(script.Output)}

	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteXLSX(result, path); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen report: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected only the header, got %d rows", len(rows))
	}
}

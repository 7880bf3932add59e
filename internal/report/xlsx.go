// Package report exports operation results as spreadsheets for
// operator review between the generate and prune phases.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/script"
)

const sheet = "Sheet1"

var header = []string{"Device", "Port", "Status", "Tags", "Addresses", "Description"}

// WriteXLSX renders the result's per-port entries as one spreadsheet
// row each, sorted by device and port name
func WriteXLSX(result *script.Result, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	row := 2
	for _, device := range sortedKeys(result.Out) {
		ports := result.Out[device]
		names := make([]string, 0, len(ports))
		for name := range ports {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			entry := ports[name]
			values := []any{
				device,
				name,
				entry.Status,
				strings.Join(entry.Tags, ", "),
				strings.Join(entry.Address, ", "),
				entry.Description,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			row++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	log.Info("Report written", "path", path, "rows", row-2)

	return nil
}

func sortedKeys(out script.Output) []string {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package validate

import (
	"fmt"
	"sort"

	"github.com/1F47E/fieldmap/pkg/models"
)

// Inventory compares the codes found in the field with what was planted
type Inventory struct {
	// group code names listed in the expected counts but never found
	MissingGroups []string
	// group code names found but not listed
	ExtraGroups []string
	// row numbers between the smallest and largest found that have no code
	MissingRows []int
	// row numbers seen on a number of codes other than two
	UnpairedRows map[int]int
}

// TakeInventory builds an inventory from canonical codes
func TakeInventory(canonical []*models.FieldItem, expected map[string]int) Inventory {
	inv := Inventory{UnpairedRows: map[int]int{}}

	found := map[string]bool{}
	rowCodes := map[int]int{}
	for _, item := range canonical {
		switch item.Kind {
		case models.KindGroupCode:
			found[item.Name] = true
		case models.KindRowCode:
			if n, err := item.RowNumber(); err == nil {
				rowCodes[n]++
			}
		}
	}

	for name := range expected {
		if !found[name] {
			inv.MissingGroups = append(inv.MissingGroups, name)
		}
	}
	for name := range found {
		if _, ok := expected[name]; !ok {
			inv.ExtraGroups = append(inv.ExtraGroups, name)
		}
	}
	sort.Strings(inv.MissingGroups)
	sort.Strings(inv.ExtraGroups)

	if len(rowCodes) > 0 {
		lo, hi := 0, 0
		first := true
		for n, count := range rowCodes {
			if first || n < lo {
				lo = n
			}
			if first || n > hi {
				hi = n
			}
			first = false
			if count != 2 {
				inv.UnpairedRows[n] = count
			}
		}
		for n := lo; n <= hi; n++ {
			if rowCodes[n] == 0 {
				inv.MissingRows = append(inv.MissingRows, n)
			}
		}
	}
	return inv
}

func (inv Inventory) String() string {
	return fmt.Sprintf("%d missing groups, %d extra groups, %d missing rows, %d unpaired rows",
		len(inv.MissingGroups), len(inv.ExtraGroups), len(inv.MissingRows), len(inv.UnpairedRows))
}

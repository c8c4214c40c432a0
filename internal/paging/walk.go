package paging

import "mazkernel/internal/hal"

// walkCreate descends from root to the leaf-level table for va, allocating
// and zeroing any missing intermediate table along the way (spec §4.3
// "page tables are allocated lazily, on first mapping"). It returns the
// leaf table's frame and the index within it that addresses va.
func walkCreate(root hal.PFN, va hal.VAddr) (hal.PFN, int, error) {
	table := root
	for level := 0; level < levels-1; level++ {
		idx := levelIndex(va, level)
		raw := pteAt(table, idx, entrySize)
		pa, flags := hal.DecodePTE(raw)
		if !flags.Has(hal.FlagPresent) {
			next, err := newTable()
			if err != nil {
				return 0, 0, err
			}
			setPTEAt(table, idx, entrySize, hal.EncodePTE(next.PAddr(), tableFlags))
			table = next
			continue
		}
		table = pa.PFN()
	}
	return table, levelIndex(va, levels-1), nil
}

// walkExisting is the read-only counterpart: it fails with ok=false the
// moment any intermediate table is missing, rather than creating one.
func walkExisting(root hal.PFN, va hal.VAddr) (hal.PFN, int, bool) {
	table := root
	for level := 0; level < levels-1; level++ {
		idx := levelIndex(va, level)
		raw := pteAt(table, idx, entrySize)
		pa, flags := hal.DecodePTE(raw)
		if !flags.Has(hal.FlagPresent) {
			return 0, 0, false
		}
		table = pa.PFN()
	}
	return table, levelIndex(va, levels-1), true
}

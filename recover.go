// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

// RecoveredRecord is one leaf-slot payload read from a page the
// catalog-driven walk never reached, along with the page it came from
// (supplement #7: "emitting one row per recovered record with its source
// page number, since provenance, not table identity, is all that
// survives for an orphaned page").
type RecoveredRecord struct {
	Page  uint32
	Tag   int
	Value []byte
}

// KnownPages returns the set of leaf page numbers reachable from the
// catalog tree and every table's primary, index, and long-value trees.
// It is an approximation: branch pages visited only transiently during
// descent are not recorded, since a branch page carries no row data of
// its own and so is uninteresting to a recovery scan.
func (f *File) KnownPages() (map[uint32]bool, error) {
	known := make(map[uint32]bool)
	roots := []uint32{f.header.CatalogRoot}
	if roots[0] == 0 {
		roots[0] = CatalogFDP
	}
	for _, t := range f.tables {
		roots = append(roots, t.def.FDP)
		for _, ix := range t.def.Indexes {
			roots = append(roots, ix.FDP)
		}
		if t.def.LongValueFDP != 0 {
			roots = append(roots, t.def.LongValueFDP)
		}
	}

	for _, root := range roots {
		if err := f.markTreeLeaves(root, known); err != nil {
			f.logger.Warnf("recovery scan: failed walking tree at FDP %d: %v", root, err)
		}
	}
	return known, nil
}

// markTreeLeaves walks the tree rooted at root purely to collect its leaf
// page numbers into known.
func (f *File) markTreeLeaves(root uint32, known map[uint32]bool) error {
	w := f.newTreeWalker()
	leafNumber, err := w.descendToLeftmostLeaf(root)
	if err != nil {
		return err
	}
	for leafNumber != PageNumberNull {
		if f.aborted.Load() {
			return ErrAborted
		}
		if err := w.markVisited(leafNumber); err != nil {
			return err
		}
		known[leafNumber] = true
		page, release, err := f.cache.Borrow(leafNumber)
		if err != nil {
			return err
		}
		next := page.Header.NextPage
		release()
		if !isValidChildPage(next) {
			break
		}
		leafNumber = next
	}
	return nil
}

// ScanOrphanPages walks every page number in [1, PageCount], skipping any
// page in known, and calls visit once per non-empty value slot found on
// an orphaned leaf-like page (supplement #7). A page that fails to parse
// at all is skipped and logged rather than aborting the scan.
func (f *File) ScanOrphanPages(known map[uint32]bool, visit func(RecoveredRecord) error) error {
	for n := uint32(1); n <= f.header.PageCount; n++ {
		if known[n] {
			continue
		}
		if f.aborted.Load() {
			return ErrAborted
		}

		page, release, err := f.cache.Borrow(n)
		if err != nil {
			f.logger.Warnf("recovery scan: page %d unreadable: %v", n, err)
			continue
		}
		if !page.Header.IsLeaf() || page.Header.IsSpaceTree() {
			release()
			continue
		}
		for i := 1; i < len(page.Tags); i++ {
			val, err := page.Value(i)
			if err != nil || len(val) == 0 {
				continue
			}
			if err := visit(RecoveredRecord{Page: n, Tag: i, Value: val}); err != nil {
				release()
				return err
			}
		}
		release()
	}
	return nil
}

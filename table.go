// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import "encoding/binary"

// Table is a public handle onto one catalog-derived table (§3.5, §4.10).
// It borrows from its File and owns no pages directly (§3.8).
type Table struct {
	f   *File
	def *TableDef

	records []*Record
	keys    [][]byte
	pk      *primaryKeyIndex
}

// Name returns the table's catalog name.
func (t *Table) Name() string { return t.def.Name }

// FDP returns the table's own father-data-page, which per the GLOSSARY
// is also the root page number of its primary tree.
func (t *Table) FDP() uint32 { return t.def.FDP }

// LongValueFDP returns the root page of this table's long-value tree, and
// whether it has one at all.
func (t *Table) LongValueFDP() (uint32, bool) {
	return t.def.LongValueFDP, t.def.LongValueFDP != 0
}

// Columns returns the table's columns, sorted ascending by ID (including
// any merged template columns, §4.6).
func (t *Table) Columns() []*ColumnDef { return t.def.Columns }

// Column returns the column at index i.
func (t *Table) Column(i int) (*Column, error) {
	if i < 0 || i >= len(t.def.Columns) {
		return nil, wrapErr(KindBounds, int64(i), "column index out of range", ErrOutOfRange)
	}
	return &Column{t: t, def: t.def.Columns[i]}, nil
}

// Indexes returns the table's alternate sort orders.
func (t *Table) Indexes() []*Index {
	out := make([]*Index, len(t.def.Indexes))
	for i, def := range t.def.Indexes {
		out[i] = &Index{t: t, def: def}
	}
	return out
}

// Index returns the index at position i.
func (t *Table) Index(i int) (*Index, error) {
	if i < 0 || i >= len(t.def.Indexes) {
		return nil, wrapErr(KindBounds, int64(i), "index index out of range", ErrOutOfRange)
	}
	return &Index{t: t, def: t.def.Indexes[i]}, nil
}

// SpaceTreeFDP returns the free-extent tree's root page number recorded in
// the table's root page header slot, if present (§3.4, supplement #2).
// esedb parses it for completeness but never traverses it — read access
// doesn't need free-extent data.
func (t *Table) SpaceTreeFDP() (uint32, bool) {
	page, release, err := t.f.cache.Borrow(t.def.FDP)
	if err != nil {
		return 0, false
	}
	defer release()
	if !page.Header.IsRoot() {
		return 0, false
	}
	slot, err := page.HeaderSlot()
	if err != nil || len(slot) < 8 {
		return 0, false
	}
	fdp := binary.LittleEndian.Uint32(slot[4:8])
	return fdp, fdp != 0
}

// Records returns every row of the table's primary tree, in primary-key
// order (§4.10: "table-default iteration yields primary-key order"). The
// first call walks the tree and decodes every row; subsequent calls reuse
// the cached result, since a File's pages are immutable once cached.
func (t *Table) Records() ([]*Record, error) {
	if t.records != nil {
		return t.records, nil
	}

	newRecordFormat := t.f.header.NewRecordFormat()
	var records []*Record
	var keys [][]byte
	err := t.f.walkTree(t.def.FDP, func(kv KV) error {
		values, err := decodeRecord(kv.Value, t.def.Columns, newRecordFormat)
		if err != nil {
			t.f.logger.Warnf("table %q: skipping malformed record: %v", t.def.Name, err)
			return nil
		}
		records = append(records, &Record{t: t, values: values})
		keys = append(keys, kv.Key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.records = records
	t.keys = keys
	return records, nil
}

// Record returns the row at position i in primary-key order.
func (t *Table) Record(i int) (*Record, error) {
	records, err := t.Records()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(records) {
		return nil, wrapErr(KindBounds, int64(i), "record index out of range", ErrOutOfRange)
	}
	return records[i], nil
}

// primaryKeyIndex builds (once) the bookmark-to-Record lookup used to
// resolve secondary-index entries (index.go).
func (t *Table) primaryKeyIndex() (*primaryKeyIndex, error) {
	if t.pk != nil {
		return t.pk, nil
	}
	records, err := t.Records()
	if err != nil {
		return nil, err
	}
	t.pk = &primaryKeyIndex{keys: t.keys, records: records}
	return t.pk, nil
}

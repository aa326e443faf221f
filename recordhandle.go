// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import "encoding/binary"

// Record is one decoded row, borrowed from its Table (§3.7, §3.8, §4.10).
type Record struct {
	t      *Table
	values map[uint32]*rawValue
}

func (r *Record) columnAt(i int) (*ColumnDef, error) {
	cols := r.t.def.Columns
	if i < 0 || i >= len(cols) {
		return nil, wrapErr(KindBounds, int64(i), "column index out of range", ErrOutOfRange)
	}
	return cols[i], nil
}

// ColumnType returns the storage type of the column at position i.
func (r *Record) ColumnType(i int) (ColumnType, error) {
	col, err := r.columnAt(i)
	if err != nil {
		return 0, err
	}
	return col.Type, nil
}

// ColumnName returns the catalog name of the column at position i.
func (r *Record) ColumnName(i int) (string, error) {
	col, err := r.columnAt(i)
	if err != nil {
		return "", err
	}
	return col.Name, nil
}

// Value decodes column i's value (§4.10). The union of possible outputs
// mirrors §4.7 step 5: absent (nil, 0, nil), a typed value, or — for
// LONG_VALUE and MULTI_VALUE columns, which have their own dedicated
// accessors below — the raw reference bytes alongside their flags.
func (r *Record) Value(i int) (interface{}, uint8, error) {
	col, err := r.columnAt(i)
	if err != nil {
		return nil, 0, err
	}
	v := r.values[col.ID]
	if v == nil || !v.present {
		return nil, 0, nil
	}
	if v.flags&(ValueFlagLongValue|ValueFlagMultiValue) != 0 {
		return v.data, v.flags, nil
	}
	val, err := decodeTypedValue(col, v.data, v.flags)
	if err != nil {
		return nil, v.flags, err
	}
	return val, v.flags, nil
}

// LongValue returns a handle onto column i's out-of-row value. It is a
// type-mismatch error unless the value's LONG_VALUE flag is set.
func (r *Record) LongValue(i int) (*LongValue, error) {
	col, err := r.columnAt(i)
	if err != nil {
		return nil, err
	}
	v := r.values[col.ID]
	if v == nil || !v.present || v.flags&ValueFlagLongValue == 0 {
		return nil, wrapErr(KindTypeMismatch, int64(i), "column is not a long value", ErrNotFound)
	}
	if len(v.data) < 4 {
		return nil, newErr(KindFormat, int64(i), "long-value reference shorter than 4 bytes")
	}
	id := binary.LittleEndian.Uint32(v.data)
	if r.t.def.LongValueFDP == 0 {
		return nil, newErr(KindFormat, int64(i), "table has no long-value tree")
	}
	return r.t.f.openLongValue(r.t.def.LongValueFDP, id)
}

// MultiValue returns a handle onto column i's multi-value payload. It is
// a type-mismatch error unless the MULTI_VALUE flag is set without the
// reserved 0x10 bit (§9 open question: that combination is routed to the
// raw-bytes path instead, per the binding decision in §13).
func (r *Record) MultiValue(i int) (*MultiValue, error) {
	col, err := r.columnAt(i)
	if err != nil {
		return nil, err
	}
	v := r.values[col.ID]
	if v == nil || !v.present || v.flags&ValueFlagMultiValue == 0 || v.flags&ValueFlagReserved != 0 {
		return nil, wrapErr(KindTypeMismatch, int64(i), "column is not a multi-value", ErrNotFound)
	}
	return decodeMultiValue(col, v.data)
}

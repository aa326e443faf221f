// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"sort"
)

// ColumnDef is the catalog-derived description of one column: identifier,
// storage type, codepage, and name (§3.5, §3.6). Both the hardcoded
// catalog schema (catalog.go) and every user table share this type.
type ColumnDef struct {
	ID           uint32
	Type         ColumnType
	Codepage     uint32
	Name         string
	DateTimeKind DateTimeKind
}

// rawValue is one column's decoded-but-not-yet-typed slot within a record.
type rawValue struct {
	def     *ColumnDef
	present bool
	flags   uint8
	data    []byte // raw bytes; semantics depend on flags (see decodeRecord).
}

// recordFixedHeaderSize is the fixed header at the start of every row:
// last-fixed-column-ID (1 byte), last-variable-column-ID (1 byte),
// var-data-offset (2 bytes), tagged-data-offset (2 bytes) — §3.7.
const recordFixedHeaderSize = 6

// decodeRecord splits one leaf-slot payload into per-column raw values,
// honoring the fixed / variable / tagged region layout and the null
// bitmap (§3.7, §4.7). columns must be sorted ascending by ID.
// newRecordFormat must match the owning page's NEW_RECORD_FORMAT flag: it
// changes both how much of the tagged-entry offset field is value offset
// versus flag bits, and where the real flag bits live (§3.3).
func decodeRecord(raw []byte, columns []*ColumnDef, newRecordFormat bool) (map[uint32]*rawValue, error) {
	if len(raw) < recordFixedHeaderSize {
		return nil, newErr(KindFormat, 0, "record shorter than its fixed header")
	}
	// The fixed header is {lastFixedID:u8, lastVariableID:u8,
	// varOffset:u16, taggedOffset:u16}; §3.7's table collapses the last
	// two fields into one "var-data-offset, tagged-data-offset" cell.
	lastFixedID := uint32(raw[0])
	lastVariableID := uint32(raw[1])
	varOffset := int(binary.LittleEndian.Uint16(raw[2:4]))
	taggedOffset := int(binary.LittleEndian.Uint16(raw[4:6]))

	if int(lastVariableID) < int(lastFixedID) {
		return nil, newErr(KindFormat, 0, "last_variable_id precedes last_fixed_id")
	}
	if varOffset > taggedOffset || taggedOffset > len(raw) {
		return nil, newErr(KindFormat, 0, "var_offset/tagged_offset out of order")
	}

	values := make(map[uint32]*rawValue, len(columns))
	for _, c := range columns {
		values[c.ID] = &rawValue{def: c}
	}

	fixedCols, variableCols, taggedColsByID := partitionColumns(columns, lastFixedID, lastVariableID)

	cursor := recordFixedHeaderSize
	for _, c := range fixedCols {
		width := c.Type.FixedSize()
		if cursor+width > varOffset {
			break
		}
		values[c.ID].data = raw[cursor : cursor+width]
		cursor += width
	}
	// Null bitmap immediately follows the fixed region, one bit per fixed
	// column, LSB = column 1 (§4.7 step 2).
	bitmapLen := (len(fixedCols) + 7) / 8
	bitmapStart := cursor
	if bitmapStart+bitmapLen <= varOffset {
		bitmap := raw[bitmapStart : bitmapStart+bitmapLen]
		for i, c := range fixedCols {
			byteIdx, bit := i/8, uint(i%8)
			present := byteIdx < len(bitmap) && bitmap[byteIdx]&(1<<bit) != 0
			values[c.ID].present = present
		}
	} else {
		for _, c := range fixedCols {
			values[c.ID].present = values[c.ID].data != nil
		}
	}

	if err := decodeVariableRegion(raw, varOffset, taggedOffset, variableCols, values); err != nil {
		return nil, err
	}
	if err := decodeTaggedRegion(raw, taggedOffset, taggedColsByID, values, newRecordFormat); err != nil {
		return nil, err
	}

	return values, nil
}

func partitionColumns(columns []*ColumnDef, lastFixedID, lastVariableID uint32) (fixed, variable []*ColumnDef, tagged map[uint32]*ColumnDef) {
	tagged = make(map[uint32]*ColumnDef)
	for _, c := range columns {
		switch {
		case c.ID <= lastFixedID:
			fixed = append(fixed, c)
		case c.ID <= lastVariableID:
			variable = append(variable, c)
		default:
			tagged[c.ID] = c
		}
	}
	sort.Slice(fixed, func(i, j int) bool { return fixed[i].ID < fixed[j].ID })
	sort.Slice(variable, func(i, j int) bool { return variable[i].ID < variable[j].ID })
	return fixed, variable, tagged
}

// decodeVariableRegion reads the variable-size region: one 16-bit
// cumulative offset per variable column, then the packed data itself
// (§3.7, §4.7 step 3).
func decodeVariableRegion(raw []byte, varOffset, taggedOffset int, variableCols []*ColumnDef, values map[uint32]*rawValue) error {
	n := len(variableCols)
	offsetTableSize := n * 2
	if varOffset+offsetTableSize > taggedOffset {
		return newErr(KindFormat, int64(varOffset), "variable offset table runs past tagged region")
	}

	prevOffset := 0
	dataStart := varOffset + offsetTableSize
	for i, c := range variableCols {
		raw16 := binary.LittleEndian.Uint16(raw[varOffset+i*2:])
		empty := raw16&0x8000 != 0
		end := int(raw16 &^ 0x8000)
		if empty {
			values[c.ID].present = false
			continue
		}
		if end < prevOffset || dataStart+end > taggedOffset {
			return newErr(KindFormat, int64(varOffset), "variable column offset out of range")
		}
		values[c.ID].present = true
		values[c.ID].data = raw[dataStart+prevOffset : dataStart+end]
		values[c.ID].flags = ValueFlagVariableSize
		prevOffset = end
	}
	return nil
}

// decodeTaggedRegion reads zero or more {column_id, offset(+flags)} tagged
// entries sorted ascending by column ID (§3.7, §4.7 step 4). On legacy
// pages the entry's offset field packs 3 flag bits above a 13-bit value
// offset; on NEW_RECORD_FORMAT pages the low 15 bits of every entry's
// field are the value offset (the top bit is masked off), and the
// real flags live in the top nibble of the value's own first byte, which
// rewriteTaggedFlagByte splits out (§3.3).
func decodeTaggedRegion(raw []byte, taggedOffset int, taggedCols map[uint32]*ColumnDef, values map[uint32]*rawValue, newRecordFormat bool) error {
	if taggedOffset >= len(raw) {
		return nil // no tagged data at all.
	}
	region := raw[taggedOffset:]
	if len(region) < 4 {
		return nil
	}

	type entry struct {
		columnID uint16
		offset   uint16
	}
	var entries []entry

	pos := 0
	var prevColumnID uint32
	for pos+4 <= len(region) {
		id := binary.LittleEndian.Uint16(region[pos:])
		off := binary.LittleEndian.Uint16(region[pos+2:])
		if pos > 0 && uint32(id) <= prevColumnID {
			break // index exhausted; id field now points into value data.
		}
		entries = append(entries, entry{columnID: id, offset: off})
		prevColumnID = uint32(id)
		pos += 4
	}

	offsetMask := uint16(0x1fff)
	if newRecordFormat {
		offsetMask = 0x7fff
	}

	for i, e := range entries {
		var legacyFlags uint8
		valueOffset := int(e.offset & offsetMask)
		if !newRecordFormat {
			legacyFlags = uint8(e.offset >> 13)
		}

		var end int
		if i+1 < len(entries) {
			end = int(entries[i+1].offset & offsetMask)
		} else {
			end = len(region)
		}
		if valueOffset > end || end > len(region) {
			return newErr(KindFormat, int64(taggedOffset), "tagged value offset out of range")
		}

		if _, ok := taggedCols[uint32(e.columnID)]; !ok {
			continue // unknown column id (e.g. dropped column); skip.
		}
		val := region[valueOffset:end]

		var flags uint8
		if newRecordFormat {
			flags, val = rewriteTaggedFlagByte(val)
		} else {
			flags = translateTaggedFlagBits(legacyFlags)
		}

		values[uint32(e.columnID)].present = len(val) > 0 || flags != 0
		values[uint32(e.columnID)].flags = flags
		values[uint32(e.columnID)].data = val
	}
	return nil
}

// translateTaggedFlagBits maps the 3 raw bits packed into a legacy tagged
// entry's offset field onto the package's ValueFlag* constants. Only
// compressed/long-value/multi-value fit in the 3 spare bits; variable-size
// is implied for every tagged value.
func translateTaggedFlagBits(bits uint8) uint8 {
	f := ValueFlagVariableSize
	if bits&0x1 != 0 {
		f |= ValueFlagCompressed
	}
	if bits&0x2 != 0 {
		f |= ValueFlagLongValue
	}
	if bits&0x4 != 0 {
		f |= ValueFlagMultiValue
	}
	return f
}

// rewriteTaggedFlagByte implements the NewRecordFormat quirk described in
// §3.3 and §4.7 step 4: on pages using the new record format, a tagged
// entry's real flag bits are not in its offset field at all (that field's
// top bits are redefined for something else and must be masked off, which
// decodeTaggedRegion already does via the 0x7fff mask) — they're the top
// nibble of the value's first byte. This splits them out, translates them
// the same way translateTaggedFlagBits does, and returns the value with
// that nibble cleared.
func rewriteTaggedFlagByte(val []byte) (flags uint8, fixed []byte) {
	if len(val) == 0 {
		return ValueFlagVariableSize, val
	}
	raw := val[0] >> 4
	flags = ValueFlagVariableSize
	if raw&0x1 != 0 {
		flags |= ValueFlagCompressed
	}
	if raw&0x2 != 0 {
		flags |= ValueFlagLongValue
	}
	if raw&0x4 != 0 {
		flags |= ValueFlagMultiValue
	}
	if raw&0x8 != 0 {
		flags |= ValueFlagReserved
	}
	out := make([]byte, len(val))
	copy(out, val)
	out[0] &^= 0xf0
	return flags, out
}

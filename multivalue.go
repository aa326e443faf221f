// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import "encoding/binary"

// Two tagged-column encodings carry more than one value per row (§4.8).
// multiValueKindFixedStride: payload[0] is the element width, remaining
// bytes are densely packed elements. multiValueKindOffsetTable: a 16-bit
// count (high bit set) followed by that many 16-bit cumulative offsets.
type multiValueKind int

const (
	multiValueKindFixedStride multiValueKind = iota
	multiValueKindOffsetTable
)

const multiValueOffsetTableMarker = 0x8000

// MultiValue is a decoded sequence of sub-values sliced out of one tagged
// column's payload (§3.8: "borrows from the parent Record's decoded
// tagged-data buffer").
type MultiValue struct {
	column *ColumnDef
	kind   multiValueKind
	elems  [][]byte
}

// decodeMultiValue splits a tagged payload into its element slices,
// choosing the encoding by inspecting the leading bytes (§4.8: "MUST
// support both and choose by inspecting the leading bytes").
func decodeMultiValue(col *ColumnDef, payload []byte) (*MultiValue, error) {
	if len(payload) == 0 {
		return &MultiValue{column: col}, nil
	}

	if looksLikeOffsetTable(payload) {
		elems, err := decodeOffsetTableMultiValue(payload)
		if err != nil {
			return nil, err
		}
		return &MultiValue{column: col, kind: multiValueKindOffsetTable, elems: elems}, nil
	}

	elems, err := decodeFixedStrideMultiValue(payload)
	if err != nil {
		return nil, err
	}
	return &MultiValue{column: col, kind: multiValueKindFixedStride, elems: elems}, nil
}

// looksLikeOffsetTable reports whether payload's leading 16-bit word has
// its high bit set and decodes to a count consistent with payload's
// length; a plausible offset table must have room for count*2 bytes of
// offsets after the count word.
func looksLikeOffsetTable(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	word := binary.LittleEndian.Uint16(payload)
	if word&multiValueOffsetTableMarker == 0 {
		return false
	}
	count := int(word &^ multiValueOffsetTableMarker)
	return 2+count*2 <= len(payload)
}

func decodeOffsetTableMultiValue(payload []byte) ([][]byte, error) {
	word := binary.LittleEndian.Uint16(payload)
	count := int(word &^ multiValueOffsetTableMarker)
	if 2+count*2 > len(payload) {
		return nil, newErr(KindFormat, 0, "multi-value offset table runs past payload end")
	}

	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		offsets[i] = int(binary.LittleEndian.Uint16(payload[2+i*2:]))
	}
	offsets[count] = len(payload)

	elems := make([][]byte, count)
	for i := 0; i < count; i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || end > len(payload) {
			return nil, newErr(KindFormat, int64(start), "multi-value element offset out of range")
		}
		elems[i] = payload[start:end]
	}
	return elems, nil
}

func decodeFixedStrideMultiValue(payload []byte) ([][]byte, error) {
	width := int(payload[0])
	if width <= 0 {
		return nil, newErr(KindFormat, 0, "fixed-stride multi-value declares zero element width")
	}
	body := payload[1:]
	n := len(body) / width
	elems := make([][]byte, n)
	for i := 0; i < n; i++ {
		elems[i] = body[i*width : (i+1)*width]
	}
	return elems, nil
}

// Len returns the number of sub-values.
func (m *MultiValue) Len() int { return len(m.elems) }

// Raw returns the raw bytes of element i, untyped.
func (m *MultiValue) Raw(i int) ([]byte, error) {
	if i < 0 || i >= len(m.elems) {
		return nil, wrapErr(KindBounds, int64(i), "multi-value element index out of range", ErrOutOfRange)
	}
	return m.elems[i], nil
}

// Value decodes element i as the parent column's type, mirroring the
// per-element typed getters the original tools export (supplement #4:
// "beyond raw byte slices, decodes element i as the parent column's
// type").
func (m *MultiValue) Value(i int) (interface{}, error) {
	raw, err := m.Raw(i)
	if err != nil {
		return nil, err
	}
	return decodeTypedValue(m.column, raw, 0)
}

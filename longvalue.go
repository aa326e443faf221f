// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"sort"
)

// Long-value tree keys are {long_value_id:u32_be, segment_offset:u32_be}
// (§4.9: "big-endian for correct lexicographic ordering under numeric
// increase").
const longValueKeySize = 8

// Long-value size-record flags, carried in the size record's value (the
// segment at offset 0).
const (
	longValueFlagCompressed uint32 = 0x1
	longValueFlagSegmented  uint32 = 0x2
	longValueFlagSparse     uint32 = 0x4
)

type longValueSegment struct {
	offset uint32
	data   []byte
}

// LongValue reassembles a column value stored out-of-row in its table's
// long-value tree (§3.7, §4.9). It is a read-only cursor: multiple
// LongValue handles over the same ID share the File's page cache but each
// tracks its own position.
type LongValue struct {
	f          *File
	id         uint32
	size       uint64
	compressed bool
	sparse     bool
	segments   []longValueSegment // sorted by offset, loaded eagerly.
	pos        int64
}

// openLongValue locates and reassembles the long-value identified by id
// within the tree rooted at fdp.
func (f *File) openLongValue(fdp, id uint32) (*LongValue, error) {
	var segments []longValueSegment
	var sizeRecordOffset = ^uint32(0) // sentinel: no size record seen yet.
	var totalSize uint64
	var flags uint32
	sawSize := false

	err := f.walkTree(fdp, func(kv KV) error {
		if len(kv.Key) < longValueKeySize {
			return nil
		}
		keyID := binary.BigEndian.Uint32(kv.Key[:4])
		if keyID != id {
			return nil
		}
		segOffset := binary.BigEndian.Uint32(kv.Key[4:8])

		if segOffset == 0 {
			sawSize = true
			sizeRecordOffset = segOffset
			if len(kv.Value) >= 4 {
				flags = binary.LittleEndian.Uint32(kv.Value[:4])
			}
			if len(kv.Value) >= 12 {
				totalSize = binary.LittleEndian.Uint64(kv.Value[4:12])
			} else {
				totalSize = uint64(len(kv.Value))
			}
			return nil
		}
		if max := f.opts.MaxLongValueSegments; max > 0 && len(segments) >= max {
			return newErr(KindFormat, int64(id), "long value has more segments than MaxLongValueSegments")
		}
		// Segment offset 0 is the size record, so data segment keys are
		// biased by one: the segment keyed at offset 1 holds byte 0.
		segments = append(segments, longValueSegment{offset: segOffset - 1, data: kv.Value})
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = sizeRecordOffset
	if !sawSize {
		return nil, wrapErr(KindFormat, int64(id), "long-value size record not found", ErrNotFound)
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].offset < segments[j].offset })

	return &LongValue{
		f:          f,
		id:         id,
		size:       totalSize,
		compressed: flags&longValueFlagCompressed != 0,
		sparse:     flags&longValueFlagSparse != 0,
		segments:   segments,
	}, nil
}

// Size returns the long value's total reassembled length in bytes.
func (lv *LongValue) Size() uint64 { return lv.size }

// Read fills dst starting at byte offset at within the long value,
// returning the number of bytes copied (§4.9: "random-access read(dst,
// at, len) built on bisecting the segment chain").
func (lv *LongValue) Read(dst []byte, at int64) (int, error) {
	if at < 0 || uint64(at) >= lv.size {
		return 0, nil
	}
	want := int64(len(dst))
	if at+want > int64(lv.size) {
		want = int64(lv.size) - at
	}

	n := 0
	for n < int(want) {
		cur := at + int64(n)
		seg, gap, ok := lv.segmentAt(uint32(cur))
		if !ok {
			return n, newErr(KindFormat, cur, "long-value gap at non-sparse offset")
		}
		if gap {
			dst[n] = 0
			n++
			continue
		}
		segOff := int(cur) - int(seg.offset)
		avail := len(seg.data) - segOff
		chunk := int(want) - n
		if chunk > avail {
			chunk = avail
		}
		copy(dst[n:n+chunk], seg.data[segOff:segOff+chunk])
		n += chunk
	}
	return n, nil
}

// segmentAt bisects the sorted segment list for the segment covering byte
// offset off. gap reports a hole between segments; ok is false only for a
// non-sparse gap, which is an error (§4.9 step 2: "Gaps MUST be treated
// as zero-fill only if the column's flag indicates sparse; otherwise they
// are an error").
func (lv *LongValue) segmentAt(off uint32) (seg longValueSegment, gap bool, ok bool) {
	i := sort.Search(len(lv.segments), func(i int) bool {
		return lv.segments[i].offset+uint32(len(lv.segments[i].data)) > off
	})
	if i < len(lv.segments) && lv.segments[i].offset <= off {
		return lv.segments[i], false, true
	}
	// No segment covers this offset: a hole. Zero-fill it only if the
	// size record's flags marked this long value sparse; the contiguous
	// case never reaches here because consecutive segments abut exactly.
	return longValueSegment{}, true, lv.sparse
}

// AsUTF8 reassembles the entire long value and decodes it as text,
// transparently decompressing via LZXPRESS first when the size record's
// compressed-in-place flag is set (§4.9 step 3, supplement #3).
func (lv *LongValue) AsUTF8(codepage uint32) (string, error) {
	buf := make([]byte, lv.size)
	if _, err := lv.Read(buf, 0); err != nil {
		return "", err
	}
	if lv.compressed {
		decoded, err := decodeLZXPRESSFramed(buf)
		if err != nil {
			return "", err
		}
		buf = decoded
	}
	return decodeText(buf, codepage)
}

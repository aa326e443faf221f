// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
)

// Page header sizes (§3.2): legacy pages carry a 40-byte header; pages
// under the new checksum format carry an extra 40 bytes, the first 32 of
// which hold four 64-bit checksums, one per quarter of the page.
const (
	pageHeaderSizeLegacy   = 40
	pageHeaderSizeExtended = 80
)

// pageHeaderOffsets are byte offsets within the (legacy-sized) page header.
const (
	offPageChecksum       = 0x00 // 4 bytes, legacy XOR checksum.
	offPageDatabaseTime   = 0x04 // 8 bytes.
	offPagePreviousPage   = 0x0c // 4 bytes.
	offPageNextPage       = 0x10 // 4 bytes.
	offPageFDP            = 0x14 // 4 bytes, father data page.
	offPageAvailableData  = 0x18 // 2 bytes.
	offPageAvailableUncom = 0x1a // 2 bytes.
	offPagePageFlags      = 0x20 // 4 bytes.
	offPageAvailableTag   = 0x24 // 2 bytes, tag count.
)

// PageHeader is the fixed, 40- or 80-byte header of one page (§3.2).
type PageHeader struct {
	Checksum                 uint32
	DatabaseTime              uint64
	PreviousPage              uint32
	NextPage                  uint32
	FatherDataPage            uint32
	AvailableDataSize         uint16
	AvailableUncommittedSize  uint16
	AvailablePageTag          uint16
	Flags                     uint32
	ExtendedChecksum          [4]uint64 // only meaningful when NewChecksumFormat.
}

// IsRoot, IsLeaf, IsParent, IsSpaceTree, IsIndex, IsLongValue report the
// corresponding page-kind bit from Flags (§3.2).
func (h *PageHeader) IsRoot() bool       { return h.Flags&PageFlagRoot != 0 }
func (h *PageHeader) IsLeaf() bool       { return h.Flags&PageFlagLeaf != 0 }
func (h *PageHeader) IsParent() bool     { return h.Flags&PageFlagParent != 0 }
func (h *PageHeader) IsSpaceTree() bool  { return h.Flags&PageFlagSpaceTree != 0 }
func (h *PageHeader) IsIndexPage() bool  { return h.Flags&PageFlagIndex != 0 }
func (h *PageHeader) IsLongValue() bool  { return h.Flags&PageFlagLongValue != 0 }
func (h *PageHeader) IsScrubbed() bool   { return h.Flags&PageFlagScrubbed != 0 }

// Tag is one decoded (offset, size) slot descriptor from the page's tag
// array (§3.3). Flags holds the two bits that, on NewRecordFormat pages,
// are redefined out of the size field's top bits.
type Tag struct {
	Offset uint16
	Size   uint16
	Flags  uint8
}

// Page is a single decoded page: header, tag array, and the raw body used
// to slice out value slots.
type Page struct {
	Number  uint32
	Header  PageHeader
	Tags    []Tag
	raw     []byte
	Corrupt bool
}

// decodePage parses a single raw page of exactly len(raw) == pageSize
// bytes. newRecordFormat and newChecksumFormat come from the file header
// and gate the two format quirks described in §3.2/§3.3/§4.3.
func decodePage(number uint32, raw []byte, newRecordFormat, newChecksumFormat bool) (*Page, error) {
	headerSize := pageHeaderSizeLegacy
	if newChecksumFormat {
		headerSize = pageHeaderSizeExtended
	}
	if len(raw) < headerSize {
		return nil, newErr(KindFormat, int64(number), "page shorter than its header")
	}

	p := &Page{Number: number, raw: raw}
	h := &p.Header
	h.Checksum = binary.LittleEndian.Uint32(raw[offPageChecksum:])
	h.DatabaseTime = binary.LittleEndian.Uint64(raw[offPageDatabaseTime:])
	h.PreviousPage = binary.LittleEndian.Uint32(raw[offPagePreviousPage:])
	h.NextPage = binary.LittleEndian.Uint32(raw[offPageNextPage:])
	h.FatherDataPage = binary.LittleEndian.Uint32(raw[offPageFDP:])
	h.AvailableDataSize = binary.LittleEndian.Uint16(raw[offPageAvailableData:])
	h.AvailableUncommittedSize = binary.LittleEndian.Uint16(raw[offPageAvailableUncom:])
	h.Flags = binary.LittleEndian.Uint32(raw[offPagePageFlags:])
	h.AvailablePageTag = binary.LittleEndian.Uint16(raw[offPageAvailableTag:])

	if newChecksumFormat {
		for i := 0; i < 4; i++ {
			h.ExtendedChecksum[i] = binary.LittleEndian.Uint64(raw[pageHeaderSizeLegacy+i*8:])
		}
		if !validateNewChecksum(raw, h) {
			p.Corrupt = true
		}
	} else {
		if !validateLegacyChecksum(number, raw) {
			p.Corrupt = true
		}
	}

	tagCount := int(h.AvailablePageTag)
	tagArraySize := tagCount * 4
	if headerSize+tagArraySize > len(raw) {
		return nil, newErr(KindFormat, int64(number), "tag array runs past page end")
	}

	tags := make([]Tag, tagCount)
	tagArrayStart := len(raw) - tagArraySize
	for i := 0; i < tagCount; i++ {
		// Tag 0 sits nearest the end of the page; tag i is the i-th
		// 4-byte entry counting backward from there (§3.3).
		entryOff := len(raw) - (i+1)*4
		rawOffset := binary.LittleEndian.Uint16(raw[entryOff:])
		rawSize := binary.LittleEndian.Uint16(raw[entryOff+2:])

		t := Tag{Offset: rawOffset}
		if newRecordFormat {
			t.Flags = uint8(rawSize >> 14)
			t.Size = rawSize &^ (0x3 << 14)
		} else {
			t.Size = rawSize
		}
		if int(t.Offset) >= tagArrayStart || int(t.Offset)+int(t.Size) > tagArrayStart {
			return nil, newErr(KindFormat, int64(number), "tag value slot overlaps tag array")
		}
		tags[i] = t
	}
	p.Tags = tags

	return p, nil
}

// Value returns the raw bytes of value slot tagIndex.
func (p *Page) Value(tagIndex int) ([]byte, error) {
	if tagIndex < 0 || tagIndex >= len(p.Tags) {
		return nil, wrapErr(KindBounds, int64(p.Number), "tag index out of range", ErrOutOfRange)
	}
	t := p.Tags[tagIndex]
	return p.raw[t.Offset : int(t.Offset)+int(t.Size)], nil
}

// HeaderSlot returns the bytes of tag 0, the page-type-specific header
// slot (§3.3, §3.4).
func (p *Page) HeaderSlot() ([]byte, error) {
	return p.Value(0)
}

// validateLegacyChecksum validates the single XOR checksum used before the
// new checksum format (§4.3): XOR of the page body from offset 8 onward,
// XORed again with the page number, compared to the stored checksum word.
func validateLegacyChecksum(number uint32, raw []byte) bool {
	var x uint32
	for i := 8; i+4 <= len(raw); i += 4 {
		x ^= binary.LittleEndian.Uint32(raw[i:])
	}
	x ^= number
	return x == binary.LittleEndian.Uint32(raw[offPageChecksum:])
}

// validateNewChecksum validates each of the four 64-bit sub-block
// checksums introduced in the new checksum format (§4.3). A mismatched
// sub-block marks the page corrupt but parsing continues; tag 0 must
// still be parseable regardless.
func validateNewChecksum(raw []byte, h *PageHeader) bool {
	subBlockSize := len(raw) / 4
	if subBlockSize == 0 {
		return false
	}
	ok := true
	for i := 0; i < 4; i++ {
		start := i * subBlockSize
		end := start + subBlockSize
		if end > len(raw) {
			end = len(raw)
		}
		var x uint64
		for off := start; off+8 <= end; off += 8 {
			x ^= binary.LittleEndian.Uint64(raw[off:])
		}
		if x != h.ExtendedChecksum[i] {
			ok = false
		}
	}
	return ok
}

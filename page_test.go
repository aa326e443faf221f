// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"testing"
)

// buildLegacyPage assembles a minimal legacy-format (40-byte header, XOR
// checksum) page containing the given tag values.
func buildLegacyPage(number uint32, pageSize int, flags uint32, values [][]byte) []byte {
	raw := make([]byte, pageSize)
	binary.LittleEndian.PutUint32(raw[offPagePageFlags:], flags)
	binary.LittleEndian.PutUint16(raw[offPageAvailableTag:], uint16(len(values)))

	tagArraySize := len(values) * 4
	cursor := pageHeaderSizeLegacy
	for i, v := range values {
		copy(raw[cursor:], v)
		entryOff := pageSize - (i+1)*4
		binary.LittleEndian.PutUint16(raw[entryOff:], uint16(cursor))
		binary.LittleEndian.PutUint16(raw[entryOff+2:], uint16(len(v)))
		cursor += len(v)
	}
	_ = tagArraySize

	var x uint32
	for i := 8; i+4 <= len(raw); i += 4 {
		x ^= binary.LittleEndian.Uint32(raw[i:])
	}
	x ^= number
	binary.LittleEndian.PutUint32(raw[offPageChecksum:], x)

	return raw
}

func TestDecodePageLegacy(t *testing.T) {
	values := [][]byte{{0xaa}, {0xbb, 0xcc}, {0xdd, 0xee, 0xff}}
	raw := buildLegacyPage(5, PageSize4K, PageFlagLeaf, values)

	p, err := decodePage(5, raw, false, false)
	if err != nil {
		t.Fatalf("decodePage: %v", err)
	}
	if p.Corrupt {
		t.Fatal("page reported corrupt despite a valid checksum")
	}
	if !p.Header.IsLeaf() {
		t.Error("IsLeaf() false")
	}
	if len(p.Tags) != len(values) {
		t.Fatalf("got %d tags, want %d", len(p.Tags), len(values))
	}
	for i, want := range values {
		got, err := p.Value(i)
		if err != nil {
			t.Fatalf("Value(%d): %v", i, err)
		}
		if string(got) != string(want) {
			t.Errorf("Value(%d) = %x, want %x", i, got, want)
		}
	}
}

func TestDecodePageBadChecksum(t *testing.T) {
	raw := buildLegacyPage(5, PageSize4K, PageFlagLeaf, [][]byte{{1, 2, 3}})
	raw[offPageChecksum] ^= 0xff

	p, err := decodePage(5, raw, false, false)
	if err != nil {
		t.Fatalf("decodePage: %v", err)
	}
	if !p.Corrupt {
		t.Error("expected page to be marked corrupt")
	}
}

func TestDecodePageTooShortForHeader(t *testing.T) {
	if _, err := decodePage(1, make([]byte, 10), false, false); err == nil {
		t.Fatal("expected error for page shorter than its header")
	}
}

func TestDecodePageTagArrayRunsPastEnd(t *testing.T) {
	raw := make([]byte, PageSize4K)
	binary.LittleEndian.PutUint16(raw[offPageAvailableTag:], 0xffff)
	if _, err := decodePage(1, raw, false, false); err == nil {
		t.Fatal("expected error for tag array overrunning page")
	}
}

func TestDecodePageNewRecordFormatFlagBits(t *testing.T) {
	raw := make([]byte, PageSize4K)
	binary.LittleEndian.PutUint32(raw[offPagePageFlags:], PageFlagLeaf)
	binary.LittleEndian.PutUint16(raw[offPageAvailableTag:], 1)

	value := []byte{0x42}
	copy(raw[pageHeaderSizeLegacy:], value)
	entryOff := PageSize4K - 4
	rawSize := uint16(len(value)) | (uint16(2) << 14) // flag bits 0b10
	binary.LittleEndian.PutUint16(raw[entryOff:], uint16(pageHeaderSizeLegacy))
	binary.LittleEndian.PutUint16(raw[entryOff+2:], rawSize)

	var x uint32
	for i := 8; i+4 <= len(raw); i += 4 {
		x ^= binary.LittleEndian.Uint32(raw[i:])
	}
	x ^= 1
	binary.LittleEndian.PutUint32(raw[offPageChecksum:], x)

	p, err := decodePage(1, raw, true, false)
	if err != nil {
		t.Fatalf("decodePage: %v", err)
	}
	if p.Tags[0].Flags != 2 {
		t.Errorf("Tags[0].Flags = %d, want 2", p.Tags[0].Flags)
	}
	if p.Tags[0].Size != uint16(len(value)) {
		t.Errorf("Tags[0].Size = %d, want %d", p.Tags[0].Size, len(value))
	}
}

func TestPageValueOutOfRange(t *testing.T) {
	raw := buildLegacyPage(1, PageSize4K, PageFlagLeaf, [][]byte{{1}})
	p, err := decodePage(1, raw, false, false)
	if err != nil {
		t.Fatalf("decodePage: %v", err)
	}
	if _, err := p.Value(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"testing"
)

// buildLongValueKey builds the big-endian {id, offset} key used by a
// long-value tree.
func buildLongValueKey(id, offset uint32) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key[0:4], id)
	binary.BigEndian.PutUint32(key[4:8], offset)
	return key
}

func buildLongValueSizeRecord(flags uint32, totalSize uint64) []byte {
	v := make([]byte, 12)
	binary.LittleEndian.PutUint32(v[0:4], flags)
	binary.LittleEndian.PutUint64(v[4:12], totalSize)
	return v
}

func newLongValueTestFile(t *testing.T, entries []KV) *File {
	t.Helper()
	tags := [][]byte{{0}}
	for _, e := range entries {
		tags = append(tags, buildLeafEntry(e.Key, e.Value))
	}
	raw := buildLegacyPage(30, PageSize4K, PageFlagLeaf|PageFlagRoot|PageFlagLongValue, tags)
	return newTestFileFromPages(t, map[uint32][]byte{30: raw}, 30)
}

func TestOpenLongValueSingleSegment(t *testing.T) {
	data := []byte("hello long value")
	entries := []KV{
		{Key: buildLongValueKey(1, 0), Value: buildLongValueSizeRecord(0, uint64(len(data)))},
		{Key: buildLongValueKey(1, 1), Value: data},
	}
	f := newLongValueTestFile(t, entries)

	lv, err := f.openLongValue(30, 1)
	if err != nil {
		t.Fatalf("openLongValue: %v", err)
	}
	if lv.Size() != uint64(len(data)) {
		t.Fatalf("Size() = %d, want %d", lv.Size(), len(data))
	}

	buf := make([]byte, len(data))
	n, err := lv.Read(buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(data) || string(buf) != string(data) {
		t.Fatalf("Read() = %q, want %q", buf[:n], data)
	}
}

func TestOpenLongValueMultiSegment(t *testing.T) {
	seg1 := []byte("0123456789")
	seg2 := []byte("abcdefghij")
	total := uint64(len(seg1) + len(seg2))
	entries := []KV{
		{Key: buildLongValueKey(2, 0), Value: buildLongValueSizeRecord(0, total)},
		{Key: buildLongValueKey(2, 1), Value: seg1},
		{Key: buildLongValueKey(2, uint32(1 + len(seg1))), Value: seg2},
	}
	f := newLongValueTestFile(t, entries)

	lv, err := f.openLongValue(30, 2)
	if err != nil {
		t.Fatalf("openLongValue: %v", err)
	}
	buf := make([]byte, total)
	n, err := lv.Read(buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := string(seg1) + string(seg2)
	if n != int(total) || string(buf) != want {
		t.Fatalf("Read() = %q, want %q", buf[:n], want)
	}
}

func TestOpenLongValuePartialRead(t *testing.T) {
	data := []byte("0123456789")
	entries := []KV{
		{Key: buildLongValueKey(3, 0), Value: buildLongValueSizeRecord(0, uint64(len(data)))},
		{Key: buildLongValueKey(3, 1), Value: data},
	}
	f := newLongValueTestFile(t, entries)

	lv, err := f.openLongValue(30, 3)
	if err != nil {
		t.Fatalf("openLongValue: %v", err)
	}
	buf := make([]byte, 4)
	n, err := lv.Read(buf, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4 || string(buf) != "3456" {
		t.Fatalf("Read(3) = %q, want 3456", buf[:n])
	}
}

func TestOpenLongValueNotFound(t *testing.T) {
	f := newLongValueTestFile(t, nil)
	if _, err := f.openLongValue(30, 99); err == nil {
		t.Fatal("expected error when size record is missing")
	}
}

func TestOpenLongValueCompressedFlag(t *testing.T) {
	entries := []KV{
		{Key: buildLongValueKey(4, 0), Value: buildLongValueSizeRecord(longValueFlagCompressed, 0)},
	}
	f := newLongValueTestFile(t, entries)
	lv, err := f.openLongValue(30, 4)
	if err != nil {
		t.Fatalf("openLongValue: %v", err)
	}
	if !lv.compressed {
		t.Error("expected compressed flag to be set")
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"testing"
)

func TestDecodeMultiValueFixedStride(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeLong}
	payload := []byte{4, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	mv, err := decodeMultiValue(col, payload)
	if err != nil {
		t.Fatalf("decodeMultiValue: %v", err)
	}
	if mv.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", mv.Len())
	}
	for i, want := range []int32{1, 2, 3} {
		v, err := mv.Value(i)
		if err != nil {
			t.Fatalf("Value(%d): %v", i, err)
		}
		if v.(int32) != want {
			t.Errorf("Value(%d) = %v, want %d", i, v, want)
		}
	}
}

func TestDecodeMultiValueOffsetTable(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeText, Codepage: CodepageASCII}
	// 3 elements: "ab", "cde", "f"
	body := []byte("abcdef")
	// Offsets are absolute within the full payload, i.e. they already
	// account for the 2-byte count word plus count*2 bytes of offsets.
	offsets := []uint16{0x8003, 8, 10, 13}
	payload := make([]byte, 0, 2*len(offsets)+len(body))
	for _, o := range offsets {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, o)
		payload = append(payload, b...)
	}
	payload = append(payload, body...)

	mv, err := decodeMultiValue(col, payload)
	if err != nil {
		t.Fatalf("decodeMultiValue: %v", err)
	}
	if mv.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", mv.Len())
	}
	want := []string{"ab", "cde", "f"}
	for i, w := range want {
		v, err := mv.Value(i)
		if err != nil {
			t.Fatalf("Value(%d): %v", i, err)
		}
		if v.(string) != w {
			t.Errorf("Value(%d) = %q, want %q", i, v, w)
		}
	}
}

func TestDecodeMultiValueEmpty(t *testing.T) {
	mv, err := decodeMultiValue(&ColumnDef{Type: ColumnTypeLong}, nil)
	if err != nil {
		t.Fatalf("decodeMultiValue: %v", err)
	}
	if mv.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", mv.Len())
	}
}

func TestDecodeMultiValueRawOutOfRange(t *testing.T) {
	mv, err := decodeMultiValue(&ColumnDef{Type: ColumnTypeLong}, []byte{4, 1, 2, 3, 4})
	if err != nil {
		t.Fatalf("decodeMultiValue: %v", err)
	}
	if _, err := mv.Raw(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestDecodeFixedStrideZeroWidth(t *testing.T) {
	if _, err := decodeMultiValue(&ColumnDef{Type: ColumnTypeLong}, []byte{0, 1, 2}); err == nil {
		t.Fatal("expected error for zero element width")
	}
}

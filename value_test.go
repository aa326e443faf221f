// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeTypedValueNumeric(t *testing.T) {
	tests := []struct {
		name string
		col  *ColumnDef
		raw  []byte
		want interface{}
	}{
		{"bool-true", &ColumnDef{Type: ColumnTypeBoolean}, []byte{1}, true},
		{"bool-false", &ColumnDef{Type: ColumnTypeBoolean}, []byte{0}, false},
		{"byte", &ColumnDef{Type: ColumnTypeUnsignedByte}, []byte{0x2a}, uint8(0x2a)},
		{"short", &ColumnDef{Type: ColumnTypeShort}, le16(-5), int16(-5)},
		{"ushort", &ColumnDef{Type: ColumnTypeUnsignedShort}, le16u(500), uint16(500)},
		{"long", &ColumnDef{Type: ColumnTypeLong}, le32(-100000), int32(-100000)},
		{"ulong", &ColumnDef{Type: ColumnTypeUnsignedLong}, le32u(100000), uint32(100000)},
		{"longlong", &ColumnDef{Type: ColumnTypeLongLong}, le64(-1), int64(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTypedValue(tt.col, tt.raw, 0)
			if err != nil {
				t.Fatalf("decodeTypedValue: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecodeTypedValueFloats(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeIEEEDouble}
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(3.14159))
	got, err := decodeTypedValue(col, raw, 0)
	if err != nil {
		t.Fatalf("decodeTypedValue: %v", err)
	}
	if got.(float64) != 3.14159 {
		t.Fatalf("got %v, want 3.14159", got)
	}
}

func TestDecodeTypedValueText(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeText, Codepage: CodepageASCII}
	got, err := decodeTypedValue(col, []byte("hello"), 0)
	if err != nil {
		t.Fatalf("decodeTypedValue: %v", err)
	}
	if got.(string) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestDecodeTypedValueCompressedText(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeText, Codepage: CodepageASCII}
	packed := encodeSevenBitASCII([]byte("packed"))
	raw := append([]byte{sevenBitFlavorASCII << 4}, packed...)
	got, err := decodeTypedValue(col, raw, ValueFlagCompressed)
	if err != nil {
		t.Fatalf("decodeTypedValue: %v", err)
	}
	if got.(string) != "packed" {
		t.Fatalf("got %q, want packed", got)
	}
}

func TestDecodeTypedValueGUID(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeGUID}
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i)
	}
	got, err := decodeTypedValue(col, raw, 0)
	if err != nil {
		t.Fatalf("decodeTypedValue: %v", err)
	}
	g := got.([16]byte)
	if g[15] != 15 {
		t.Fatalf("got %x, want last byte 15", g)
	}
}

func TestDecodeTypedValueShortGUID(t *testing.T) {
	col := &ColumnDef{Type: ColumnTypeGUID}
	if _, err := decodeTypedValue(col, make([]byte, 4), 0); err == nil {
		t.Fatal("expected error for short GUID value")
	}
}

func TestDecodeDateTimeOLEAutomation(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(44197.5))
	dt, err := decodeDateTime(raw, DateTimeOLEAutomation)
	if err != nil {
		t.Fatalf("decodeDateTime: %v", err)
	}
	if dt.Kind != DateTimeOLEAutomation || dt.OLEDays != 44197.5 {
		t.Fatalf("got %+v", dt)
	}
}

func TestDecodeDateTimeFileTime(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, 132900000000000000)
	dt, err := decodeDateTime(raw, DateTimeFileTimeLE)
	if err != nil {
		t.Fatalf("decodeDateTime: %v", err)
	}
	if dt.FileTime != 132900000000000000 {
		t.Fatalf("got %+v", dt)
	}
}

func le16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}
func le16u(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}
func le32u(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
func le64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

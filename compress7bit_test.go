// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"bytes"
	"testing"
)

func TestDecodeSevenBitASCIIRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"a",
		"hello",
		"The quick brown fox jumps over the lazy dog",
	}
	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			packed := encodeSevenBitASCII([]byte(tt))
			raw := append([]byte{sevenBitFlavorASCII << 4}, packed...)
			got, err := decodeSevenBit(raw)
			if err != nil {
				t.Fatalf("decodeSevenBit: %v", err)
			}
			if string(got) != tt {
				t.Fatalf("got %q, want %q", got, tt)
			}
		})
	}
}

func TestDecodeSevenBitUTF16RoundTrip(t *testing.T) {
	units := []byte{'h', 0, 'i', 0, 0x41, 0x30} // "hi" + U+3041
	packed := encodeSevenBitUTF16(units)
	raw := append([]byte{sevenBitFlavorUTF16 << 4}, packed...)
	got, err := decodeSevenBit(raw)
	if err != nil {
		t.Fatalf("decodeSevenBit: %v", err)
	}
	if !bytes.Equal(got, units) {
		t.Fatalf("got %x, want %x", got, units)
	}
}

func TestDecodeSevenBitUTF16CodeUnitByteOrder(t *testing.T) {
	// Packed 7-bit units 0x41, 0x60 must reassemble as low=0x41, high=0x60
	// (character = unit0 | (unit1 << 8)), not the continuous-bit-concat
	// reading that would instead produce low=0x41, high=0x30.
	raw := []byte{sevenBitFlavorUTF16 << 4, 0x41, 0x30}
	got, err := decodeSevenBit(raw)
	if err != nil {
		t.Fatalf("decodeSevenBit: %v", err)
	}
	want := []byte{0x41, 0x60}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestDecodeSevenBitEmpty(t *testing.T) {
	if _, err := decodeSevenBit(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDecodeSevenBitUnknownFlavor(t *testing.T) {
	_, err := decodeSevenBit([]byte{0xff})
	if err == nil {
		t.Fatal("expected error for unrecognized flavor")
	}
}

func TestDecodeSevenBitASCIITruncated(t *testing.T) {
	// A single 0xff byte leaves one set bit over after its only whole
	// 7-bit unit; that is a decode error, not a silent truncation.
	raw := []byte{sevenBitFlavorASCII << 4, 0xff}
	if _, err := decodeSevenBit(raw); err == nil {
		t.Fatal("expected error for nonzero leftover bits")
	}
}

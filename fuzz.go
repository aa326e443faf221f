// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

// Fuzz is the legacy github.com/dvyukov/go-fuzz entry point: feed arbitrary
// bytes through the whole-file parse path.
func Fuzz(data []byte) int {
	f, err := NewBytes(data, &Options{TolerateChecksumErrors: true})
	if err != nil {
		return 0
	}
	if err := f.Parse(); err != nil {
		return 0
	}
	for _, t := range f.Tables() {
		if _, err := t.Records(); err != nil {
			return 0
		}
	}
	return 1
}

// FuzzSevenBit is the legacy go-fuzz entry point for the 7-bit packed text
// codec in isolation.
func FuzzSevenBit(data []byte) int {
	if _, err := decodeSevenBit(data); err != nil {
		return 0
	}
	return 1
}

// FuzzLZXPRESS is the legacy go-fuzz entry point for the framed LZXPRESS
// decompressor.
func FuzzLZXPRESS(data []byte) int {
	if _, err := decodeLZXPRESSFramed(data); err != nil {
		return 0
	}
	return 1
}

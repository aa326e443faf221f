// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import "encoding/binary"

// LZXPRESS blob framing (§4.4.2). The in-record variant carries a 5-byte
// header; the embedded/exported variant (used inside an already-framed
// long value) omits it because the caller has already consumed the flag
// byte that selects the compression scheme.
const (
	lzxpressMarker      = 0x18
	lzxpressHeaderSize  = 5
	lzxpressMatchBase   = 3
	lzxpressNibbleSentinel = 7
	lzxpressByteSentinel   = 0xff
)

// decodeLZXPRESSFramed decodes a blob that starts with the 5-byte
// [marker][uncompressed_size:u16][reserved:u16] header.
func decodeLZXPRESSFramed(raw []byte) ([]byte, error) {
	if len(raw) < lzxpressHeaderSize {
		return nil, newErr(KindDecompression, -1, "LZXPRESS blob shorter than its header")
	}
	if raw[0] != lzxpressMarker {
		return nil, newErr(KindDecompression, -1, "LZXPRESS marker byte not found")
	}
	uncompressedSize := int(binary.LittleEndian.Uint16(raw[1:3]))
	return decodeLZXPRESS(raw[lzxpressHeaderSize:], uncompressedSize)
}

// decodeLZXPRESS decodes an unframed LZXPRESS stream (control words and
// literal/match bytes only) into exactly uncompressedSize bytes.
//
// Decoder state (§4.4.2): an input cursor, an output buffer, a 32-bit
// control word reloaded from four input bytes whenever its 32 bits are
// exhausted, and a "last distance" register used when a match's encoded
// distance field is zero (meaning "repeat the previous distance").
func decodeLZXPRESS(data []byte, uncompressedSize int) ([]byte, error) {
	out := make([]byte, 0, uncompressedSize)
	pos := 0

	var control uint32
	var bitsLeft uint
	var lastDistance int

	nextBit := func() (uint32, error) {
		if bitsLeft == 0 {
			if pos+4 > len(data) {
				return 0, newErr(KindDecompression, int64(pos), "truncated LZXPRESS control word")
			}
			control = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
			bitsLeft = 32
		}
		bit := control & 1
		control >>= 1
		bitsLeft--
		return bit, nil
	}

	for len(out) < uncompressedSize {
		bit, err := nextBit()
		if err != nil {
			return nil, err
		}

		if bit == 0 {
			if pos >= len(data) {
				return nil, newErr(KindDecompression, int64(pos), "truncated LZXPRESS literal")
			}
			out = append(out, data[pos])
			pos++
			continue
		}

		if pos+2 > len(data) {
			return nil, newErr(KindDecompression, int64(pos), "truncated LZXPRESS match word")
		}
		word := binary.LittleEndian.Uint16(data[pos:])
		pos += 2

		length := int(word & 0x7)
		if length == lzxpressNibbleSentinel {
			if pos >= len(data) {
				return nil, newErr(KindDecompression, int64(pos), "truncated LZXPRESS match length extension")
			}
			extra := int(data[pos])
			pos++
			length += extra
			if extra == lzxpressByteSentinel {
				if pos+2 > len(data) {
					return nil, newErr(KindDecompression, int64(pos), "truncated LZXPRESS 16-bit match length")
				}
				length = int(binary.LittleEndian.Uint16(data[pos:]))
				pos += 2
			}
		}
		length += lzxpressMatchBase

		distanceField := int(word >> 3)
		var distance int
		if distanceField == 0 {
			// Distance 0 means "repeat the previous match distance"; a
			// zero-length match then counts as an implicit +1 (§4.4.2).
			distance = lastDistance
			if length == lzxpressMatchBase {
				length++
			}
		} else {
			distance = distanceField + 1
		}
		if distance <= 0 || distance > len(out) {
			return nil, newErr(KindDecompression, int64(pos), "LZXPRESS match distance out of range")
		}
		lastDistance = distance

		if len(out)+length > uncompressedSize {
			return nil, newErr(KindDecompression, int64(pos), "LZXPRESS match overruns expected output length")
		}
		srcStart := len(out) - distance
		for i := 0; i < length; i++ {
			out = append(out, out[srcStart+i])
		}
	}

	if len(out) != uncompressedSize {
		return nil, newErr(KindDecompression, int64(pos), "LZXPRESS output length mismatch")
	}
	return out, nil
}

// encodeLZXPRESSLiteral frames data as an all-literal LZXPRESS stream (no
// matches). It exists solely to exercise decodeLZXPRESS's literal path and
// the round-trip property test (§8); esedb never writes compressed data
// for any other purpose.
func encodeLZXPRESSLiteral(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/32*4+4)
	for i := 0; i < len(data); i += 32 {
		end := i + 32
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]
		var control uint32 // all-zero: every bit says "literal"
		_ = control
		var controlBytes [4]byte
		binary.LittleEndian.PutUint32(controlBytes[:], 0)
		out = append(out, controlBytes[:]...)
		out = append(out, chunk...)
	}
	return out
}

// encodeLZXPRESSFramed wraps encodeLZXPRESSLiteral with the 5-byte header,
// for round-trip tests of decodeLZXPRESSFramed.
func encodeLZXPRESSFramed(data []byte) []byte {
	header := make([]byte, lzxpressHeaderSize)
	header[0] = lzxpressMarker
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(data)))
	return append(header, encodeLZXPRESSLiteral(data)...)
}

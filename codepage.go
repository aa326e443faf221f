// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Well-known codepage identifiers carried on TEXT/LONG_TEXT columns
// (§3.6).
const (
	CodepageUnicode    = 1200 // UTF-16LE
	CodepageWindows1252 = 1252
	CodepageWindows1250 = 1250
	CodepageWindows1251 = 1251
	CodepageWindows874  = 874
	CodepageASCII       = 20127
	CodepageISOLatin1   = 28591
)

// decoderForCodepage returns the golang.org/x/text decoder appropriate for
// a TEXT column's codepage tag, mirroring the teacher's use of
// golang.org/x/text/encoding/unicode for wide-string decode (helper.go)
// and extending it to narrow codepages via encoding/charmap.
func decoderForCodepage(codepage uint32) encoding.Encoding {
	switch codepage {
	case CodepageUnicode, 0:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case CodepageWindows1252:
		return charmap.Windows1252
	case CodepageWindows1250:
		return charmap.Windows1250
	case CodepageWindows1251:
		return charmap.Windows1251
	case CodepageWindows874:
		return charmap.Windows874
	case CodepageASCII, CodepageISOLatin1:
		return charmap.ISO8859_1
	default:
		// Unrecognized codepages are treated as Windows-1252, the most
		// common narrow ANSI codepage across ESE stores observed in
		// practice.
		return charmap.Windows1252
	}
}

// decodeText converts raw column bytes to a UTF-8 Go string using the
// column's codepage.
func decodeText(raw []byte, codepage uint32) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	dec := decoderForCodepage(codepage).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", wrapErr(KindFormat, -1, "decoding text column", err)
	}
	return string(out), nil
}

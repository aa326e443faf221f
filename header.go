// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
)

// Header byte layout (§3.1, §6.1). Two copies are stored back to back at
// the start of the file; each copy occupies exactly one "header page" of
// headerBlockSize bytes (the offset of page N is derived from this size,
// never assumed constant, per §3.1's explicit warning).
const (
	offChecksum        = 0x00 // 4 bytes, legacy XOR checksum of the rest of the page.
	offSignature       = 0x04 // 4 bytes, must equal FileSignature.
	offFormatVersion   = 0x08 // 4 bytes, observed constant FormatVersion (0x620).
	offFileType        = 0x0c // 4 bytes, FileTypeDatabase or FileTypeStreaming.
	offDatabaseTime    = 0x10 // 8 bytes, monotonically increasing marker.
	offFormatRevision  = 0x3a // 4 bytes, one of the Revision* constants.
	offPageSizeField   = 0x3e // 4 bytes, 0 on legacy (implies 8192/legacy default).
	offCatalogRootPage = 0xc8 // 4 bytes, root page number of FDP 4 (the catalog).
	offPageCount       = 0xcc // 4 bytes, total number of pages in the array.

	// headerPageSizeLegacy is the fixed size of each header copy on
	// revisions that predate the explicit page-size field (§3.1: "the
	// headers occupy exactly the first two pages" at 8192 bytes each).
	headerPageSizeLegacy = PageSize8K
)

// Header is the parsed, validated file header (two copies reconciled into
// one, per §6.1: "the reader uses page 1 and compares page 2 for
// consistency; mismatch is reported but tolerated").
type Header struct {
	FormatVersion  uint32
	FormatRevision uint32
	FileType       int
	PageSize       uint32
	CatalogRoot    uint32
	PageCount      uint32
	DatabaseTime   uint64

	// HeaderBlockSize is the size occupied by each of the two header
	// copies; real page N starts at 2*HeaderBlockSize + (N-1)*PageSize.
	HeaderBlockSize int64

	// CopiesMismatch is true when the second header copy could not be
	// read or parsed, or differs from the first in format version,
	// revision, file type, page size, catalog root or page count (a
	// non-fatal condition).
	CopiesMismatch bool
}

// NewRecordFormat reports whether pages in this file use the relocated
// tag-flag-bit encoding (§3.3).
func (h *Header) NewRecordFormat() bool {
	return h.FormatRevision >= NewRecordFormatRevision
}

// NewChecksumFormat reports whether pages in this file use the four
// sub-block checksum layout (§4.3).
func (h *Header) NewChecksumFormat() bool {
	return h.FormatRevision >= NewChecksumFormatRevision
}

// PageOffset returns the byte offset of page number n (1-indexed) within
// the file, per §3.1.
func (h *Header) PageOffset(n uint32) int64 {
	return 2*h.HeaderBlockSize + int64(n-1)*int64(h.PageSize)
}

// parseHeaderCopy decodes one header copy from buf, which must be at least
// headerPageSizeLegacy bytes.
func parseHeaderCopy(buf []byte) (*Header, error) {
	if len(buf) < headerPageSizeLegacy {
		return nil, newErr(KindFormat, 0, "header copy shorter than one legacy page")
	}
	sig := binary.LittleEndian.Uint32(buf[offSignature:])
	if sig != FileSignature {
		return nil, ErrBadSignature
	}

	h := &Header{
		FormatVersion:  binary.LittleEndian.Uint32(buf[offFormatVersion:]),
		FormatRevision: binary.LittleEndian.Uint32(buf[offFormatRevision:]),
		FileType:       int(binary.LittleEndian.Uint32(buf[offFileType:])),
		DatabaseTime:   binary.LittleEndian.Uint64(buf[offDatabaseTime:]),
		CatalogRoot:    binary.LittleEndian.Uint32(buf[offCatalogRootPage:]),
		PageCount:      binary.LittleEndian.Uint32(buf[offPageCount:]),
	}

	pageSizeField := binary.LittleEndian.Uint32(buf[offPageSizeField:])
	if pageSizeField == 0 {
		h.PageSize = PageSize8K
		h.HeaderBlockSize = headerPageSizeLegacy
	} else {
		h.PageSize = pageSizeField
		// Large-page revisions: the header block is exactly two pages,
		// regardless of the declared page size (§3.1).
		h.HeaderBlockSize = int64(h.PageSize)
	}

	switch h.PageSize {
	case PageSize2K, PageSize4K, PageSize8K, PageSize16K, PageSize32K:
	default:
		return nil, wrapErr(KindUnsupported, int64(h.PageSize), "page size", ErrUnsupportedPageSize)
	}

	switch h.FormatRevision {
	case RevisionWindows2000, RevisionWindows2000SP1, RevisionWindowsVista,
		RevisionWindows7, RevisionWindows8Point1:
	default:
		// Unknown revisions are tolerated as long as they sort sanely
		// against the known gating revisions; only a regression below
		// the oldest known revision is rejected outright.
		if h.FormatRevision < RevisionWindows2000 {
			return nil, wrapErr(KindUnsupported, int64(h.FormatRevision),
				"format revision", ErrUnsupportedRevision)
		}
	}

	return h, nil
}

// readHeader reads and reconciles both header copies from src.
func readHeader(src Source) (*Header, error) {
	probe := make([]byte, headerPageSizeLegacy)
	if _, err := src.Read(probe, 0); err != nil {
		return nil, wrapErr(KindIO, 0, "reading first header copy", err)
	}
	h, err := parseHeaderCopy(probe)
	if err != nil {
		return nil, err
	}

	second := make([]byte, len(probe))
	if _, err := src.Read(second, h.HeaderBlockSize); err == nil {
		h2, err2 := parseHeaderCopy(second[:min64(int64(len(second)), headerPageSizeLegacy)])
		if err2 != nil || !headersEqual(h, h2) {
			h.CopiesMismatch = true
		}
	} else {
		h.CopiesMismatch = true
	}

	return h, nil
}

func headersEqual(a, b *Header) bool {
	return a.FormatVersion == b.FormatVersion &&
		a.FormatRevision == b.FormatRevision &&
		a.FileType == b.FileType &&
		a.PageSize == b.PageSize &&
		a.CatalogRoot == b.CatalogRoot &&
		a.PageCount == b.PageCount
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

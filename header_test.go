// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"testing"
)

func buildHeaderCopy(pageSize uint32, revision uint32, catalogRoot, pageCount uint32) []byte {
	buf := make([]byte, headerPageSizeLegacy)
	binary.LittleEndian.PutUint32(buf[offSignature:], FileSignature)
	binary.LittleEndian.PutUint32(buf[offFormatVersion:], FormatVersion)
	binary.LittleEndian.PutUint32(buf[offFileType:], FileTypeDatabase)
	binary.LittleEndian.PutUint32(buf[offFormatRevision:], revision)
	if pageSize != PageSize8K {
		binary.LittleEndian.PutUint32(buf[offPageSizeField:], pageSize)
	}
	binary.LittleEndian.PutUint32(buf[offCatalogRootPage:], catalogRoot)
	binary.LittleEndian.PutUint32(buf[offPageCount:], pageCount)
	return buf
}

func TestParseHeaderCopyOK(t *testing.T) {
	buf := buildHeaderCopy(PageSize8K, RevisionWindows2000, CatalogFDP, 10)
	h, err := parseHeaderCopy(buf)
	if err != nil {
		t.Fatalf("parseHeaderCopy: %v", err)
	}
	if h.PageSize != PageSize8K {
		t.Errorf("PageSize = %d, want %d", h.PageSize, PageSize8K)
	}
	if h.CatalogRoot != CatalogFDP {
		t.Errorf("CatalogRoot = %d, want %d", h.CatalogRoot, CatalogFDP)
	}
	if h.NewRecordFormat() {
		t.Error("NewRecordFormat() true for a legacy revision")
	}
}

func TestParseHeaderCopyNewRecordFormat(t *testing.T) {
	buf := buildHeaderCopy(PageSize32K, RevisionWindows7, CatalogFDP, 10)
	h, err := parseHeaderCopy(buf)
	if err != nil {
		t.Fatalf("parseHeaderCopy: %v", err)
	}
	if !h.NewRecordFormat() {
		t.Error("NewRecordFormat() false for Windows 7 revision")
	}
	if !h.NewChecksumFormat() {
		t.Error("NewChecksumFormat() false for Windows 7 revision")
	}
}

func TestParseHeaderCopyBadSignature(t *testing.T) {
	buf := make([]byte, headerPageSizeLegacy)
	if _, err := parseHeaderCopy(buf); err != ErrBadSignature {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}
}

func TestParseHeaderCopyTooShort(t *testing.T) {
	if _, err := parseHeaderCopy(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestParseHeaderCopyUnsupportedPageSize(t *testing.T) {
	buf := buildHeaderCopy(3000, RevisionWindows2000, CatalogFDP, 10)
	if _, err := parseHeaderCopy(buf); err == nil {
		t.Fatal("expected error for unsupported page size")
	}
}

func TestReadHeaderTwoMatchingCopies(t *testing.T) {
	copy1 := buildHeaderCopy(PageSize8K, RevisionWindows2000, CatalogFDP, 10)
	data := append(append([]byte{}, copy1...), copy1...)
	src := newBytesSource(data)

	h, err := readHeader(src)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if h.CopiesMismatch {
		t.Error("CopiesMismatch true for identical copies")
	}
}

func TestReadHeaderMismatchedCopies(t *testing.T) {
	copy1 := buildHeaderCopy(PageSize8K, RevisionWindows2000, CatalogFDP, 10)
	copy2 := buildHeaderCopy(PageSize8K, RevisionWindows2000, CatalogFDP, 20)
	data := append(append([]byte{}, copy1...), copy2...)
	src := newBytesSource(data)

	h, err := readHeader(src)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if !h.CopiesMismatch {
		t.Error("CopiesMismatch false for differing copies")
	}
}

func TestHeaderPageOffset(t *testing.T) {
	h := &Header{PageSize: PageSize8K, HeaderBlockSize: headerPageSizeLegacy}
	if got, want := h.PageOffset(1), int64(2*headerPageSizeLegacy); got != want {
		t.Errorf("PageOffset(1) = %d, want %d", got, want)
	}
	if got, want := h.PageOffset(2), int64(2*headerPageSizeLegacy+PageSize8K); got != want {
		t.Errorf("PageOffset(2) = %d, want %d", got, want)
	}
}

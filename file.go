// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/esedb-go/esedb/log"
)

// Options configures how a File is opened and parsed.
type Options struct {
	// PageCacheSize is the total number of decoded pages the cache holds
	// across all shards, by default max(tree_depth*4, 64) per §4.2 — here
	// approximated as minCachePages since tree depth isn't known before
	// the catalog is walked.
	PageCacheSize int

	// MaxLongValueSegments bounds how many segment records openLongValue
	// accumulates before giving up, guarding against a corrupt or cyclic
	// segment chain. Zero means unbounded.
	MaxLongValueSegments int

	// TolerateChecksumErrors controls whether a page failing checksum
	// validation is returned (with a logged warning) or surfaced as a
	// Checksum-kind error. It is true when New, NewBytes or OpenReader
	// receive nil Options; a zero-valued Options leaves it false.
	TolerateChecksumErrors bool

	// DateTimeDefault is used for a DATE_TIME column with no per-column
	// hint in the catalog's name table (§9 open question).
	DateTimeDefault DateTimeKind

	// Logger overrides the default stdout logger.
	Logger log.Logger
}

// File is an open ESE database: a validated header, a page cache, and the
// catalog-derived table list. Tables, Columns, Indexes, and Records are
// views that borrow from a File; none of them own pages directly (§3.8).
type File struct {
	src    Source
	header *Header
	cache  *pageCache
	cat    *catalog
	tables []*Table

	aborted atomic.Bool
	opts    *Options
	logger  *log.Helper
	closed  bool
}

func newFile(src Source, opts *Options) *File {
	f := &File{src: src}
	if opts != nil {
		o := *opts
		f.opts = &o
	} else {
		f.opts = &Options{TolerateChecksumErrors: true}
	}

	if f.opts.Logger == nil {
		logger := log.NewStdLogger(os.Stdout)
		f.logger = log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
	} else {
		f.logger = log.NewHelper(f.opts.Logger)
	}
	return f
}

// New opens the database file at name, memory-mapping it read-only.
func New(name string, opts *Options) (*File, error) {
	src, err := newMmapSource(name)
	if err != nil {
		return nil, err
	}
	return newFile(src, opts), nil
}

// NewBytes opens a database whose entire contents are already in memory.
func NewBytes(data []byte, opts *Options) (*File, error) {
	return newFile(newBytesSource(data), opts), nil
}

// OpenReader opens a database backed by an arbitrary io.ReaderAt of the
// given total size (§6.2: a user-supplied readable, seekable byte source).
func OpenReader(r io.ReaderAt, size int64, opts *Options) (*File, error) {
	return newFile(newReaderAtSource(r, size), opts), nil
}

// Close releases the underlying I/O handle. Every handle borrowed from
// this File (Table, Column, Index, Record, LongValue, MultiValue) is
// invalidated (§3.8).
func (f *File) Close() error {
	f.closed = true
	if f.src != nil {
		return f.src.Close()
	}
	return nil
}

// Abort requests that any in-progress iteration over this File stop and
// return ErrAborted at the next page read (§5: "a cooperative signal_abort
// flag... long iterations MUST check it between page reads").
func (f *File) Abort() { f.aborted.Store(true) }

// Parse reads and validates the file header, builds the page cache, and
// walks the catalog to discover tables (§2 data-flow: "open → (I/O) →
// page codec → catalog interpreter").
func (f *File) Parse() error {
	if f.closed {
		return ErrClosed
	}

	size, err := f.src.Size()
	if err != nil {
		return wrapErr(KindIO, -1, "determining source size", err)
	}
	if size < 2*headerPageSizeLegacy {
		return ErrInvalidFileSize
	}

	header, err := readHeader(f.src)
	if err != nil {
		return err
	}
	if header.CopiesMismatch {
		f.logger.Warnf("header copy mismatch between page 1 and page 2; using page 1 (spec §6.1)")
	}
	f.header = header

	capacity := f.opts.PageCacheSize
	if capacity <= 0 {
		capacity = minCachePages
	}
	f.cache = newPageCache(capacity, f.loadPage)

	cat, err := f.buildCatalog()
	if err != nil {
		return err
	}
	f.cat = cat

	tables := make([]*Table, len(cat.tables))
	for i, def := range cat.tables {
		tables[i] = &Table{f: f, def: def}
	}
	f.tables = tables

	return nil
}

// loadPage is the page cache's backing loader: it reads exactly one raw
// page from the source and decodes it (§4.1, §4.3).
func (f *File) loadPage(number uint32) (*Page, error) {
	if number == PageNumberNull || number > f.header.PageCount {
		return nil, wrapErr(KindBounds, int64(number), "page number out of range", ErrOutOfRange)
	}

	buf := make([]byte, f.header.PageSize)
	off := f.header.PageOffset(number)
	if _, err := f.src.Read(buf, off); err != nil {
		return nil, wrapErr(KindIO, off, "reading page", err)
	}

	page, err := decodePage(number, buf, f.header.NewRecordFormat(), f.header.NewChecksumFormat())
	if err != nil {
		return nil, err
	}
	if page.Corrupt {
		if !f.opts.TolerateChecksumErrors {
			return nil, newErr(KindChecksum, int64(number), "page failed checksum validation")
		}
		f.logger.Warnf("page %d failed checksum validation; tolerating per options", number)
	}
	return page, nil
}

// Type reports whether this is a standalone database or a streaming file.
func (f *File) Type() int { return f.header.FileType }

// FormatVersion returns the (version, revision) pair from the header.
func (f *File) FormatVersion() (uint32, uint32) {
	return f.header.FormatVersion, f.header.FormatRevision
}

// PageSize returns the page size declared by the header, in bytes.
func (f *File) PageSize() uint32 { return f.header.PageSize }

// Tables returns every table discovered by the catalog walk, in catalog
// encounter order.
func (f *File) Tables() []*Table { return f.tables }

// Table returns the table at index i, or the table named name, depending
// on which overload is used; callers pass either an int or a string.
func (f *File) Table(indexOrName interface{}) (*Table, error) {
	switch v := indexOrName.(type) {
	case int:
		if v < 0 || v >= len(f.tables) {
			return nil, wrapErr(KindBounds, int64(v), "table index out of range", ErrOutOfRange)
		}
		return f.tables[v], nil
	case string:
		for _, t := range f.tables {
			if t.def.Name == v {
				return t, nil
			}
		}
		return nil, wrapErr(KindBounds, -1, "table "+v+" not found", ErrNotFound)
	default:
		return nil, newErr(KindTypeMismatch, -1, "Table expects an int index or a string name")
	}
}

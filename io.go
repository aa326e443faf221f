// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Source is the Block I/O abstraction (§4.1): a readable, seekable byte
// source backing a File. The package ships three implementations,
// mmapSource (the default, for a path), readerAtSource (for a user-supplied
// io.ReaderAt) and bytesSource (for an in-memory buffer), but callers may
// supply their own.
type Source interface {
	// Read copies len(buf) bytes starting at off into buf. A short read is
	// always an error (§4.1: "short reads are fatal").
	Read(buf []byte, off int64) (int, error)

	// Seek repositions the source's internal cursor, mirroring io.Seeker.
	Seek(off int64, whence int) (int64, error)

	// Size returns the total size of the underlying source in bytes.
	Size() (int64, error)

	// Exists reports whether the underlying resource is present.
	Exists() bool

	// IsOpen reports whether the source is still open (Close has not been
	// called).
	IsOpen() bool

	// Close releases any resources held by the source.
	Close() error
}

// mmapSource memory-maps a file read-only, matching the teacher's own
// approach to opening a PE image (file.go's use of github.com/edsrzf/mmap-go).
type mmapSource struct {
	f      *os.File
	data   mmap.MMap
	cursor int64
	path   string
}

// newMmapSource opens and memory-maps path for read-only access.
func newMmapSource(path string) (*mmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(KindIO, -1, "opening database file", err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, wrapErr(KindIO, -1, "memory-mapping database file", err)
	}
	return &mmapSource{f: f, data: data, path: path}, nil
}

func (s *mmapSource) Read(buf []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, newErr(KindIO, off, "read offset outside file")
	}
	n := copy(buf, s.data[off:])
	if n < len(buf) {
		return n, wrapErr(KindIO, off, "short read", io.ErrUnexpectedEOF)
	}
	return n, nil
}

func (s *mmapSource) Seek(off int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.cursor = off
	case io.SeekCurrent:
		s.cursor += off
	case io.SeekEnd:
		s.cursor = int64(len(s.data)) + off
	default:
		return 0, newErr(KindIO, off, "invalid seek whence")
	}
	return s.cursor, nil
}

func (s *mmapSource) Size() (int64, error) { return int64(len(s.data)), nil }

func (s *mmapSource) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *mmapSource) IsOpen() bool { return s.data != nil }

func (s *mmapSource) Close() error {
	if s.data != nil {
		_ = s.data.Unmap()
		s.data = nil
	}
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

// readerAtSource backs OpenReader: a caller-supplied io.ReaderAt (and
// optional io.Closer), for embedding esedb in a program that already has
// the file open or the bytes in memory (§6.2).
type readerAtSource struct {
	r      io.ReaderAt
	closer io.Closer
	size   int64
	cursor int64
	closed bool
}

func newReaderAtSource(r io.ReaderAt, size int64) *readerAtSource {
	closer, _ := r.(io.Closer)
	return &readerAtSource{r: r, closer: closer, size: size}
}

func (s *readerAtSource) Read(buf []byte, off int64) (int, error) {
	if off < 0 || off > s.size {
		return 0, newErr(KindIO, off, "read offset outside source")
	}
	n, err := s.r.ReadAt(buf, off)
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return n, wrapErr(KindIO, off, "short read", err)
	}
	return n, nil
}

func (s *readerAtSource) Seek(off int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.cursor = off
	case io.SeekCurrent:
		s.cursor += off
	case io.SeekEnd:
		s.cursor = s.size + off
	default:
		return 0, newErr(KindIO, off, "invalid seek whence")
	}
	return s.cursor, nil
}

func (s *readerAtSource) Size() (int64, error) { return s.size, nil }

func (s *readerAtSource) Exists() bool { return s.r != nil }

func (s *readerAtSource) IsOpen() bool { return !s.closed }

func (s *readerAtSource) Close() error {
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// bytesSource backs NewBytes: an in-memory buffer, the simplest possible
// Source, used heavily by tests.
type bytesSource struct {
	data   []byte
	cursor int64
	closed bool
}

func newBytesSource(data []byte) *bytesSource {
	return &bytesSource{data: data}
}

func (s *bytesSource) Read(buf []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, newErr(KindIO, off, "read offset outside buffer")
	}
	n := copy(buf, s.data[off:])
	if n < len(buf) {
		return n, wrapErr(KindIO, off, "short read", io.ErrUnexpectedEOF)
	}
	return n, nil
}

func (s *bytesSource) Seek(off int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.cursor = off
	case io.SeekCurrent:
		s.cursor += off
	case io.SeekEnd:
		s.cursor = int64(len(s.data)) + off
	default:
		return 0, newErr(KindIO, off, "invalid seek whence")
	}
	return s.cursor, nil
}

func (s *bytesSource) Size() (int64, error) { return int64(len(s.data)), nil }
func (s *bytesSource) Exists() bool         { return s.data != nil }
func (s *bytesSource) IsOpen() bool         { return !s.closed }
func (s *bytesSource) Close() error         { s.closed = true; return nil }

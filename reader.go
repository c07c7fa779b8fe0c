// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// bufferSize is the size of each of the reader's two scratch buffers.
const bufferSize = 2 << 20 // 2 MiB

// scanDispatch is the whitespace-scan kernel selected once at package init
// by CPU feature detection (see scan_dispatch.go). Reader.ProcessBuffer
// always goes through it, so callers never choose a kernel directly.
var scanDispatch scanKernel = scanScalar

// Reader streams a memory-mapped file one byte at a time through a
// double-buffered scratch-copy protocol, and exposes whitespace-position
// scanning over whichever scratch buffer is currently active.
//
// Go's garbage-collected, moving-capable runtime has no equivalent of
// O_DIRECT unbuffered I/O; Reader approximates the original's
// read-ahead intent with MAP_POPULATE at mmap time and MADV_WILLNEED on
// the backing mapping instead, documented here rather than silently
// dropped.
type Reader struct {
	_ noCopy

	file *os.File

	mapped   []byte // the full file, memory-mapped read-only
	fileSize int

	buf      [2][]byte // two page-aligned scratch copies of the mapped data
	activeBuf int
	frontIdx  int // next unread byte within buf[activeBuf]
	backIdx   int // number of valid bytes copied into buf[activeBuf]

	fileOffset int // byte offset into mapped that backIdx was filled up to

	closed bool
}

// NewReader opens path, memory-maps it read-only, and primes the first
// scratch buffer, mirroring the original's input_init.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrStatFailed, err)
	}
	size := int(info.Size())

	var mapped []byte
	if size > 0 {
		mapped, err = unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE|mmapPopulateFlag)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %v", ErrMmapFailed, err)
		}
		if err := unix.Madvise(mapped, unix.MADV_SEQUENTIAL); err != nil {
			_ = unix.Munmap(mapped)
			_ = f.Close()
			return nil, fmt.Errorf("%w: %v", ErrMadviseFailed, err)
		}
		if err := unix.Madvise(mapped, unix.MADV_WILLNEED); err != nil {
			_ = unix.Munmap(mapped)
			_ = f.Close()
			return nil, fmt.Errorf("%w: %v", ErrMadviseFailed, err)
		}
	}

	r := &Reader{
		file:     f,
		mapped:   mapped,
		fileSize: size,
		buf:      [2][]byte{AlignedMem(bufferSize, PageSize), AlignedMem(bufferSize, PageSize)},
	}
	r.backIdx = copy(r.buf[0], r.mapped)
	r.fileOffset = r.backIdx
	return r, nil
}

// ErrReaderExhausted is returned by NextByte once every byte of the mapped
// file has been delivered.
var ErrReaderExhausted = errors.New("lexpool: reader exhausted")

// NextByte returns the next byte of the underlying file, swapping scratch
// buffers when the active one runs dry, matching the original's
// next_char double-buffer refill protocol. It returns ErrReaderExhausted
// (wrapping io.EOF) once the file has been fully consumed.
func (r *Reader) NextByte() (byte, error) {
	if r.frontIdx >= r.backIdx {
		if r.fileOffset >= r.fileSize {
			return 0, fmt.Errorf("%w: %w", ErrReaderExhausted, io.EOF)
		}
		next := 1 - r.activeBuf
		n := copy(r.buf[next], r.mapped[r.fileOffset:])
		r.fileOffset += n
		r.activeBuf = next
		r.frontIdx = 0
		r.backIdx = n
		if n == 0 {
			return 0, fmt.Errorf("%w: %w", ErrReaderExhausted, io.EOF)
		}
	}
	b := r.buf[r.activeBuf][r.frontIdx]
	r.frontIdx++
	return b, nil
}

// ActiveBuffer returns the unread portion of the currently active scratch
// buffer, for batch-oriented consumers (e.g. ProcessBuffer) that want to
// scan ahead of NextByte rather than pull one byte at a time.
func (r *Reader) ActiveBuffer() []byte {
	return r.buf[r.activeBuf][r.frontIdx:r.backIdx]
}

// ProcessBuffer scans buf for space bytes using whichever kernel was
// selected for the running CPU at package init.
func (r *Reader) ProcessBuffer(buf []byte) ProcessResult {
	return scanDispatch(buf)
}

// Close releases the mapping and the underlying file handle. Matching the
// original's input_cleanup, Close is idempotent: a second call is a no-op
// rather than re-unmapping already-released memory or double-closing the
// file descriptor.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.mapped != nil {
		err = unix.Munmap(r.mapped)
		r.mapped = nil
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is re-exported from iox: returned by Alloc when the pool has
// no slots to give. BatchAlloc does not return it; it reports exhaustion as
// a short count instead. It is the same sentinel the
// teacher's own ring buffer uses for "full" and "empty", reused here for
// "exhausted" — the resource-exhaustion error class of the error taxonomy.
var ErrWouldBlock = iox.ErrWouldBlock

// Argument errors: caller passed a zero or otherwise invalid construction
// parameter. Reported synchronously; no state is mutated before the error
// is returned.
var (
	ErrZeroCapacity = errors.New("lexpool: capacity must be greater than zero")
	ErrBadPointer   = errors.New("lexpool: nil or foreign pointer passed to Free")
)

// I/O errors: reader setup failures. The call site wraps the sentinel with
// fmt.Errorf("%w: %v", sentinel, err), so errors.Is matches the sentinel and
// the underlying syscall error appears only as text. These errors are
// fatal to the reader — the lexer cannot proceed without its source.
var (
	ErrOpenFailed    = errors.New("lexpool: open source file failed")
	ErrStatFailed    = errors.New("lexpool: stat source file failed")
	ErrMmapFailed    = errors.New("lexpool: mmap source file failed")
	ErrMadviseFailed = errors.New("lexpool: madvise source file failed")
)

// ErrPoolLeak is the invariant-violation error raised by Destroy when the
// alloc and free counters disagree; it is fatal, matching the C
// implementation's abort() on the same condition, but Go callers get a
// panic they can choose to recover rather than an unconditional process
// abort.
var ErrPoolLeak = errors.New("lexpool: pool destroyed with outstanding allocations")

// ErrForeignCache is panicked with when a LocalCache is used against a Pool
// other than the one it was created from.
// This is the spec's own recommended fix for its open question about
// cache/pool binding, enforced here instead of left as caller discipline.
var ErrForeignCache = errors.New("lexpool: LocalCache used with a foreign Pool")

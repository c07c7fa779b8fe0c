// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import "golang.org/x/sys/cpu"

// init selects the widest whitespace-scan kernel the running CPU supports,
// mirroring the original's runtime AVX2/SSE4.2/scalar dispatch. Go offers
// no portable access to the vector instructions themselves, so the
// kernels chosen here process progressively more bytes per loop iteration
// using plain 64-bit arithmetic (see scan.go) rather than issuing wider
// vector compares; the dispatch structure is preserved even though the
// per-kernel implementation is not.
func init() {
	switch {
	case cpu.X86.HasAVX2:
		scanDispatch = scanSWAR32
	case cpu.X86.HasSSE42:
		scanDispatch = scanSWAR16
	case cpu.ARM64.HasASIMD:
		scanDispatch = scanSWAR16
	default:
		scanDispatch = scanScalar
	}
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

// AlignUp rounds size up to the next multiple of align. align must be a
// power of two. This is the Go form of the original C ALIGN_UP macro
// (`((size) + (align)-1) & ~((align)-1)`).
func AlignUp(size, align uintptr) uintptr {
	return (size + align - 1) &^ (align - 1)
}

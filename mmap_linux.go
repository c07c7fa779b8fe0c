// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lexpool

import "golang.org/x/sys/unix"

// mmapPopulateFlag prefaults the mapping's page tables at mmap time,
// approximating the original's O_DIRECT-plus-read-ahead intent on the one
// platform that offers it as an mmap flag rather than a syscall of its
// own.
const mmapPopulateFlag = unix.MAP_POPULATE

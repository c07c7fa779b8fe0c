// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package lexpool

// mmapPopulateFlag is a no-op outside Linux: MAP_POPULATE has no portable
// equivalent, so prefaulting relies solely on the MADV_WILLNEED hint
// issued after mapping.
const mmapPopulateFlag = 0

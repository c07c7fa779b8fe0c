// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lexpool_test

// raceEnabled is true when the race detector is active. Concurrency tests
// that scale goroutine/iteration counts use this to stay within a
// reasonable wall-clock budget under the detector's overhead.
const raceEnabled = true

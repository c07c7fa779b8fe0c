// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package lexpool_test

// raceEnabled is the counterpart to race_test.go's build-tagged constant,
// for builds run without the race detector.
const raceEnabled = false

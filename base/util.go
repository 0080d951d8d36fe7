// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

// RangeInt generate a slice [0, ..., n-1].
func RangeInt(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = i
	}
	return a
}

// NewMatrix32 creates a 2D matrix of 32-bit floats.
func NewMatrix32(row, col int) [][]float32 {
	ret := make([][]float32, row)
	for i := range ret {
		ret[i] = make([]float32, col)
	}
	return ret
}

// CopyMatrix32 returns a deep copy of a 2D matrix.
func CopyMatrix32(m [][]float32) [][]float32 {
	ret := make([][]float32, len(m))
	for i := range m {
		ret[i] = make([]float32, len(m[i]))
		copy(ret[i], m[i])
	}
	return ret
}

// MatrixShape returns the number of rows and columns of a 2D matrix. A
// ragged matrix reports -1 columns.
func MatrixShape(m [][]float32) (int, int) {
	if len(m) == 0 {
		return 0, 0
	}
	cols := len(m[0])
	for _, row := range m[1:] {
		if len(row) != cols {
			return len(m), -1
		}
	}
	return len(m), cols
}

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

import (
	"math/rand"
)

// RandomGenerator is a seeded random generator. Every component owns its
// own instance so that results are reproducible for a given seed.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// UniformVector makes a vector filled with uniform random floats in [low, high).
func (rng RandomGenerator) UniformVector(size int, low, high float32) []float32 {
	ret := make([]float32, size)
	scale := high - low
	for i := range ret {
		ret[i] = rng.Float32()*scale + low
	}
	return ret
}

// UniformMatrix makes a matrix filled with uniform random floats in [low, high).
func (rng RandomGenerator) UniformMatrix(row, col int, low, high float32) [][]float32 {
	ret := make([][]float32, row)
	for i := range ret {
		ret[i] = rng.UniformVector(col, low, high)
	}
	return ret
}

// ShuffleInts shuffles a slice of integers in place.
func (rng RandomGenerator) ShuffleInts(a []int) {
	rng.Shuffle(len(a), func(i, j int) {
		a[i], a[j] = a[j], a[i]
	})
}

// Choice draws n distinct elements from a without replacement. The input
// slice is left untouched. If n exceeds len(a), every element is returned
// in random order.
func (rng RandomGenerator) Choice(a []int, n int) []int {
	if n > len(a) {
		n = len(a)
	}
	if n <= 0 {
		return []int{}
	}
	pool := make([]int, len(a))
	copy(pool, a)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

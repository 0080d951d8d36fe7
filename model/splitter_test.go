// Copyright 2020 gorse Project Authors
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

package model

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestSplitter_NaiveSplit(t *testing.T) {
	ratings := dataset.Modulo(10, 8, 3)
	splitter := NewSplitter(ratings, 0)
	train, test := splitter.NaiveSplit(0.2)
	assert.True(t, train.Disjoint(test))
	assert.Equal(t, ratings.Count(), train.Count()+test.Count())
	for u := 0; u < ratings.CountUsers(); u++ {
		rated := ratings.NonZero(u)
		// round(0.2 × 3) = 1, round(0.2 × 2) = 0
		expected := 0
		if len(rated) == 3 {
			expected = 1
		}
		assert.Len(t, splitter.TestIndices(u), expected)
		for _, i := range splitter.TestIndices(u) {
			assert.Equal(t, ratings.Get(u, i), test.Get(u, i))
			assert.Zero(t, train.Get(u, i))
		}
		for i := 0; i < ratings.CountItems(); i++ {
			assert.Equal(t, ratings.Get(u, i), train.Get(u, i)+test.Get(u, i))
		}
	}
	assert.Nil(t, splitter.TestIndices(-1))
}

func TestSplitter_NaiveSplitReproducible(t *testing.T) {
	ratings := dataset.Modulo(30, 20, 2)
	_, testA := NewSplitter(ratings, 1).NaiveSplit(0.5)
	_, testB := NewSplitter(ratings, 1).NaiveSplit(0.5)
	assert.Equal(t, testA.Matrix(), testB.Matrix())
}

func TestSplitter_NaiveSplitEmptyUser(t *testing.T) {
	ratings, err := dataset.FromMatrix([][]float32{{0, 0, 0}, {1, 1, 1}})
	assert.NoError(t, err)
	splitter := NewSplitter(ratings, 0)
	train, test := splitter.NaiveSplit(1)
	assert.Empty(t, splitter.TestIndices(0))
	assert.Equal(t, []int{0, 1, 2}, splitter.TestIndices(1))
	assert.Zero(t, train.Count())
	assert.Equal(t, 3, test.Count())
}

func TestSplitter_KFoldIndices(t *testing.T) {
	ratings := dataset.Modulo(10, 8, 3)
	splitter := NewSplitter(ratings, 0)
	const k = 3
	trainIndices, testIndices, err := splitter.KFoldIndices(k)
	assert.NoError(t, err)
	assert.Equal(t, k, splitter.KFolds())
	assert.Len(t, trainIndices, 10*k)
	assert.Len(t, testIndices, 10*k)
	for u := 0; u < ratings.CountUsers(); u++ {
		rated := mapset.NewSet(ratings.NonZero(u)...)
		covered := mapset.NewSet[int]()
		for f := 0; f < k; f++ {
			test := mapset.NewSet(testIndices[u*k+f]...)
			train := mapset.NewSet(trainIndices[u*k+f]...)
			// train and test partition the items
			assert.Zero(t, test.Intersect(train).Cardinality())
			assert.Equal(t, ratings.CountItems(), test.Cardinality()+train.Cardinality())
			assert.IsIncreasing(t, trainIndices[u*k+f])
			// no rated item is tested twice
			ratedTest := test.Intersect(rated)
			assert.Zero(t, covered.Intersect(ratedTest).Cardinality())
			covered = covered.Union(ratedTest)
			// padded towards round(8/3) = 3 items
			assert.LessOrEqual(t, test.Cardinality(), max(3, ratedTest.Cardinality()))
		}
		assert.True(t, covered.Equal(rated))
	}
}

func TestSplitter_KFoldIndicesDegenerate(t *testing.T) {
	// one rated item and four folds
	ratings, err := dataset.FromMatrix([][]float32{{0, 1, 0, 0, 0, 0, 0, 0}})
	assert.NoError(t, err)
	splitter := NewSplitter(ratings, 0)
	_, testIndices, err := splitter.KFoldIndices(4)
	assert.NoError(t, err)
	ratedCount := 0
	padded := mapset.NewSet[int]()
	for _, test := range testIndices {
		for _, i := range test {
			if i == 1 {
				ratedCount++
			} else {
				assert.False(t, padded.Contains(i))
				padded.Add(i)
			}
		}
	}
	assert.Equal(t, 1, ratedCount)
	// 2 + 2 + 2 padding items, then 1 next to the rated item
	assert.Equal(t, 7, padded.Cardinality())

	_, _, err = splitter.KFoldIndices(1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplitter_GetFold(t *testing.T) {
	ratings := dataset.Modulo(10, 8, 3)
	splitter := NewSplitter(ratings, 0)
	_, _, err := splitter.GetFold(1)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, _, err = splitter.KFoldIndices(3)
	assert.NoError(t, err)
	sum := ratings.ZerosLike()
	for fold := 1; fold <= 3; fold++ {
		train, test, err := splitter.GetFold(fold)
		assert.NoError(t, err)
		assert.True(t, train.Disjoint(test))
		assert.Equal(t, ratings.Count(), train.Count()+test.Count())
		for u := 0; u < ratings.CountUsers(); u++ {
			for i := 0; i < ratings.CountItems(); i++ {
				sum.Set(u, i, sum.Get(u, i)+test.Get(u, i))
			}
		}
	}
	// summed test matrices recover a subset of the rated positions
	for u := 0; u < ratings.CountUsers(); u++ {
		for i := 0; i < ratings.CountItems(); i++ {
			if ratings.Get(u, i) == 0 {
				assert.Zero(t, sum.Get(u, i))
			} else {
				assert.Equal(t, ratings.Get(u, i), sum.Get(u, i))
			}
		}
	}

	_, _, err = splitter.GetFold(0)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, _, err = splitter.GetFold(4)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplitter_GenerateKFoldMatrix(t *testing.T) {
	ratings, err := dataset.FromMatrix([][]float32{{1, 2, 0}, {0, 3, 4}})
	assert.NoError(t, err)
	splitter := NewSplitter(ratings, 0)
	train, test := splitter.GenerateKFoldMatrix([][]int{{0, 2}, {1}}, [][]int{{1}, {0, 2}})
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 3, 0}}, train.Matrix())
	assert.Equal(t, [][]float32{{0, 2, 0}, {0, 0, 4}}, test.Matrix())
}

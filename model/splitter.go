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
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/alsrec/base"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/juju/errors"
)

// Splitter partitions a ratings matrix into train and test matrices. It owns
// its random generator, so splits are reproducible for a given seed.
type Splitter struct {
	ratings     *dataset.Ratings
	rng         base.RandomGenerator
	testIndices [][]int
	// k-fold indices, user-major and fold-minor
	kFolds           int
	foldTrainIndices [][]int
	foldTestIndices  [][]int
}

func NewSplitter(ratings *dataset.Ratings, seed int64) *Splitter {
	return &Splitter{
		ratings: ratings,
		rng:     base.NewRandomGenerator(seed),
	}
}

// NaiveSplit moves round(testFraction × |rated|) randomly chosen ratings of
// every user into the test matrix. A user without ratings keeps an empty
// test selection.
func (s *Splitter) NaiveSplit(testFraction float64) (train, test *dataset.Ratings) {
	train = s.ratings.Clone()
	test = s.ratings.ZerosLike()
	s.testIndices = make([][]int, s.ratings.CountUsers())
	for u := range s.testIndices {
		rated := s.ratings.NonZero(u)
		n := int(math.Round(testFraction * float64(len(rated))))
		chosen := s.rng.Choice(rated, n)
		sort.Ints(chosen)
		for _, i := range chosen {
			test.Set(u, i, s.ratings.Get(u, i))
			train.Set(u, i, 0)
		}
		s.testIndices[u] = chosen
	}
	if !train.Disjoint(test) {
		panic("train and test ratings overlap")
	}
	return
}

// TestIndices returns item indices moved to the test matrix for a user by
// the last NaiveSplit.
func (s *Splitter) TestIndices(userIndex int) []int {
	if userIndex < 0 || userIndex >= len(s.testIndices) {
		return nil
	}
	return s.testIndices[userIndex]
}

// KFolds returns the number of folds of the last KFoldIndices call.
func (s *Splitter) KFolds() int {
	return s.kFolds
}

// KFoldIndices splits the ratings of every user into k folds. Returned lists
// are user-major and fold-minor: entry u*k+f holds the indices of fold f of
// user u, in ascending order.
//
// Rated items are shuffled and cut into k contiguous chunks of
// round(|rated|/k) items, the last chunk taking the remainder. Every test
// set is then padded up to round(n_items/k) items with unrated items drawn
// from a shuffled pool. The pool is consumed across folds, so an unrated
// item pads at most one fold of a user. Padding stops when the pool runs
// out, so fold sizes are balanced only approximately. The train set of a
// fold is every item not in its test set.
func (s *Splitter) KFoldIndices(k int) (trainIndices, testIndices [][]int, err error) {
	if k < 2 {
		return nil, nil, errors.NotValidf("%s = %d", KFolds, k)
	}
	nUsers, nItems := s.ratings.Shape()
	trainIndices = make([][]int, 0, nUsers*k)
	testIndices = make([][]int, 0, nUsers*k)
	target := int(math.Round(float64(nItems) / float64(k)))
	for u := 0; u < nUsers; u++ {
		rated := s.ratings.NonZero(u)
		s.rng.ShuffleInts(rated)
		unrated := s.ratings.Zero(u)
		s.rng.ShuffleInts(unrated)
		chunkSize := int(math.Round(float64(len(rated)) / float64(k)))
		cursor := 0
		for f := 0; f < k; f++ {
			begin := min(f*chunkSize, len(rated))
			end := min(begin+chunkSize, len(rated))
			if f == k-1 {
				end = len(rated)
			}
			test := make([]int, 0, max(target, end-begin))
			test = append(test, rated[begin:end]...)
			for pad := target - len(test); pad > 0 && cursor < len(unrated); pad-- {
				test = append(test, unrated[cursor])
				cursor++
			}
			sort.Ints(test)
			testIndices = append(testIndices, test)
			trainIndices = append(trainIndices, complement(test, nItems))
		}
	}
	s.kFolds = k
	s.foldTrainIndices = trainIndices
	s.foldTestIndices = testIndices
	return trainIndices, testIndices, nil
}

// complement returns indices in [0, n) absent from a, in ascending order.
func complement(a []int, n int) []int {
	mask := bitset.New(uint(n))
	for _, i := range a {
		mask.Set(uint(i))
	}
	ret := make([]int, 0, n-len(a))
	for i := 0; i < n; i++ {
		if !mask.Test(uint(i)) {
			ret = append(ret, i)
		}
	}
	return ret
}

// GenerateKFoldMatrix materializes one fold. trainIndices[u] and
// testIndices[u] list the item indices of user u on each side; ratings at
// those positions are copied, everything else is zero.
func (s *Splitter) GenerateKFoldMatrix(trainIndices, testIndices [][]int) (train, test *dataset.Ratings) {
	train = s.ratings.ZerosLike()
	test = s.ratings.ZerosLike()
	for u := 0; u < s.ratings.CountUsers(); u++ {
		if u < len(trainIndices) {
			for _, i := range trainIndices[u] {
				train.Set(u, i, s.ratings.Get(u, i))
			}
		}
		if u < len(testIndices) {
			for _, i := range testIndices[u] {
				test.Set(u, i, s.ratings.Get(u, i))
			}
		}
	}
	return
}

// GetFold returns the train and test matrices of fold number fold, counted
// from 1 to k.
func (s *Splitter) GetFold(fold int) (train, test *dataset.Ratings, err error) {
	if s.kFolds == 0 {
		return nil, nil, errors.NotValidf("fold %d before k-fold indices are generated", fold)
	}
	if fold < 1 || fold > s.kFolds {
		return nil, nil, errors.NotValidf("fold %d out of [1, %d]", fold, s.kFolds)
	}
	nUsers := s.ratings.CountUsers()
	trainIndices := make([][]int, 0, nUsers)
	testIndices := make([][]int, 0, nUsers)
	for index := fold - 1; index < len(s.foldTestIndices); index += s.kFolds {
		trainIndices = append(trainIndices, s.foldTrainIndices[index])
		testIndices = append(testIndices, s.foldTestIndices[index])
	}
	train, test = s.GenerateKFoldMatrix(trainIndices, testIndices)
	return train, test, nil
}

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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/stretchr/testify/assert"
)

const evalEpsilon = 0.00001

func TestNDCG(t *testing.T) {
	targetSet := mapset.NewSet(1, 3, 5, 7)
	rankList := []int{1, 2, 3, 4, 5}
	assert.InDelta(t, 0.7365896932, NDCG(targetSet, rankList), evalEpsilon)
	assert.Zero(t, NDCG(mapset.NewSet[int](), rankList))
}

func TestMRR(t *testing.T) {
	targetSet := mapset.NewSet(3)
	assert.Equal(t, 1.0/3, MRR(targetSet, []int{1, 2, 3}))
	assert.Zero(t, MRR(targetSet, []int{1, 2}))
}

func TestRecall(t *testing.T) {
	targetSet := mapset.NewSet(1, 3, 5, 7)
	assert.Equal(t, 0.5, Recall(targetSet, []int{1, 2, 3, 4}))
	assert.Zero(t, Recall(mapset.NewSet[int](), []int{1}))
}

func TestTop(t *testing.T) {
	scores := []float32{0.1, 0.9, 0.5, 0.9, 0.3}
	assert.Equal(t, []int{1, 3, 2}, Top(scores, 3, nil))
	assert.Equal(t, []int{3, 2, 4}, Top(scores, 3, mapset.NewSet(1)))
	assert.Len(t, Top(scores, 10, nil), 5)
}

func TestRoundPredictions(t *testing.T) {
	rounded := RoundPredictions([][]float32{{0.49, 0.5, 1.2}, {-1, 0, 0.7}})
	assert.Equal(t, [][]float32{{0, 1, 1}, {0, 0, 1}}, rounded)
}

func TestRankingEvaluator_GetRMSE(t *testing.T) {
	ratings, err := dataset.FromMatrix([][]float32{{1, 0}, {0, 1}})
	assert.NoError(t, err)
	evaluator := NewEvaluator(ratings)
	assert.Zero(t, evaluator.GetRMSE([][]float32{{1, 0}, {0, 1}}, ratings))
	assert.InDelta(t, math.Sqrt(0.5), evaluator.GetRMSE([][]float32{{0, 0}, {0, 0}}, ratings), evalEpsilon)
	assert.Zero(t, evaluator.GetRMSE(nil, dataset.NewRatings(0, 0)))
}

func TestRankingEvaluator_CalculateRecall(t *testing.T) {
	data, err := dataset.FromMatrix([][]float32{{1, 0, 1}, {0, 1, 1}})
	assert.NoError(t, err)
	evaluator := NewEvaluator(data)
	assert.Equal(t, 0.5, evaluator.CalculateRecall(data, [][]float32{{1, 1, 0}, {0, 1, 0}}))
	assert.Zero(t, evaluator.CalculateRecall(dataset.NewRatings(2, 3), [][]float32{{1, 1, 1}, {1, 1, 1}}))
}

func TestRankingEvaluator_Ranking(t *testing.T) {
	ratings, err := dataset.FromMatrix([][]float32{
		{1, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 0},
	})
	assert.NoError(t, err)
	predictions := [][]float32{
		{0.9, 0.1, 0.8, 0.2},
		{0.5, 0.4, 0.3, 0.2},
		{0.1, 0.2, 0.3, 0.4},
	}
	evaluator := NewEvaluator(ratings)
	// user 0 ranks [0 2 3 1], user 1 ranks [0 1 2 3], user 2 has no relevant items
	assert.InDelta(t, (0.5+0)/2, evaluator.RecallAtX(1, predictions), evalEpsilon)
	assert.InDelta(t, (1+1.0/3)/2, evaluator.CalculateMRR(3, predictions), evalEpsilon)
	ndcgUser0 := (1 + 1/math.Log2(5)) / (1 + 1/math.Log2(3))
	assert.InDelta(t, (ndcgUser0+0.5)/2, evaluator.CalculateNDCG(4, predictions), evalEpsilon)

	// held-out item 1 of user 0, item 0 of user 0 is excluded from ranking
	test, err := dataset.FromMatrix([][]float32{
		{0, 1, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	assert.NoError(t, err)
	evaluator.SetTestData(test)
	// user 0 ranks [2 3 1]
	assert.InDelta(t, 1.0/3, evaluator.CalculateMRR(3, predictions), evalEpsilon)
	assert.Zero(t, evaluator.RecallAtX(2, predictions))
	assert.Equal(t, 1.0, evaluator.RecallAtX(3, predictions))

	evaluator.LoadTopRecommendations(2, predictions)
	assert.Equal(t, [][]int{{2, 3}, {0, 1}, {3, 2}}, evaluator.TopRecommendations())
}

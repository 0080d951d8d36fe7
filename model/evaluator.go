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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/samber/lo"
)

// RoundingThreshold turns predicted scores into binary recommendations.
const RoundingThreshold = 0.5

// Evaluator computes accuracy and ranking metrics of dense predictions.
// Metrics are only reported and never affect training.
type Evaluator interface {
	GetRMSE(predictions [][]float32, ratings *dataset.Ratings) float64
	CalculateRecall(data *dataset.Ratings, roundedPredictions [][]float32) float64
	RecallAtX(x int, predictions [][]float32) float64
	CalculateMRR(k int, predictions [][]float32) float64
	CalculateNDCG(k int, predictions [][]float32) float64
	LoadTopRecommendations(n int, predictions [][]float32)
}

// RankingEvaluator evaluates predictions against a ratings matrix. Once a
// held-out test matrix is set, ranking metrics treat test ratings as
// relevant and skip items observed in the remaining ratings.
type RankingEvaluator struct {
	ratings         *dataset.Ratings
	test            *dataset.Ratings
	recommendations [][]int
}

func NewEvaluator(ratings *dataset.Ratings) *RankingEvaluator {
	return &RankingEvaluator{ratings: ratings}
}

// SetTestData sets held-out ratings used as relevance by ranking metrics.
func (e *RankingEvaluator) SetTestData(test *dataset.Ratings) {
	e.test = test
}

// GetRMSE returns the root mean squared error over every entry of ratings.
func (e *RankingEvaluator) GetRMSE(predictions [][]float32, ratings *dataset.Ratings) float64 {
	nUsers, nItems := ratings.Shape()
	if nUsers*nItems == 0 {
		return 0
	}
	var sum float64
	for u := 0; u < nUsers; u++ {
		row := ratings.Row(u)
		for i := range row {
			diff := float64(predictions[u][i]) - float64(row[i])
			sum += diff * diff
		}
	}
	return math.Sqrt(sum / float64(nUsers*nItems))
}

// CalculateRecall returns the fraction of observed entries of data that
// are recommended by rounded predictions.
func (e *RankingEvaluator) CalculateRecall(data *dataset.Ratings, roundedPredictions [][]float32) float64 {
	var hit, count float64
	for u := 0; u < data.CountUsers(); u++ {
		for _, i := range data.NonZero(u) {
			hit += float64(roundedPredictions[u][i])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return hit / count
}

func (e *RankingEvaluator) RecallAtX(x int, predictions [][]float32) float64 {
	return e.evaluate(x, predictions, Recall)
}

func (e *RankingEvaluator) CalculateMRR(k int, predictions [][]float32) float64 {
	return e.evaluate(k, predictions, MRR)
}

func (e *RankingEvaluator) CalculateNDCG(k int, predictions [][]float32) float64 {
	return e.evaluate(k, predictions, NDCG)
}

// LoadTopRecommendations ranks the top n candidates of every user.
func (e *RankingEvaluator) LoadTopRecommendations(n int, predictions [][]float32) {
	e.recommendations = make([][]int, e.ratings.CountUsers())
	for u := range e.recommendations {
		e.recommendations[u] = Top(predictions[u], n, e.excluded(u))
	}
}

// TopRecommendations returns the lists ranked by the last LoadTopRecommendations.
func (e *RankingEvaluator) TopRecommendations() [][]int {
	return e.recommendations
}

// relevant returns the items a user should be recommended.
func (e *RankingEvaluator) relevant(userIndex int) mapset.Set[int] {
	if e.test != nil {
		return mapset.NewThreadUnsafeSet(e.test.NonZero(userIndex)...)
	}
	return mapset.NewThreadUnsafeSet(e.ratings.NonZero(userIndex)...)
}

// excluded returns observed items which are not held out.
func (e *RankingEvaluator) excluded(userIndex int) mapset.Set[int] {
	if e.test == nil {
		return mapset.NewThreadUnsafeSet[int]()
	}
	observed := mapset.NewThreadUnsafeSet(e.ratings.NonZero(userIndex)...)
	return observed.Difference(e.relevant(userIndex))
}

func (e *RankingEvaluator) evaluate(n int, predictions [][]float32, scorer Scorer) float64 {
	var sum, count float64
	for u := 0; u < e.ratings.CountUsers(); u++ {
		targetSet := e.relevant(u)
		if targetSet.Cardinality() == 0 {
			continue
		}
		rankList := Top(predictions[u], n, e.excluded(u))
		sum += scorer(targetSet, rankList)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// Top returns indices of the n highest scores, skipping excluded indices.
// A nil exclude set skips nothing.
// Ties keep the lower index first.
func Top(scores []float32, n int, exclude mapset.Set[int]) []int {
	candidates := lo.Filter(lo.Range(len(scores)), func(i int, _ int) bool {
		return exclude == nil || !exclude.Contains(i)
	})
	sort.SliceStable(candidates, func(a, b int) bool {
		return scores[candidates[a]] > scores[candidates[b]]
	})
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}

// RoundPredictions marks predictions reaching RoundingThreshold with 1.
func RoundPredictions(predictions [][]float32) [][]float32 {
	rounded := make([][]float32, len(predictions))
	for u := range predictions {
		rounded[u] = make([]float32, len(predictions[u]))
		for i, p := range predictions[u] {
			if p >= RoundingThreshold {
				rounded[u][i] = 1
			}
		}
	}
	return rounded
}

// Scorer scores a ranked list against the set of relevant items.
type Scorer func(targetSet mapset.Set[int], rankList []int) float64

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int], rankList []int) float64 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := 0.0
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math.Log2(float64(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} \frac {rel_i} {\log_2(i+1)}
	dcg := 0.0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRR means Mean Reciprocal Rank.
func MRR(targetSet mapset.Set[int], rankList []int) float64 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// Recall is the fraction of relevant items found in the ranked list.
func Recall(targetSet mapset.Set[int], rankList []int) float64 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float64(hit) / float64(targetSet.Cardinality())
}

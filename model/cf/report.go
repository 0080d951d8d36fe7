// Copyright 2025 gorse Project Authors
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

package cf

import (
	"fmt"

	"github.com/gorse-io/alsrec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Report summarizes a trained model.
type Report struct {
	RMSE        float64
	TrainRecall float64
	TestRecall  float64
	TopX        int
	RecallAtX   float64
	// Ratio is the number of recommended items over the number of ratings.
	Ratio float64
	Ks    []int
	MRR   []float64
	NDCG  []float64
}

// Report evaluates the current factors. Recall of rounded predictions is
// computed on the train and test matrices and ranking metrics on the
// held-out ratings.
func (als *ALS) Report() Report {
	predictions := als.GetPredictions()
	rounded := model.RoundPredictions(predictions)
	als.evaluator.LoadTopRecommendations(als.topX, predictions)
	report := Report{
		RMSE:        als.evaluator.GetRMSE(predictions, als.ratings),
		TrainRecall: als.evaluator.CalculateRecall(als.trainData, rounded),
		TestRecall:  als.evaluator.CalculateRecall(als.testData, rounded),
		TopX:        als.topX,
		RecallAtX:   als.evaluator.RecallAtX(als.topX, predictions),
		Ks:          als.ks,
	}
	recommendations := lo.SumBy(rounded, func(row []float32) float64 {
		return float64(lo.Sum(row))
	})
	if likes := als.ratings.Sum(); likes > 0 {
		report.Ratio = recommendations / likes
	}
	for _, k := range als.ks {
		report.MRR = append(report.MRR, als.evaluator.CalculateMRR(k, predictions))
		report.NDCG = append(report.NDCG, als.evaluator.CalculateNDCG(k, predictions))
	}
	return report
}

func (r Report) Fields() []zap.Field {
	fields := []zap.Field{
		zap.Float64("rmse", r.RMSE),
		zap.Float64("train_recall", r.TrainRecall),
		zap.Float64("test_recall", r.TestRecall),
		zap.Float64(fmt.Sprintf("recall@%d", r.TopX), r.RecallAtX),
		zap.Float64("ratio", r.Ratio),
	}
	for i, k := range r.Ks {
		fields = append(fields,
			zap.Float64(fmt.Sprintf("mrr@%d", k), r.MRR[i]),
			zap.Float64(fmt.Sprintf("ndcg@%d", k), r.NDCG[i]))
	}
	return fields
}

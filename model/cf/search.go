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
	"context"
	"fmt"
	"strconv"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/base/progress"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/gorse-io/alsrec/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Score is the mean of fold scores of cross validation.
type Score struct {
	TrainRecall float64
	TestRecall  float64
	RMSE        float64
}

// CrossValidate trains a model on every k-fold split of ratings and
// averages recall of rounded predictions on train and test folds.
func CrossValidate(ctx context.Context, ratings *dataset.Ratings, hyper model.Hyperparameters, options model.Options) (Score, error) {
	folds, err := CrossValidateFolds(ctx, ratings, hyper, options)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return MeanScore(folds), nil
}

// CrossValidateFolds returns the score of each fold.
func CrossValidateFolds(ctx context.Context, ratings *dataset.Ratings, hyper model.Hyperparameters, options model.Options) ([]Score, error) {
	als, err := NewALS(ratings, hyper, options, model.Flags{}, nil, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	evaluator := model.NewEvaluator(ratings)
	newCtx, span := progress.Start(ctx, "CrossValidate", options.KFolds)
	scores := make([]Score, 0, options.KFolds)
	for fold := 1; fold <= options.KFolds; fold++ {
		train, test, err := als.GetFold(fold)
		if err == nil {
			err = als.SetTrainData(train)
		}
		if err == nil {
			err = errors.Annotatef(als.Train(newCtx), "fold %d", fold)
		}
		if err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		predictions := als.GetPredictions()
		rounded := model.RoundPredictions(predictions)
		score := Score{
			TrainRecall: evaluator.CalculateRecall(train, rounded),
			TestRecall:  evaluator.CalculateRecall(test, rounded),
			RMSE:        evaluator.GetRMSE(predictions, ratings),
		}
		log.Logger().Debug(fmt.Sprintf("cross validate (%d/%d)", fold, options.KFolds),
			zap.String("hyperparameters", hyper.Key()),
			zap.Float64("train_recall", score.TrainRecall),
			zap.Float64("test_recall", score.TestRecall),
			zap.Float64("rmse", score.RMSE))
		scores = append(scores, score)
		span.Add(1)
	}
	span.End()
	return scores, nil
}

// MeanScore averages scores field by field.
func MeanScore(scores []Score) Score {
	if len(scores) == 0 {
		return Score{}
	}
	n := float64(len(scores))
	return Score{
		TrainRecall: lo.SumBy(scores, func(s Score) float64 { return s.TrainRecall }) / n,
		TestRecall:  lo.SumBy(scores, func(s Score) float64 { return s.TestRecall }) / n,
		RMSE:        lo.SumBy(scores, func(s Score) float64 { return s.RMSE }) / n,
	}
}

// ParamsSearchResult contains the return of hyperparameter search.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams model.Params
	BestIndex  int
	Scores     []Score
	Params     []model.Params
}

// AddScore records a trial. The first trial with the highest test recall wins.
func (r *ParamsSearchResult) AddScore(params model.Params, score Score) {
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params.Copy())
	if len(r.Scores) == 1 || score.TestRecall > r.BestScore.TestRecall {
		r.BestScore = score
		r.BestParams = params.Copy()
		r.BestIndex = len(r.Params) - 1
	}
	SearchTrialsTotal.Inc()
	BestScore.Set(r.BestScore.TestRecall)
}

// Errors returns scores keyed by the canonical form of hyperparameters.
func (r *ParamsSearchResult) Errors() map[string]Score {
	errs := make(map[string]Score, len(r.Scores))
	for i, params := range r.Params {
		if hyper, err := model.NewHyperparameters(params); err == nil {
			errs[hyper.Key()] = r.Scores[i]
		}
	}
	return errs
}

// GridSearchCV cross validates every combination in the grid.
func GridSearchCV(ctx context.Context, ratings *dataset.Ratings, grid model.ParamsGrid, options model.Options) (ParamsSearchResult, error) {
	combinations := grid.Combinations()
	results := ParamsSearchResult{
		Scores: make([]Score, 0, len(combinations)),
		Params: make([]model.Params, 0, len(combinations)),
	}
	if len(combinations) == 0 {
		return results, errors.NotValidf("empty params grid")
	}
	newCtx, span := progress.Start(ctx, "GridSearchCV", len(combinations))
	for i, params := range combinations {
		log.Logger().Info(fmt.Sprintf("grid search (%v/%v)", i+1, len(combinations)),
			zap.Any("params", params))
		hyper, err := model.NewHyperparameters(params)
		if err != nil {
			span.Fail(err)
			return results, errors.Trace(err)
		}
		score, err := CrossValidate(newCtx, ratings, hyper, options)
		if err != nil {
			span.Fail(err)
			return results, errors.Trace(err)
		}
		results.AddScore(params, score)
		span.Add(1)
	}
	span.End()
	return results, nil
}

// RandomSearchCV samples numTrials combinations with a TPE sampler. A grid
// with no more combinations than trials is searched exhaustively.
func RandomSearchCV(ctx context.Context, ratings *dataset.Ratings, grid model.ParamsGrid, options model.Options,
	numTrials int) (ParamsSearchResult, error) {
	if grid.NumCombinations() <= numTrials {
		return GridSearchCV(ctx, ratings, grid, options)
	}
	search := newGridSearch(ctx, ratings, grid, options)
	study, err := goptuna.CreateStudy("RandomSearchCV",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(options.RandomState))))
	if err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	_, search.span = progress.Start(ctx, "RandomSearchCV", numTrials)
	if err = study.Optimize(search.Objective, numTrials); err == nil {
		err = search.err
	}
	if err != nil {
		search.span.Fail(err)
		return search.results, errors.Trace(err)
	}
	search.span.End()
	return search.results, nil
}

// gridSearch suggests grid values as categorical choices. Each distinct
// combination is cross validated once.
type gridSearch struct {
	ctx     context.Context
	ratings *dataset.Ratings
	grid    model.ParamsGrid
	options model.Options
	span    *progress.Span
	scores  map[string]Score
	results ParamsSearchResult
	// first failure of cross validation
	err error
}

func newGridSearch(ctx context.Context, ratings *dataset.Ratings, grid model.ParamsGrid, options model.Options) *gridSearch {
	return &gridSearch{
		ctx:     ctx,
		ratings: ratings,
		grid:    grid,
		options: options,
		scores:  make(map[string]Score),
	}
}

func (s *gridSearch) suggestParams(trial goptuna.Trial) (model.Params, error) {
	params := model.Params{}
	for _, name := range s.grid.Names() {
		values := s.grid[name]
		choices := make([]string, len(values))
		for i := range values {
			choices[i] = strconv.Itoa(i)
		}
		choice, err := trial.SuggestCategorical(string(name), choices)
		if err != nil {
			return nil, errors.Trace(err)
		}
		index, err := strconv.Atoi(choice)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params[name] = values[index]
	}
	return params, nil
}

func (s *gridSearch) Objective(trial goptuna.Trial) (float64, error) {
	params, err := s.suggestParams(trial)
	if err != nil {
		return 0, err
	}
	hyper, err := model.NewHyperparameters(params)
	if err != nil {
		return 0, errors.Trace(err)
	}
	score, exist := s.scores[hyper.Key()]
	if !exist {
		log.Logger().Info(fmt.Sprintf("random search (%v/%v)", len(s.results.Scores)+1, s.grid.NumCombinations()),
			zap.Any("params", params))
		if score, err = CrossValidate(s.ctx, s.ratings, hyper, s.options); err != nil {
			if s.err == nil {
				s.err = err
			}
			return 0, errors.Trace(err)
		}
		s.scores[hyper.Key()] = score
		s.results.AddScore(params, score)
	}
	if s.span != nil {
		s.span.Add(1)
	}
	return score.TestRecall, nil
}

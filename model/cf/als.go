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
	"time"

	"github.com/gorse-io/alsrec/base"
	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/base/progress"
	"github.com/gorse-io/alsrec/common/floats"
	"github.com/gorse-io/alsrec/common/parallel"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/storage/factors"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when the regularized Gram matrix cannot be
// factorized. It only happens without regularization.
const ErrSingularMatrix = errors.ConstError("singular matrix")

// Axis selects which factor matrix a half-step solves for.
type Axis int

const (
	User Axis = iota
	Item
)

func (axis Axis) String() string {
	switch axis {
	case User:
		return "user"
	case Item:
		return "item"
	}
	return fmt.Sprintf("Axis(%d)", int(axis))
}

// Default cutoffs of the training report.
const DefaultTopX = 200

var DefaultKs = []int{5, 10}

type testDataSetter interface {
	SetTestData(test *dataset.Ratings)
}

// ALS factorizes a dense ratings matrix R into user factors P and item
// factors Q by alternating least squares:
//
//	p_u = (QᵀQ + λI)⁻¹ Qᵀ r_u
//	q_i = (PᵀP + λI)⁻¹ Pᵀ r_i
//
// Every entry of R takes part in the loss, zeros included.
type ALS struct {
	hyper     model.Hyperparameters
	options   model.Options
	flags     model.Flags
	store     factors.Store
	evaluator model.Evaluator
	rng       base.RandomGenerator

	ratings   *dataset.Ratings
	splitter  *model.Splitter
	trainData *dataset.Ratings
	testData  *dataset.Ratings

	userFactors [][]float32
	itemFactors [][]float32
	iterations  int

	topX int
	ks   []int
}

// NewALS creates an ALS model. The ratings are split into train and test
// matrices and k-fold indices are generated right away. A nil store keeps
// nothing and a nil evaluator falls back to a RankingEvaluator.
func NewALS(ratings *dataset.Ratings, hyper model.Hyperparameters, options model.Options, flags model.Flags,
	store factors.Store, evaluator model.Evaluator) (*ALS, error) {
	if err := hyper.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := options.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if ratings == nil || ratings.CountUsers() == 0 || ratings.CountItems() == 0 {
		return nil, errors.NotValidf("empty ratings")
	}
	if store == nil {
		store = factors.NoStore{}
	}
	if evaluator == nil {
		evaluator = model.NewEvaluator(ratings)
	}
	als := &ALS{
		hyper:     hyper,
		options:   options,
		flags:     flags,
		store:     store,
		evaluator: evaluator,
		rng:       base.NewRandomGenerator(options.RandomState),
		ratings:   ratings,
		splitter:  model.NewSplitter(ratings, options.RandomState),
		topX:      DefaultTopX,
		ks:        DefaultKs,
	}
	als.trainData, als.testData = als.splitter.NaiveSplit(options.TestFraction)
	if _, _, err := als.splitter.KFoldIndices(options.KFolds); err != nil {
		return nil, errors.Trace(err)
	}
	if setter, ok := evaluator.(testDataSetter); ok {
		setter.SetTestData(als.testData)
	}
	return als, nil
}

// SetEvaluation sets the cutoffs used by the training report.
func (als *ALS) SetEvaluation(topX int, ks []int) {
	als.topX = topX
	als.ks = ks
}

// SetTrainData replaces the matrix the model is fitted on, e.g. with a
// cross validation fold.
func (als *ALS) SetTrainData(train *dataset.Ratings) error {
	nUsers, nItems := als.ratings.Shape()
	if rows, cols := train.Shape(); rows != nUsers || cols != nItems {
		return errors.NotValidf("train data of shape (%d, %d), expect (%d, %d)", rows, cols, nUsers, nItems)
	}
	als.trainData = train
	return nil
}

func (als *ALS) GetTrainData() *dataset.Ratings {
	return als.trainData
}

func (als *ALS) GetTestData() *dataset.Ratings {
	return als.testData
}

func (als *ALS) Splitter() *model.Splitter {
	return als.splitter
}

// GetFold returns the train and test matrices of a fold in [1, k].
func (als *ALS) GetFold(fold int) (train, test *dataset.Ratings, err error) {
	return als.splitter.GetFold(fold)
}

func (als *ALS) GetUserFactors() [][]float32 {
	return als.userFactors
}

func (als *ALS) GetItemFactors() [][]float32 {
	return als.itemFactors
}

func (als *ALS) Hyperparameters() model.Hyperparameters {
	return als.hyper
}

// Iterations returns the number of iterations run by this model.
func (als *ALS) Iterations() int {
	return als.iterations
}

// Step solves one factor matrix with the other one fixed. Rows are
// independent and solved in parallel.
func (als *ALS) Step(ctx context.Context, axis Axis) error {
	if als.userFactors == nil || als.itemFactors == nil {
		return errors.NotValidf("step before factors are initialized")
	}
	var (
		latent, fixed [][]float32
		ratings       func(int) []float32
	)
	switch axis {
	case User:
		latent, fixed, ratings = als.userFactors, als.itemFactors, als.trainData.Row
	case Item:
		latent, fixed, ratings = als.itemFactors, als.userFactors, als.trainData.Column
	default:
		return errors.NotValidf("axis %v", axis)
	}
	start := time.Now()
	var cholesky mat.Cholesky
	if ok := cholesky.Factorize(gram(fixed, als.hyper.NFactors, als.hyper.Lambda)); !ok {
		return errors.Annotatef(ErrSingularMatrix, "%v step with %s = %v", axis, model.Lambda, als.hyper.Lambda)
	}
	// λ > 0 keeps FᵀF + λI positive definite, so conditioning only matters without it.
	if cond := cholesky.Cond(); als.hyper.Lambda == 0 && cond > mat.ConditionTolerance {
		return errors.Annotatef(ErrSingularMatrix, "%v step with condition number %g", axis, cond)
	}
	nFactors := als.hyper.NFactors
	nWorkers := min(als.options.NJobs, len(latent))
	rhs := make([][]float32, nWorkers)
	for i := range rhs {
		rhs[i] = make([]float32, nFactors)
	}
	err := parallel.Parallel(ctx, len(latent), nWorkers, func(workerId, jobId int) error {
		// b = rᵀ·fixed
		b := rhs[workerId]
		floats.Zero(b)
		for j, r := range ratings(jobId) {
			if r != 0 {
				floats.MulConstAdd(fixed[j], r, b)
			}
		}
		vec := mat.NewVecDense(nFactors, nil)
		for f := range b {
			vec.SetVec(f, float64(b[f]))
		}
		var x mat.VecDense
		if err := cholesky.SolveVecTo(&x, vec); err != nil {
			return errors.Annotatef(ErrSingularMatrix, "%v %d: %v", axis, jobId, err)
		}
		for f := range latent[jobId] {
			latent[jobId][f] = float32(x.AtVec(f))
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	if !floats.IsFinite(latent) {
		return errors.Annotatef(ErrSingularMatrix, "%v step produced non-finite factors", axis)
	}
	StepSeconds.WithLabelValues(axis.String()).Observe(time.Since(start).Seconds())
	return nil
}

// gram returns FᵀF + λI.
func gram(fixed [][]float32, nFactors int, lambda float64) *mat.SymDense {
	data := make([]float64, 0, len(fixed)*nFactors)
	for _, row := range fixed {
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	g := mat.NewSymDense(nFactors, nil)
	g.SymOuterK(1, mat.NewDense(len(fixed), nFactors, data).T())
	for f := 0; f < nFactors; f++ {
		g.SetSym(f, f, g.At(f, f)+lambda)
	}
	return g
}

// PartialTrain runs n more iterations on the current factors. Each
// iteration updates user factors and then item factors.
func (als *ALS) PartialTrain(ctx context.Context, n int) error {
	_, span := progress.Start(ctx, "ALS.PartialTrain", n)
	for it := 1; it <= n; it++ {
		if als.flags.Verbose {
			log.Logger().Info("current iteration",
				zap.Int("iteration", it),
				zap.Float64("rmse", als.evaluator.GetRMSE(als.GetPredictions(), als.ratings)))
		}
		for _, axis := range []Axis{User, Item} {
			if err := als.Step(ctx, axis); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
		}
		als.iterations++
		IterationsTotal.Inc()
		span.Add(1)
	}
	span.End()
	return nil
}

// Train fits the model from scratch. With LoadMatrices set, persisted
// factors of the same hyperparameters are used as the starting point and,
// unless TrainMore is set, as the final model. Missing or misshaped factors
// are initialized randomly instead. With DumpMatrices set, both factor
// matrices are saved afterwards.
func (als *ALS) Train(ctx context.Context) error {
	return als.TrainWithItemFactors(ctx, nil)
}

// TrainWithItemFactors is Train with item factors supplied by the caller,
// e.g. learned by a content model. Only user factors are initialized or
// loaded.
func (als *ALS) TrainWithItemFactors(ctx context.Context, itemFactors [][]float32) error {
	nUsers, nItems := als.ratings.Shape()
	nFactors := als.hyper.NFactors
	if itemFactors != nil {
		if rows, cols := base.MatrixShape(itemFactors); rows != nItems || cols != nFactors {
			return errors.NotValidf("item factors of shape (%d, %d), expect (%d, %d)", rows, cols, nItems, nFactors)
		}
	}
	log.Logger().Info("fit als",
		zap.Int("n_users", nUsers),
		zap.Int("n_items", nItems),
		zap.String("hyperparameters", als.hyper.Key()),
		zap.Int("n_iterations", als.options.NIterations),
		zap.Bool("load_matrices", als.flags.LoadMatrices),
		zap.Bool("train_more", als.flags.TrainMore))
	als.iterations = 0
	found := als.initFactors(ctx, itemFactors)

	if !found || als.flags.TrainMore {
		if err := als.PartialTrain(ctx, als.options.NIterations); err != nil {
			return errors.Trace(err)
		}
	} else {
		log.Logger().Info("factors found, skip training")
	}

	if als.flags.DumpMatrices {
		als.store.SetConfig(als.hyper, als.options.NIterations)
		if err := als.store.SaveMatrix(ctx, als.userFactors, factors.UserVecs); err != nil {
			return errors.Trace(err)
		}
		if err := als.store.SaveMatrix(ctx, als.itemFactors, factors.ItemVecs); err != nil {
			return errors.Trace(err)
		}
	}
	if als.flags.Verbose {
		report := als.Report()
		log.Logger().Info("fit als complete", report.Fields()...)
	}
	return nil
}

// initFactors initializes factors randomly or loads persisted ones. It
// reports whether both factor matrices were loaded or supplied.
func (als *ALS) initFactors(ctx context.Context, itemFactors [][]float32) bool {
	nUsers, nItems := als.ratings.Shape()
	nFactors := als.hyper.NFactors
	if !als.flags.LoadMatrices {
		als.userFactors = als.rng.UniformMatrix(nUsers, nFactors, 0, 1)
		if itemFactors == nil {
			als.itemFactors = als.rng.UniformMatrix(nItems, nFactors, 0, 1)
		} else {
			als.itemFactors = base.CopyMatrix32(itemFactors)
		}
		return false
	}
	var usersFound, itemsFound bool
	als.userFactors, usersFound = als.store.LoadMatrix(ctx, als.hyper, factors.UserVecs, nUsers, nFactors)
	if !usersFound {
		als.userFactors = als.rng.UniformMatrix(nUsers, nFactors, 0, 1)
	}
	if itemFactors == nil {
		als.itemFactors, itemsFound = als.store.LoadMatrix(ctx, als.hyper, factors.ItemVecs, nItems, nFactors)
		if !itemsFound {
			als.itemFactors = als.rng.UniformMatrix(nItems, nFactors, 0, 1)
		}
	} else {
		als.itemFactors, itemsFound = base.CopyMatrix32(itemFactors), true
	}
	log.Logger().Info("load factors",
		zap.Bool("user_vecs_found", usersFound),
		zap.Bool("item_vecs_found", itemsFound))
	return usersFound && itemsFound
}

// Predict returns the predicted rating of a user on an item.
func (als *ALS) Predict(userIndex, itemIndex int) float32 {
	return floats.Dot(als.userFactors[userIndex], als.itemFactors[itemIndex])
}

// GetPredictions returns P·Qᵀ. Every entry equals Predict exactly.
func (als *ALS) GetPredictions() [][]float32 {
	predictions := make([][]float32, len(als.userFactors))
	for u := range predictions {
		predictions[u] = make([]float32, len(als.itemFactors))
		for i := range predictions[u] {
			predictions[u][i] = als.Predict(u, i)
		}
	}
	return predictions
}

// RoundedPredictions returns 1 for every prediction reaching
// model.RoundingThreshold and 0 otherwise.
func (als *ALS) RoundedPredictions() [][]float32 {
	return model.RoundPredictions(als.GetPredictions())
}

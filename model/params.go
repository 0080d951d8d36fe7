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
	"fmt"
	"hash/fnv"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

const (
	NFactors     ParamName = "n_factors"
	Lambda       ParamName = "_lambda"
	NIterations  ParamName = "n_iterations"
	KFolds       ParamName = "k_folds"
	TestFraction ParamName = "test_fraction"
	NJobs        ParamName = "n_jobs"
	RandomState  ParamName = "random_state"
)

const (
	DefaultKFolds       = 5
	DefaultTestFraction = 0.2
)

// Params stores hyper-parameters and options by name, for example:
//
//	model.Params{
//		model.NFactors:    5,
//		model.Lambda:      0.01,
//		model.NIterations: 20,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params, len(parameters))
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets an integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		if i, ok := toInt(val); ok {
			return i
		}
		log.Logger().Error("type mismatch",
			zap.String("param", string(name)),
			zap.String("expect", "int"),
			zap.String("actual", reflect.TypeOf(val).String()))
	}
	return _default
}

// GetInt64 gets an int64 parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat64 gets a float parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		if f, ok := toFloat64(val); ok {
			return f
		}
		log.Logger().Error("type mismatch",
			zap.String("param", string(name)),
			zap.String("expect", "float64"),
			zap.String("actual", reflect.TypeOf(val).String()))
	}
	return _default
}

func toInt(val interface{}) (int, bool) {
	switch val := val.(type) {
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case float64:
		// values suggested by hyperparameter optimizers arrive as floats
		if val == math.Trunc(val) {
			return int(val), true
		}
	}
	return 0, false
}

func toFloat64(val interface{}) (float64, bool) {
	switch val := val.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

// Hyperparameters of the ALS model. They identify persisted factor matrices.
type Hyperparameters struct {
	NFactors int
	Lambda   float64
}

// NewHyperparameters reads n_factors and _lambda, both required.
func NewHyperparameters(params Params) (Hyperparameters, error) {
	var hyper Hyperparameters
	val, exist := params[NFactors]
	if !exist {
		return hyper, errors.NotValidf("missing hyperparameter %s", NFactors)
	}
	var ok bool
	if hyper.NFactors, ok = toInt(val); !ok {
		return hyper, errors.NotValidf("hyperparameter %s of type %T", NFactors, val)
	}
	if val, exist = params[Lambda]; !exist {
		return hyper, errors.NotValidf("missing hyperparameter %s", Lambda)
	}
	if hyper.Lambda, ok = toFloat64(val); !ok {
		return hyper, errors.NotValidf("hyperparameter %s of type %T", Lambda, val)
	}
	return hyper, hyper.Validate()
}

func (hyper Hyperparameters) Validate() error {
	if hyper.NFactors <= 0 {
		return errors.NotValidf("%s = %d", NFactors, hyper.NFactors)
	}
	if hyper.Lambda < 0 || math.IsNaN(hyper.Lambda) || math.IsInf(hyper.Lambda, 0) {
		return errors.NotValidf("%s = %v", Lambda, hyper.Lambda)
	}
	return nil
}

// Key is the canonical text form, e.g. "_lambda:0.01,n_factors:5".
func (hyper Hyperparameters) Key() string {
	return fmt.Sprintf("%s:%s,%s:%d", Lambda, strconv.FormatFloat(hyper.Lambda, 'g', -1, 64), NFactors, hyper.NFactors)
}

// Fingerprint is a stable storage key derived from the hyperparameters only.
func (hyper Hyperparameters) Fingerprint() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(hyper.Key()))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Options control training and validation. They do not identify models.
type Options struct {
	NIterations  int
	KFolds       int
	TestFraction float64
	NJobs        int
	RandomState  int64
}

// NewOptions reads n_iterations (required), k_folds, test_fraction, n_jobs and random_state.
func NewOptions(params Params) (Options, error) {
	var opts Options
	val, exist := params[NIterations]
	if !exist {
		return opts, errors.NotValidf("missing option %s", NIterations)
	}
	var ok bool
	if opts.NIterations, ok = toInt(val); !ok {
		return opts, errors.NotValidf("option %s of type %T", NIterations, val)
	}
	opts.KFolds = params.GetInt(KFolds, DefaultKFolds)
	opts.TestFraction = params.GetFloat64(TestFraction, DefaultTestFraction)
	opts.NJobs = params.GetInt(NJobs, 1)
	opts.RandomState = params.GetInt64(RandomState, 0)
	return opts, opts.Validate()
}

func (opts Options) Validate() error {
	if opts.NIterations <= 0 {
		return errors.NotValidf("%s = %d", NIterations, opts.NIterations)
	}
	if opts.KFolds < 2 {
		return errors.NotValidf("%s = %d", KFolds, opts.KFolds)
	}
	if opts.TestFraction < 0 || opts.TestFraction > 1 || math.IsNaN(opts.TestFraction) {
		return errors.NotValidf("%s = %v", TestFraction, opts.TestFraction)
	}
	if opts.NJobs < 1 {
		return errors.NotValidf("%s = %d", NJobs, opts.NJobs)
	}
	return nil
}

// Flags toggle verbose reporting and persistence of factor matrices.
type Flags struct {
	Verbose      bool
	LoadMatrices bool
	DumpMatrices bool
	TrainMore    bool
}

// NewParamsFromConfig converts the [model] section into parameters.
func NewParamsFromConfig(cfg config.ModelConfig) Params {
	return Params{
		NFactors:     cfg.NFactors,
		Lambda:       cfg.Lambda,
		NIterations:  cfg.NIterations,
		KFolds:       cfg.KFolds,
		TestFraction: cfg.TestFraction,
		NJobs:        cfg.NJobs,
		RandomState:  cfg.RandomState,
	}
}

func NewFlagsFromConfig(cfg config.ModelConfig) Flags {
	return Flags{
		Verbose:      cfg.Verbose,
		LoadMatrices: cfg.LoadMatrices,
		DumpMatrices: cfg.DumpMatrices,
		TrainMore:    cfg.TrainMore,
	}
}

// ParamsGrid contains candidates for grid search.
type ParamsGrid map[ParamName][]interface{}

// NewParamsGridFromConfig builds the lambda × n_factors grid of the [search] section.
func NewParamsGridFromConfig(cfg config.SearchConfig) ParamsGrid {
	grid := ParamsGrid{}
	for _, v := range cfg.Lambdas {
		grid[Lambda] = append(grid[Lambda], v)
	}
	for _, v := range cfg.NFactors {
		grid[NFactors] = append(grid[NFactors], v)
	}
	return grid
}

func (grid ParamsGrid) Len() int {
	return len(grid)
}

// NumCombinations returns the number of parameter combinations.
func (grid ParamsGrid) NumCombinations() int {
	if len(grid) == 0 {
		return 0
	}
	count := 1
	for _, values := range grid {
		count *= len(values)
	}
	return count
}

// Names returns parameter names in ascending order.
func (grid ParamsGrid) Names() []ParamName {
	names := make([]ParamName, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Combinations enumerates every combination, the last name varying fastest.
func (grid ParamsGrid) Combinations() []Params {
	if grid.NumCombinations() == 0 {
		return nil
	}
	names := grid.Names()
	combinations := make([]Params, 0, grid.NumCombinations())
	var dfs func(deep int, params Params)
	dfs = func(deep int, params Params) {
		if deep == len(names) {
			combinations = append(combinations, params.Copy())
			return
		}
		for _, val := range grid[names[deep]] {
			params[names[deep]] = val
			dfs(deep+1, params)
		}
	}
	dfs(0, Params{})
	return combinations
}

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

package factors

import (
	"context"
	"io"
	"sync"

	"github.com/gorse-io/alsrec/base"
	"github.com/gorse-io/alsrec/base/encoding"
	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/config"
	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Names of persisted factor matrices.
const (
	UserVecs = "user_vecs"
	ItemVecs = "item_vecs"

	configName = "config"
)

// ErrShapeMismatch is returned when a stored matrix differs from the expected shape.
const ErrShapeMismatch = errors.ConstError("shape mismatch")

// Store persists factor matrices keyed by the fingerprint of hyperparameters.
//
// LoadMatrix never fails: a missing, unreadable or misshaped matrix is
// reported as not found so that training falls back to random initialization.
// SaveMatrix writes under the hyperparameters recorded by the latest SetConfig.
type Store interface {
	LoadMatrix(ctx context.Context, hyper model.Hyperparameters, name string, rows, cols int) ([][]float32, bool)
	SaveMatrix(ctx context.Context, m [][]float32, name string) error
	SetConfig(hyper model.Hyperparameters, nIterations int)
	LoadConfig(ctx context.Context, hyper model.Hyperparameters) (Config, error)
}

// Config describes the model that produced a set of persisted matrices.
type Config struct {
	NFactors    int
	Lambda      float64
	NIterations int
}

func NewConfig(hyper model.Hyperparameters, nIterations int) Config {
	return Config{NFactors: hyper.NFactors, Lambda: hyper.Lambda, NIterations: nIterations}
}

func (c Config) Hyperparameters() model.Hyperparameters {
	return model.Hyperparameters{NFactors: c.NFactors, Lambda: c.Lambda}
}

// configHolder keeps the config set by SetConfig.
type configHolder struct {
	mu     sync.RWMutex
	config *Config
}

func (h *configHolder) SetConfig(hyper model.Hyperparameters, nIterations int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := NewConfig(hyper, nIterations)
	h.config = &c
}

func (h *configHolder) current() (Config, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.config == nil {
		return Config{}, errors.NotValidf("saving matrices before SetConfig")
	}
	return *h.config, nil
}

// Encode writes the shape of a matrix followed by its rows.
func Encode(w io.Writer, m [][]float32) error {
	rows, cols := base.MatrixShape(m)
	if cols < 0 {
		return errors.NotValidf("ragged matrix")
	}
	if err := encoding.WriteShape(w, rows, cols); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteMatrix(w, m)
}

// Decode reads a matrix written by Encode and checks its shape.
func Decode(r io.Reader, rows, cols int) ([][]float32, error) {
	actualRows, actualCols, err := encoding.ReadShape(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if actualRows != rows || actualCols != cols {
		return nil, errors.Annotatef(ErrShapeMismatch, "expect (%d, %d), got (%d, %d)", rows, cols, actualRows, actualCols)
	}
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	if err = encoding.ReadMatrix(r, m); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// observeLoad reports the outcome of loading a matrix and tells whether it was found.
func observeLoad(hyper model.Hyperparameters, name string, err error) bool {
	switch {
	case err == nil:
		LoadMatrixTotal.WithLabelValues(resultFound).Inc()
		return true
	case errors.Is(err, errors.NotFound):
		LoadMatrixTotal.WithLabelValues(resultMissing).Inc()
		log.Logger().Debug("matrix not found", zap.String("name", name), zap.String("hyperparameters", hyper.Key()))
	case errors.Is(err, ErrShapeMismatch):
		LoadMatrixTotal.WithLabelValues(resultMismatch).Inc()
		log.Logger().Warn("shape mismatch, fall back to random initialization",
			zap.String("name", name), zap.String("hyperparameters", hyper.Key()), zap.Error(err))
	default:
		LoadMatrixTotal.WithLabelValues(resultFailed).Inc()
		log.Logger().Warn("failed to load matrix, fall back to random initialization",
			zap.String("name", name), zap.String("hyperparameters", hyper.Key()), zap.Error(err))
	}
	return false
}

// Open creates the store selected by the [storage] section. A positive
// cache_ttl wraps it in an in-memory cache.
func Open(cfg config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "", "none":
		return NoStore{}, nil
	case "redis":
		store, err = NewRedisStore(cfg.Redis.URL, cfg.Prefix)
	default:
		var b blob.Store
		if b, err = blob.Open(cfg); err == nil {
			store = NewBlobStore(b, cfg.Prefix)
		}
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.CacheTTL > 0 {
		store = NewCachedStore(store, cfg.CacheTTL)
	}
	return store, nil
}

// NoStore never finds a matrix and discards saved ones.
type NoStore struct{}

func (NoStore) LoadMatrix(context.Context, model.Hyperparameters, string, int, int) ([][]float32, bool) {
	return nil, false
}

func (NoStore) SaveMatrix(context.Context, [][]float32, string) error {
	return nil
}

func (NoStore) SetConfig(model.Hyperparameters, int) {}

func (NoStore) LoadConfig(_ context.Context, hyper model.Hyperparameters) (Config, error) {
	return Config{}, errors.NotFoundf("config of %s", hyper.Key())
}

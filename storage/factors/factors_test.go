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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gorse-io/alsrec/config"
	"github.com/gorse-io/alsrec/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

var testHyper = model.Hyperparameters{NFactors: 2, Lambda: 0.01}

func testMatrix() [][]float32 {
	return [][]float32{{1, 2}, {3, 4}, {5, 6}}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Encode(&buf, testMatrix()))
	m, err := Decode(bytes.NewReader(buf.Bytes()), 3, 2)
	assert.NoError(t, err)
	assert.Equal(t, testMatrix(), m)

	// shape mismatch
	_, err = Decode(bytes.NewReader(buf.Bytes()), 2, 3)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	// truncated stream
	_, err = Decode(bytes.NewReader(buf.Bytes()[:20]), 3, 2)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrShapeMismatch))

	// ragged matrix
	assert.True(t, errors.Is(Encode(&buf, [][]float32{{1}, {1, 2}}), errors.NotValid))
}

func TestNoStore(t *testing.T) {
	ctx := context.Background()
	var store Store = NoStore{}
	store.SetConfig(testHyper, 10)
	assert.NoError(t, store.SaveMatrix(ctx, testMatrix(), UserVecs))
	_, ok := store.LoadMatrix(ctx, testHyper, UserVecs, 3, 2)
	assert.False(t, ok)
	_, err := store.LoadConfig(ctx, testHyper)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestOpen(t *testing.T) {
	store, err := Open(config.StorageConfig{Backend: "none"})
	assert.NoError(t, err)
	assert.IsType(t, NoStore{}, store)

	store, err = Open(config.StorageConfig{Backend: "posix", Dir: t.TempDir()})
	assert.NoError(t, err)
	assert.IsType(t, &BlobStore{}, store)

	store, err = Open(config.StorageConfig{Backend: "posix", Dir: t.TempDir(), CacheTTL: time.Minute})
	assert.NoError(t, err)
	assert.IsType(t, &CachedStore{}, store)

	_, err = Open(config.StorageConfig{Backend: "redis", Redis: config.RedisConfig{URL: "mysql://"}})
	assert.Error(t, err)

	_, err = Open(config.StorageConfig{Backend: "ftp"})
	assert.True(t, errors.Is(err, errors.NotSupported))
}

// testStore checks the contract shared by every persistent store.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	// nothing saved yet
	_, ok := store.LoadMatrix(ctx, testHyper, UserVecs, 3, 2)
	assert.False(t, ok)

	// save before SetConfig
	assert.True(t, errors.Is(store.SaveMatrix(ctx, testMatrix(), UserVecs), errors.NotValid))

	store.SetConfig(testHyper, 20)
	assert.NoError(t, store.SaveMatrix(ctx, testMatrix(), UserVecs))
	assert.NoError(t, store.SaveMatrix(ctx, [][]float32{{7, 8}}, ItemVecs))

	m, ok := store.LoadMatrix(ctx, testHyper, UserVecs, 3, 2)
	assert.True(t, ok)
	assert.Equal(t, testMatrix(), m)
	m, ok = store.LoadMatrix(ctx, testHyper, ItemVecs, 1, 2)
	assert.True(t, ok)
	assert.Equal(t, [][]float32{{7, 8}}, m)

	// shape mismatch
	_, ok = store.LoadMatrix(ctx, testHyper, UserVecs, 2, 3)
	assert.False(t, ok)

	// other hyperparameters
	_, ok = store.LoadMatrix(ctx, model.Hyperparameters{NFactors: 2, Lambda: 0.1}, UserVecs, 3, 2)
	assert.False(t, ok)

	cfg, err := store.LoadConfig(ctx, testHyper)
	assert.NoError(t, err)
	assert.Equal(t, Config{NFactors: 2, Lambda: 0.01, NIterations: 20}, cfg)
	assert.Equal(t, testHyper, cfg.Hyperparameters())
	_, err = store.LoadConfig(ctx, model.Hyperparameters{NFactors: 3, Lambda: 0.01})
	assert.True(t, errors.Is(err, errors.NotFound))
}

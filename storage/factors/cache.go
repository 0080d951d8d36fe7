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
	"path"
	"time"

	"github.com/gorse-io/alsrec/base"
	"github.com/gorse-io/alsrec/model"
	"github.com/jellydator/ttlcache/v3"
)

// CachedStore keeps recently loaded or saved matrices in memory for a while.
// Cached matrices are copied on the way in and out.
type CachedStore struct {
	Store
	saving configHolder
	cache  *ttlcache.Cache[string, [][]float32]
}

func NewCachedStore(store Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: store,
		cache: ttlcache.New(ttlcache.WithTTL[string, [][]float32](ttl)),
	}
}

func cacheKey(hyper model.Hyperparameters, name string) string {
	return path.Join(hyper.Fingerprint(), name)
}

func (c *CachedStore) LoadMatrix(ctx context.Context, hyper model.Hyperparameters, name string, rows, cols int) ([][]float32, bool) {
	if item := c.cache.Get(cacheKey(hyper, name)); item != nil {
		m := item.Value()
		if r, k := base.MatrixShape(m); r == rows && k == cols {
			CacheHitsTotal.Inc()
			return base.CopyMatrix32(m), true
		}
	}
	m, ok := c.Store.LoadMatrix(ctx, hyper, name, rows, cols)
	if ok {
		c.cache.Set(cacheKey(hyper, name), base.CopyMatrix32(m), ttlcache.DefaultTTL)
	}
	return m, ok
}

func (c *CachedStore) SaveMatrix(ctx context.Context, m [][]float32, name string) error {
	if err := c.Store.SaveMatrix(ctx, m, name); err != nil {
		return err
	}
	if cfg, err := c.saving.current(); err == nil {
		c.cache.Set(cacheKey(cfg.Hyperparameters(), name), base.CopyMatrix32(m), ttlcache.DefaultTTL)
	}
	return nil
}

func (c *CachedStore) SetConfig(hyper model.Hyperparameters, nIterations int) {
	c.saving.SetConfig(hyper, nIterations)
	c.Store.SetConfig(hyper, nIterations)
}

// Len returns the number of cached matrices.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}

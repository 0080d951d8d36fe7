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
	"strings"
	"time"

	"github.com/gorse-io/alsrec/base/encoding"
	"github.com/gorse-io/alsrec/model"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore saves each matrix as a string value under <prefix>:<fingerprint>:<name>.
type RedisStore struct {
	configHolder
	client *redis.Client
	prefix string
}

func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid redis url")
	}
	return &RedisStore{client: redis.NewClient(opt), prefix: prefix}, nil
}

// Close redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(hyper model.Hyperparameters, name string) string {
	parts := []string{hyper.Fingerprint(), name}
	if r.prefix != "" {
		parts = append([]string{r.prefix}, parts...)
	}
	return strings.Join(parts, ":")
}

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFoundf("key %s", key)
	}
	return data, errors.Trace(err)
}

func (r *RedisStore) LoadMatrix(ctx context.Context, hyper model.Hyperparameters, name string, rows, cols int) ([][]float32, bool) {
	var m [][]float32
	data, err := r.get(ctx, r.key(hyper, name))
	if err == nil {
		m, err = Decode(bytes.NewReader(data), rows, cols)
	}
	return m, observeLoad(hyper, name, err)
}

func (r *RedisStore) SaveMatrix(ctx context.Context, m [][]float32, name string) error {
	start := time.Now()
	cfg, err := r.current()
	if err != nil {
		return errors.Trace(err)
	}
	var matrix, config bytes.Buffer
	if err = Encode(&matrix, m); err != nil {
		return errors.Trace(err)
	}
	if err = encoding.WriteGob(&config, cfg); err != nil {
		return errors.Trace(err)
	}
	hyper := cfg.Hyperparameters()
	p := r.client.TxPipeline()
	p.Set(ctx, r.key(hyper, name), matrix.Bytes(), 0)
	p.Set(ctx, r.key(hyper, configName), config.Bytes(), 0)
	if _, err = p.Exec(ctx); err != nil {
		return errors.Annotatef(err, "failed to save %s", name)
	}
	SaveMatrixSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (r *RedisStore) LoadConfig(ctx context.Context, hyper model.Hyperparameters) (Config, error) {
	var cfg Config
	data, err := r.get(ctx, r.key(hyper, configName))
	if err != nil {
		return cfg, err
	}
	err = encoding.ReadGob(bytes.NewReader(data), &cfg)
	return cfg, errors.Trace(err)
}

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
	"path"
	"time"

	"github.com/gorse-io/alsrec/base/encoding"
	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/storage/blob"
	"github.com/juju/errors"
)

// BlobStore saves each matrix as an object named <prefix>/<fingerprint>/<name>.
type BlobStore struct {
	configHolder
	blob   blob.Store
	prefix string
}

func NewBlobStore(b blob.Store, prefix string) *BlobStore {
	return &BlobStore{blob: b, prefix: prefix}
}

func (s *BlobStore) key(hyper model.Hyperparameters, name string) string {
	return path.Join(s.prefix, hyper.Fingerprint(), name)
}

func (s *BlobStore) LoadMatrix(ctx context.Context, hyper model.Hyperparameters, name string, rows, cols int) ([][]float32, bool) {
	m, err := s.loadMatrix(ctx, hyper, name, rows, cols)
	return m, observeLoad(hyper, name, err)
}

func (s *BlobStore) loadMatrix(ctx context.Context, hyper model.Hyperparameters, name string, rows, cols int) ([][]float32, error) {
	r, err := s.blob.Open(ctx, s.key(hyper, name))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	return Decode(r, rows, cols)
}

func (s *BlobStore) SaveMatrix(ctx context.Context, m [][]float32, name string) error {
	start := time.Now()
	cfg, err := s.current()
	if err != nil {
		return errors.Trace(err)
	}
	hyper := cfg.Hyperparameters()
	if err = s.write(ctx, s.key(hyper, name), func(w io.Writer) error {
		return Encode(w, m)
	}); err != nil {
		return errors.Annotatef(err, "failed to save %s", name)
	}
	if err = s.write(ctx, s.key(hyper, configName), func(w io.Writer) error {
		return encoding.WriteGob(w, cfg)
	}); err != nil {
		return errors.Annotatef(err, "failed to save config of %s", name)
	}
	SaveMatrixSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (s *BlobStore) write(ctx context.Context, name string, encode func(w io.Writer) error) error {
	w, done, err := s.blob.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = encode(w); err != nil {
		// abort the upload instead of committing a truncated object
		if pw, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-done)
}

func (s *BlobStore) LoadConfig(ctx context.Context, hyper model.Hyperparameters) (Config, error) {
	var cfg Config
	r, err := s.blob.Open(ctx, s.key(hyper, configName))
	if err != nil {
		return cfg, errors.Trace(err)
	}
	defer r.Close()
	err = encoding.ReadGob(r, &cfg)
	return cfg, errors.Trace(err)
}

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

package blob

import (
	"context"
	"io"

	"github.com/gorse-io/alsrec/config"
	"github.com/juju/errors"
)

// Store is a flat namespace of named objects. Open returns an error satisfying
// errors.Is(err, errors.NotFound) when the object does not exist.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create returns a writer and a done channel. Once the writer is closed,
	// done receives the result of committing the object and is then closed.
	Create(ctx context.Context, name string) (io.WriteCloser, chan error, error)
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// Open creates a blob store for the configured backend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "posix":
		return NewPOSIX(cfg.Dir), nil
	case "s3":
		return NewS3(cfg.S3)
	case "gcs":
		return NewGCS(cfg.GCS)
	case "azure":
		return NewAzureBlob(cfg.Azure, cfg.Azure.Container, cfg.Azure.Prefix)
	}
	return nil, errors.NotSupportedf("blob backend %q", cfg.Backend)
}

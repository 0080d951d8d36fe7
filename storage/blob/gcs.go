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
	"os"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/alsrec/config"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSEmulatorEndpoint points the client at a storage emulator without authentication.
const GCSEmulatorEndpoint = "GCS_EMULATOR_ENDPOINT"

type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if emulator := os.Getenv(GCSEmulatorEndpoint); emulator != "" {
		opts = append(opts, option.WithEndpoint(emulator))
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name))
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.NotFoundf("blob %s", name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func (g *GCS) Create(ctx context.Context, name string) (io.WriteCloser, chan error, error) {
	ctx, cancel := context.WithCancel(ctx)
	wc := g.object(name).NewWriter(ctx)
	done := make(chan error, 1)
	return &gcsWriter{Writer: wc, cancel: cancel, done: done}, done, nil
}

// gcsWriter commits the object on Close and reports the result on done.
type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
	done   chan error
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	err := errors.Trace(w.Writer.Close())
	w.done <- err
	close(w.done)
	return err
}

// CloseWithError aborts the upload by cancelling its context.
func (w *gcsWriter) CloseWithError(cause error) error {
	w.cancel()
	_ = w.Writer.Close()
	w.done <- cause
	close(w.done)
	return nil
}

func (g *GCS) List(ctx context.Context) ([]string, error) {
	var names []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: g.prefix,
	})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		name := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, g.prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *GCS) Remove(ctx context.Context, name string) error {
	err := g.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.NotFoundf("blob %s", name)
	}
	return errors.Trace(err)
}

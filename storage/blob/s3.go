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
	"path"
	"sort"
	"strings"

	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type S3 struct {
	*minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config) (*S3, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{
		Client: minioClient,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3) key(name string) string {
	return path.Join(s.prefix, name)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Open a file in S3 for reading.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	// GetObject is lazy, stat first to report missing objects early.
	if _, err := s.Client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, errors.NotFoundf("blob %s", name)
		}
		return nil, errors.Trace(err)
	}
	object, err := s.Client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return object, nil
}

// Create a new file in S3 for writing. The upload streams from a pipe and the
// done channel receives the result of PutObject.
func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, chan error, error) {
	fullPath := s.key(name)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := s.Client.PutObject(ctx, s.bucket, fullPath, pr, -1, minio.PutObjectOptions{})
		if err != nil {
			_ = pr.CloseWithError(err)
			log.Logger().Error("failed to upload file to S3", zap.String("file", fullPath), zap.Error(err))
		}
		done <- errors.Trace(err)
	}()
	return pw, done, nil
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	var names []string
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	for object := range s.Client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		names = append(names, strings.TrimPrefix(object.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3) Remove(ctx context.Context, name string) error {
	return errors.Trace(s.Client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}))
}

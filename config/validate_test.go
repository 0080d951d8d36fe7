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

package config

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateStorage(t *testing.T) {
	cases := []struct {
		storage StorageConfig
		valid   bool
	}{
		{StorageConfig{Backend: "none"}, true},
		{StorageConfig{Backend: "posix"}, false},
		{StorageConfig{Backend: "posix", Dir: "/tmp"}, true},
		{StorageConfig{Backend: "s3", S3: S3Config{Endpoint: "localhost:9000"}}, false},
		{StorageConfig{Backend: "s3", S3: S3Config{Endpoint: "localhost:9000", Bucket: "b"}}, true},
		{StorageConfig{Backend: "gcs"}, false},
		{StorageConfig{Backend: "gcs", GCS: GCSConfig{Bucket: "b"}}, true},
		{StorageConfig{Backend: "azure", Azure: AzureBlobConfig{Container: "c"}}, false},
		{StorageConfig{Backend: "azure", Azure: AzureBlobConfig{Container: "c", AccountName: "a", AccountKey: "k"}}, true},
		{StorageConfig{Backend: "redis"}, false},
		{StorageConfig{Backend: "redis", Redis: RedisConfig{URL: "redis://localhost:6379"}}, true},
	}
	for _, c := range cases {
		config := GetDefaultConfig()
		config.Storage = c.storage
		err := config.Validate()
		if c.valid {
			assert.NoError(t, err, c.storage.Backend)
		} else {
			assert.True(t, errors.Is(err, errors.NotValid), c.storage.Backend)
		}
	}
}

func TestValidateSearch(t *testing.T) {
	config := GetDefaultConfig()
	config.Search.Lambdas = nil
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config = GetDefaultConfig()
	config.Search.NFactors = []int{0}
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config = GetDefaultConfig()
	config.Evaluation.Ks = []int{-1}
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
}

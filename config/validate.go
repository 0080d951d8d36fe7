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
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and backend specific settings. Errors
// satisfy errors.Is(err, errors.NotValid).
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fieldError := range fieldErrors {
				messages = append(messages, fieldError.Namespace()+" "+fieldError.Tag()+" "+fieldError.Param())
			}
			return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	return config.Storage.validate()
}

func (storage *StorageConfig) validate() error {
	switch storage.Backend {
	case "posix":
		if storage.Dir == "" {
			return errors.NotValidf("empty storage.dir for posix backend")
		}
	case "s3":
		if storage.S3.Endpoint == "" || storage.S3.Bucket == "" {
			return errors.NotValidf("storage.s3 without endpoint or bucket")
		}
	case "gcs":
		if storage.GCS.Bucket == "" {
			return errors.NotValidf("storage.gcs without bucket")
		}
	case "azure":
		if storage.Azure.Container == "" {
			return errors.NotValidf("storage.azure without container")
		}
		if storage.Azure.ConnectionString == "" && (storage.Azure.AccountName == "" || storage.Azure.AccountKey == "") {
			return errors.NotValidf("storage.azure without connection_string or account credentials")
		}
	case "redis":
		if storage.Redis.URL == "" {
			return errors.NotValidf("storage.redis without url")
		}
	}
	return nil
}

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
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const envPrefix = "ALSREC"

// Config is the configuration for training and evaluating an ALS model.
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Search     SearchConfig     `mapstructure:"search"`
}

// ModelConfig contains hyperparameters, training options and flags.
type ModelConfig struct {
	NFactors     int     `mapstructure:"n_factors" validate:"gt=0"`
	Lambda       float64 `mapstructure:"lambda" validate:"gte=0"`
	NIterations  int     `mapstructure:"n_iterations" validate:"gt=0"`
	KFolds       int     `mapstructure:"k_folds" validate:"gte=2"`
	TestFraction float64 `mapstructure:"test_fraction" validate:"gte=0,lte=1"`
	NJobs        int     `mapstructure:"n_jobs" validate:"gte=1"`
	RandomState  int64   `mapstructure:"random_state"`
	Verbose      bool    `mapstructure:"verbose"`
	LoadMatrices bool    `mapstructure:"load_matrices"`
	DumpMatrices bool    `mapstructure:"dump_matrices"`
	TrainMore    bool    `mapstructure:"train_more"`
}

// StorageConfig selects where factor matrices are persisted.
type StorageConfig struct {
	Backend  string          `mapstructure:"backend" validate:"oneof=none posix s3 gcs azure redis"`
	Dir      string          `mapstructure:"dir"`
	Prefix   string          `mapstructure:"prefix"`
	CacheTTL time.Duration   `mapstructure:"cache_ttl" validate:"gte=0"`
	S3       S3Config        `mapstructure:"s3"`
	GCS      GCSConfig       `mapstructure:"gcs"`
	Azure    AzureBlobConfig `mapstructure:"azure"`
	Redis    RedisConfig     `mapstructure:"redis"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// EvaluationConfig contains cutoffs of ranking metrics.
type EvaluationConfig struct {
	TopX int   `mapstructure:"top_x" validate:"gt=0"`
	Ks   []int `mapstructure:"ks" validate:"dive,gt=0"`
}

// SearchConfig contains the hyperparameter grid for model search.
type SearchConfig struct {
	Lambdas  []float64 `mapstructure:"lambdas" validate:"min=1,dive,gte=0"`
	NFactors []int     `mapstructure:"n_factors" validate:"min=1,dive,gt=0"`
	Trials   int       `mapstructure:"trials" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			NFactors:     20,
			Lambda:       0.1,
			NIterations:  20,
			KFolds:       5,
			TestFraction: 0.2,
			NJobs:        1,
		},
		Storage: StorageConfig{
			Backend: "none",
			Dir:     "matrices",
		},
		Evaluation: EvaluationConfig{
			TopX: 200,
			Ks:   []int{5, 10},
		},
		Search: SearchConfig{
			Lambdas:  []float64{0, 0.01, 0.1, 0.5, 10, 100},
			NFactors: []int{20, 40, 100, 200, 300},
			Trials:   10,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.lambda", defaultConfig.Model.Lambda)
	v.SetDefault("model.n_iterations", defaultConfig.Model.NIterations)
	v.SetDefault("model.k_folds", defaultConfig.Model.KFolds)
	v.SetDefault("model.test_fraction", defaultConfig.Model.TestFraction)
	v.SetDefault("model.n_jobs", defaultConfig.Model.NJobs)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	v.SetDefault("model.load_matrices", defaultConfig.Model.LoadMatrices)
	v.SetDefault("model.dump_matrices", defaultConfig.Model.DumpMatrices)
	v.SetDefault("model.train_more", defaultConfig.Model.TrainMore)
	// [storage]
	v.SetDefault("storage.backend", defaultConfig.Storage.Backend)
	v.SetDefault("storage.dir", defaultConfig.Storage.Dir)
	v.SetDefault("storage.prefix", defaultConfig.Storage.Prefix)
	v.SetDefault("storage.cache_ttl", defaultConfig.Storage.CacheTTL)
	for _, key := range []string{
		"s3.endpoint", "s3.access_key_id", "s3.secret_access_key", "s3.bucket", "s3.prefix",
		"gcs.bucket", "gcs.prefix", "gcs.credentials_file",
		"azure.connection_string", "azure.account_name", "azure.account_key", "azure.endpoint",
		"azure.container", "azure.prefix", "redis.url",
	} {
		v.SetDefault("storage."+key, "")
	}
	v.SetDefault("storage.s3.use_ssl", false)
	// [evaluation]
	v.SetDefault("evaluation.top_x", defaultConfig.Evaluation.TopX)
	v.SetDefault("evaluation.ks", defaultConfig.Evaluation.Ks)
	// [search]
	v.SetDefault("search.lambdas", defaultConfig.Search.Lambdas)
	v.SetDefault("search.n_factors", defaultConfig.Search.NFactors)
	v.SetDefault("search.trials", defaultConfig.Search.Trials)
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. Every key
// can be overridden by an environment variable such as ALSREC_MODEL_N_FACTORS.
// An empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

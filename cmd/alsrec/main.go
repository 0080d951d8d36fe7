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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/cmd/version"
	"github.com/gorse-io/alsrec/config"
	"github.com/gorse-io/alsrec/dataset"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "alsrec",
	Short: "Collaborative filtering by alternating least squares.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsPath, _ := cmd.Flags().GetString("metrics-path"); metricsPath != "" {
			if err := prometheus.WriteToTextfile(metricsPath, prometheus.DefaultGatherer); err != nil {
				log.Logger().Error("failed to write metrics", zap.String("path", metricsPath), zap.Error(err))
			}
		}
		log.CloseLogger()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	flags := rootCommand.PersistentFlags()
	log.AddFlags(flags)
	flags.Bool("debug", false, "use debug log mode")
	flags.String("metrics-path", "", "write prometheus metrics to this file on exit")
	addFlags(flags)
	rootCommand.AddCommand(versionCommand, trainCommand, cvCommand, searchCommand)
}

func addFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "configuration file path")
	// data
	flags.String("load-csv", "", "load ratings from CSV file")
	flags.String("csv-sep", ",", "separator of CSV file")
	flags.Bool("csv-header", false, "skip the header of CSV file")
	flags.Int("demo-users", 10, "number of users of the demo ratings")
	flags.Int("demo-items", 8, "number of items of the demo ratings")
	// model
	flags.Int("n-factors", 0, "number of latent factors")
	flags.Float64("lambda", 0, "regularization strength")
	flags.Int("n-iterations", 0, "number of iterations")
	flags.Int("k-folds", 0, "number of folds")
	flags.Int("jobs", 0, "number of jobs for solving factors")
	flags.Int64("seed", 0, "random seed")
}

// loadConfig loads the config file and applies model flags on top of it.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if flags.Changed("n-factors") {
		cfg.Model.NFactors, _ = flags.GetInt("n-factors")
	}
	if flags.Changed("lambda") {
		cfg.Model.Lambda, _ = flags.GetFloat64("lambda")
	}
	if flags.Changed("n-iterations") {
		cfg.Model.NIterations, _ = flags.GetInt("n-iterations")
	}
	if flags.Changed("k-folds") {
		cfg.Model.KFolds, _ = flags.GetInt("k-folds")
	}
	if flags.Changed("jobs") {
		cfg.Model.NJobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("seed") {
		cfg.Model.RandomState, _ = flags.GetInt64("seed")
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// loadRatings loads ratings from a CSV file, or builds the demo matrix
// R[u][i] = 1 if (u+i) % 3 == 0.
func loadRatings(flags *pflag.FlagSet) (*dataset.Ratings, error) {
	if path, _ := flags.GetString("load-csv"); path != "" {
		sep, _ := flags.GetString("csv-sep")
		header, _ := flags.GetBool("csv-header")
		return dataset.LoadCSV(path, sep, header)
	}
	nUsers, _ := flags.GetInt("demo-users")
	nItems, _ := flags.GetInt("demo-items")
	if nUsers <= 0 || nItems <= 0 {
		return nil, errors.NotValidf("demo ratings of shape (%d, %d)", nUsers, nItems)
	}
	return dataset.Modulo(nUsers, nItems, 3), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

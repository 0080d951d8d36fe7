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
	"fmt"
	"os"
	"time"

	"github.com/gorse-io/alsrec/base/encoding"
	"github.com/gorse-io/alsrec/base/log"
	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/model/cf"
	"github.com/gorse-io/alsrec/storage/factors"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model and report its metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Model.Verbose, _ = cmd.Flags().GetBool("verbose")
		}
		if cmd.Flags().Changed("load") {
			cfg.Model.LoadMatrices, _ = cmd.Flags().GetBool("load")
		}
		if cmd.Flags().Changed("dump") {
			cfg.Model.DumpMatrices, _ = cmd.Flags().GetBool("dump")
		}
		if cmd.Flags().Changed("train-more") {
			cfg.Model.TrainMore, _ = cmd.Flags().GetBool("train-more")
		}
		ratings, err := loadRatings(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		params := model.NewParamsFromConfig(cfg.Model)
		hyper, err := model.NewHyperparameters(params)
		if err != nil {
			return errors.Trace(err)
		}
		options, err := model.NewOptions(params)
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("open factor store",
			zap.String("backend", cfg.Storage.Backend),
			zap.String("redis", log.RedactURL(cfg.Storage.Redis.URL)))
		store, err := factors.Open(cfg.Storage)
		if err != nil {
			return errors.Trace(err)
		}
		als, err := cf.NewALS(ratings, hyper, options, model.NewFlagsFromConfig(cfg.Model), store, nil)
		if err != nil {
			return errors.Trace(err)
		}
		als.SetEvaluation(cfg.Evaluation.TopX, cfg.Evaluation.Ks)
		start := time.Now()
		if err = als.Train(cmd.Context()); err != nil {
			return errors.Trace(err)
		}
		elapsed := time.Since(start)

		report := als.Report()
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Metric", "Value")
		rows := [][]string{
			{"RMSE", encoding.FormatFloat32(float32(report.RMSE))},
			{"Train Recall", encoding.FormatFloat32(float32(report.TrainRecall))},
			{"Test Recall", encoding.FormatFloat32(float32(report.TestRecall))},
			{fmt.Sprintf("Recall@%d", report.TopX), encoding.FormatFloat32(float32(report.RecallAtX))},
			{"Ratio", encoding.FormatFloat32(float32(report.Ratio))},
		}
		for i, k := range report.Ks {
			rows = append(rows,
				[]string{fmt.Sprintf("MRR@%d", k), encoding.FormatFloat32(float32(report.MRR[i]))},
				[]string{fmt.Sprintf("NDCG@%d", k), encoding.FormatFloat32(float32(report.NDCG[i]))})
		}
		if err = table.Bulk(rows); err != nil {
			return errors.Trace(err)
		}
		if err = table.Render(); err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("Complete training %s in %v (%d iterations)\n", hyper.Key(), elapsed, als.Iterations())
		return nil
	},
}

func init() {
	trainCommand.Flags().Bool("verbose", false, "log RMSE every iteration and a report at the end")
	trainCommand.Flags().Bool("load", false, "load persisted factors")
	trainCommand.Flags().Bool("dump", false, "persist factors after training")
	trainCommand.Flags().Bool("train-more", false, "keep training loaded factors")
}

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
	"time"

	"github.com/gorse-io/alsrec/base/encoding"
	"github.com/gorse-io/alsrec/base/progress"
	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/model/cf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var tracer = progress.NewTracer("alsrec")

// track runs job under a root span and mirrors the progress of its child
// span on a progress bar.
func track(ctx context.Context, name string, total int, child string, job func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, name, 1)
	bar := progressbar.Default(int64(total), name)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if c, ok := span.Child(child); ok {
					_ = bar.Set(c.Count())
				}
			}
		}
	}()
	err := job(ctx)
	close(done)
	if err != nil {
		span.Fail(err)
		return err
	}
	span.End()
	_ = bar.Finish()
	return nil
}

func formatScore(v float64) string {
	return encoding.FormatFloat32(float32(v))
}

var cvCommand = &cobra.Command{
	Use:   "cv",
	Short: "Cross validate a model on k folds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
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
		start := time.Now()
		var folds []cf.Score
		if err = track(cmd.Context(), "cv", options.KFolds, "CrossValidate", func(ctx context.Context) error {
			folds, err = cf.CrossValidateFolds(ctx, ratings, hyper, options)
			return err
		}); err != nil {
			return errors.Trace(err)
		}
		elapsed := time.Since(start)

		header := []string{""}
		for i := range folds {
			header = append(header, fmt.Sprintf("Fold %d", i+1))
		}
		header = append(header, "Mean")
		mean := cf.MeanScore(folds)
		row := func(name string, value func(cf.Score) float64) []string {
			cells := append([]string{name}, lo.Map(folds, func(s cf.Score, _ int) string {
				return formatScore(value(s))
			})...)
			return append(cells, formatScore(value(mean)))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header(lo.ToAnySlice(header)...)
		if err = table.Bulk([][]string{
			row("Train Recall", func(s cf.Score) float64 { return s.TrainRecall }),
			row("Test Recall", func(s cf.Score) float64 { return s.TestRecall }),
			row("RMSE", func(s cf.Score) float64 { return s.RMSE }),
		}); err != nil {
			return errors.Trace(err)
		}
		if err = table.Render(); err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("Complete cross validation of %s in %v\n", hyper.Key(), elapsed)
		return nil
	},
}

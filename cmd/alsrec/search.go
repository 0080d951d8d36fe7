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
	"strconv"
	"time"

	"github.com/gorse-io/alsrec/model"
	"github.com/gorse-io/alsrec/model/cf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var searchCommand = &cobra.Command{
	Use:   "search",
	Short: "Search lambda and n_factors by cross validation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		if cmd.Flags().Changed("trials") {
			cfg.Search.Trials, _ = cmd.Flags().GetInt("trials")
		}
		ratings, err := loadRatings(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		options, err := model.NewOptions(model.NewParamsFromConfig(cfg.Model))
		if err != nil {
			return errors.Trace(err)
		}
		grid := model.NewParamsGridFromConfig(cfg.Search)
		exhaustive, _ := cmd.Flags().GetBool("grid")
		name, total := "RandomSearchCV", min(cfg.Search.Trials, grid.NumCombinations())
		if exhaustive || grid.NumCombinations() <= cfg.Search.Trials {
			name, total = "GridSearchCV", grid.NumCombinations()
		}

		start := time.Now()
		var result cf.ParamsSearchResult
		if err = track(cmd.Context(), "search", total, name, func(ctx context.Context) error {
			if exhaustive {
				result, err = cf.GridSearchCV(ctx, ratings, grid, options)
			} else {
				result, err = cf.RandomSearchCV(ctx, ratings, grid, options, cfg.Search.Trials)
			}
			return err
		}); err != nil {
			return errors.Trace(err)
		}
		elapsed := time.Since(start)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Lambda", "Factors", "Train Recall", "Test Recall", "RMSE", "Best")
		for i, params := range result.Params {
			score := result.Scores[i]
			best := ""
			if i == result.BestIndex {
				best = "*"
			}
			if err = table.Append([]string{
				strconv.Itoa(i + 1),
				fmt.Sprint(params[model.Lambda]),
				fmt.Sprint(params[model.NFactors]),
				formatScore(score.TrainRecall),
				formatScore(score.TestRecall),
				formatScore(score.RMSE),
				best,
			}); err != nil {
				return errors.Trace(err)
			}
		}
		if err = table.Render(); err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("Complete search in %v, best %v\n", elapsed, result.BestParams)
		return nil
	},
}

func init() {
	searchCommand.Flags().Int("trials", 0, "number of trials of random search")
	searchCommand.Flags().Bool("grid", false, "search every combination")
}

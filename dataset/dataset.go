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

package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorse-io/alsrec/base"
	"github.com/gorse-io/alsrec/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Ratings is a dense users × items matrix of explicit or implicit ratings.
// A zero entry means the rating is unobserved.
type Ratings struct {
	data     [][]float32
	nItems   int
	userDict *FreqDict
	itemDict *FreqDict
}

// NewRatings creates an all-zero ratings matrix.
func NewRatings(nUsers, nItems int) *Ratings {
	return &Ratings{data: base.NewMatrix32(nUsers, nItems), nItems: nItems}
}

// FromMatrix wraps a copy of a rectangular matrix.
func FromMatrix(m [][]float32) (*Ratings, error) {
	rows, cols := base.MatrixShape(m)
	if cols < 0 {
		return nil, errors.NotValidf("ragged ratings matrix")
	}
	for u := 0; u < rows; u++ {
		for i := 0; i < cols; i++ {
			if !validRating(m[u][i]) {
				return nil, errors.NotValidf("rating %v at (%d, %d)", m[u][i], u, i)
			}
		}
	}
	return &Ratings{data: base.CopyMatrix32(m), nItems: cols}, nil
}

// validRating reports whether v is finite and non-negative.
func validRating(v float32) bool {
	return v >= 0 && !math32.IsInf(v, 1)
}

// Modulo builds the demo matrix R[u][i] = 1 if (u+i) % mod == 0.
func Modulo(nUsers, nItems, mod int) *Ratings {
	r := NewRatings(nUsers, nItems)
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			if (u+i)%mod == 0 {
				r.data[u][i] = 1
			}
		}
	}
	return r
}

func (r *Ratings) Shape() (int, int) {
	return len(r.data), r.nItems
}

func (r *Ratings) CountUsers() int {
	return len(r.data)
}

func (r *Ratings) CountItems() int {
	return r.nItems
}

func (r *Ratings) Get(userIndex, itemIndex int) float32 {
	return r.data[userIndex][itemIndex]
}

func (r *Ratings) Set(userIndex, itemIndex int, value float32) {
	r.data[userIndex][itemIndex] = value
}

// Row returns the ratings of a user. The slice is shared with the matrix.
func (r *Ratings) Row(userIndex int) []float32 {
	return r.data[userIndex]
}

// Matrix returns the underlying rows. Callers must not modify them.
func (r *Ratings) Matrix() [][]float32 {
	return r.data
}

// Column copies the ratings of an item.
func (r *Ratings) Column(itemIndex int) []float32 {
	col := make([]float32, len(r.data))
	for u := range r.data {
		col[u] = r.data[u][itemIndex]
	}
	return col
}

// NonZero returns item indices rated by a user in ascending order.
func (r *Ratings) NonZero(userIndex int) []int {
	var indices []int
	for i, v := range r.data[userIndex] {
		if v != 0 {
			indices = append(indices, i)
		}
	}
	return indices
}

// Zero returns item indices not rated by a user in ascending order.
func (r *Ratings) Zero(userIndex int) []int {
	var indices []int
	for i, v := range r.data[userIndex] {
		if v == 0 {
			indices = append(indices, i)
		}
	}
	return indices
}

// Count returns the number of observed ratings.
func (r *Ratings) Count() int {
	n := 0
	for u := range r.data {
		for _, v := range r.data[u] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// Sum returns the sum of every entry.
func (r *Ratings) Sum() float64 {
	var sum float64
	for u := range r.data {
		for _, v := range r.data[u] {
			sum += float64(v)
		}
	}
	return sum
}

// Disjoint reports whether the elementwise product with other is zero
// everywhere, i.e. no entry is observed in both matrices.
func (r *Ratings) Disjoint(other *Ratings) bool {
	for u := range r.data {
		for i, v := range r.data[u] {
			if v != 0 && other.data[u][i] != 0 {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy sharing the id dictionaries.
func (r *Ratings) Clone() *Ratings {
	return &Ratings{
		data:     base.CopyMatrix32(r.data),
		nItems:   r.nItems,
		userDict: r.userDict,
		itemDict: r.itemDict,
	}
}

// ZerosLike returns an all-zero matrix of the same shape sharing the id dictionaries.
func (r *Ratings) ZerosLike() *Ratings {
	z := NewRatings(len(r.data), r.nItems)
	z.userDict, z.itemDict = r.userDict, r.itemDict
	return z
}

// GetUserDict returns the user id dictionary, or nil for matrices not loaded from a file.
func (r *Ratings) GetUserDict() *FreqDict {
	return r.userDict
}

// GetItemDict returns the item id dictionary, or nil for matrices not loaded from a file.
func (r *Ratings) GetItemDict() *FreqDict {
	return r.itemDict
}

// LoadCSV loads `user,item[,rating]` records. A missing rating counts as 1.
// Ids are mapped to dense indices in order of first appearance. Records with
// invalid ids or ratings are skipped with a warning.
func LoadCSV(path, sep string, hasHeader bool) (*Ratings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	type record struct {
		user, item int
		rating     float32
	}
	var (
		records  []record
		userDict = NewFreqDict()
		itemDict = NewFreqDict()
	)
	err = base.ReadLines(bufio.NewScanner(file), sep, func(line int, fields []string) bool {
		if hasHeader && line == 0 {
			return true
		}
		if len(fields) < 2 {
			log.Logger().Warn("skip record with missing fields", zap.Int("line", line))
			return true
		}
		userId, itemId := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if err := base.ValidateId(userId); err != nil {
			log.Logger().Warn("skip record with invalid user id", zap.Int("line", line), zap.Error(err))
			return true
		}
		if err := base.ValidateId(itemId); err != nil {
			log.Logger().Warn("skip record with invalid item id", zap.Int("line", line), zap.Error(err))
			return true
		}
		rating := float32(1)
		if len(fields) > 2 {
			value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
			if err != nil {
				log.Logger().Warn("skip record with invalid rating", zap.Int("line", line), zap.Error(err))
				return true
			}
			rating = float32(value)
			if !validRating(rating) {
				log.Logger().Warn("skip record with negative or non-finite rating", zap.Int("line", line), zap.Float32("rating", rating))
				return true
			}
		}
		records = append(records, record{user: userDict.Id(userId), item: itemDict.Id(itemId), rating: rating})
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings := NewRatings(userDict.Count(), itemDict.Count())
	ratings.userDict, ratings.itemDict = userDict, itemDict
	for _, rec := range records {
		ratings.data[rec.user][rec.item] = rec.rating
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_users", userDict.Count()),
		zap.Int("n_items", itemDict.Count()),
		zap.Int("n_ratings", ratings.Count()))
	return ratings, nil
}

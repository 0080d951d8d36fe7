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
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestModulo(t *testing.T) {
	r := Modulo(10, 8, 3)
	nUsers, nItems := r.Shape()
	assert.Equal(t, 10, nUsers)
	assert.Equal(t, 8, nItems)
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			if (u+i)%3 == 0 {
				assert.Equal(t, float32(1), r.Get(u, i))
			} else {
				assert.Zero(t, r.Get(u, i))
			}
		}
	}
	assert.Equal(t, []int{0, 3, 6}, r.NonZero(0))
	assert.Equal(t, []int{1, 2, 4, 5, 7}, r.Zero(0))
	assert.Equal(t, float64(r.Count()), r.Sum())
}

func TestFromMatrix(t *testing.T) {
	m := [][]float32{{1, 0, 2}, {0, 3, 0}}
	r, err := FromMatrix(m)
	assert.NoError(t, err)
	assert.Equal(t, 3, r.CountItems())
	assert.Equal(t, 2, r.CountUsers())
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []float32{0, 3}, r.Column(1))
	m[0][0] = 10
	assert.Equal(t, float32(1), r.Get(0, 0))

	_, err = FromMatrix([][]float32{{1, 2}, {3}})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestFromMatrixInvalidRating(t *testing.T) {
	for _, v := range []float32{-1, math32.NaN(), math32.Inf(1)} {
		_, err := FromMatrix([][]float32{{1, 0}, {0, v}})
		assert.True(t, errors.Is(err, errors.NotValid), "rating %v", v)
	}
}

func TestDisjoint(t *testing.T) {
	a, _ := FromMatrix([][]float32{{1, 0}, {0, 1}})
	b, _ := FromMatrix([][]float32{{0, 1}, {1, 0}})
	assert.True(t, a.Disjoint(b))
	b.Set(0, 0, 2)
	assert.False(t, a.Disjoint(b))
	c := a.Clone()
	c.Set(1, 1, 0)
	assert.Equal(t, float32(1), a.Get(1, 1))
	z := a.ZerosLike()
	assert.Zero(t, z.Count())
	assert.True(t, a.Disjoint(z))
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	text := "user,item,rating\n" +
		"alice,book,5\n" +
		"alice,pen,3\n" +
		"bob,book,4\n" +
		"bob,bad/id,4\n" +
		"carol,pen,abc\n" +
		"carol,cup\n"
	assert.NoError(t, os.WriteFile(path, []byte(text), 0644))
	r, err := LoadCSV(path, ",", true)
	assert.NoError(t, err)
	assert.Equal(t, 3, r.CountUsers())
	assert.Equal(t, 3, r.CountItems())
	alice, ok := r.GetUserDict().Lookup("alice")
	assert.True(t, ok)
	book, ok := r.GetItemDict().Lookup("book")
	assert.True(t, ok)
	assert.Equal(t, float32(5), r.Get(alice, book))
	carol, _ := r.GetUserDict().Lookup("carol")
	cup, _ := r.GetItemDict().Lookup("cup")
	assert.Equal(t, float32(1), r.Get(carol, cup))
	assert.Equal(t, 4, r.Count())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), ",", true)
	assert.Error(t, err)
}

func TestLoadCSVInvalidRating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	text := "alice,book,2\n" +
		"alice,pen,-1\n" +
		"bob,book,NaN\n" +
		"bob,pen,Inf\n" +
		"bob,cup,1\n"
	assert.NoError(t, os.WriteFile(path, []byte(text), 0644))
	r, err := LoadCSV(path, ",", false)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.CountUsers())
	assert.Equal(t, 2, r.CountItems())
	assert.Equal(t, 2, r.Count())
	_, ok := r.GetItemDict().Lookup("pen")
	assert.False(t, ok)
}

// Copyright 2022 gorse Project Authors
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

package encoding

import (
	"bytes"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteMatrix(t *testing.T) {
	a := [][]float32{{1, 2}, {3, 4}}
	buf := bytes.NewBuffer(nil)
	err := WriteMatrix(buf, a)
	assert.NoError(t, err)
	b := [][]float32{{0, 0}, {0, 0}}
	err = ReadMatrix(buf, b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteShape(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteShape(buf, 10, 5))
	rows, cols, err := ReadShape(buf)
	assert.NoError(t, err)
	assert.Equal(t, 10, rows)
	assert.Equal(t, 5, cols)
	// truncated
	_, _, err = ReadShape(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
	// negative
	buf.Reset()
	assert.NoError(t, WriteShape(buf, -1, 5))
	_, _, err = ReadShape(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestWriteBytes(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteBytes(buf, []byte("abc")))
	data, err := ReadBytes(buf)
	assert.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	// truncated
	buf.Reset()
	assert.NoError(t, WriteBytes(buf, []byte("abc")))
	_, err = ReadBytes(bytes.NewReader(buf.Bytes()[:5]))
	assert.Error(t, err)
}

func TestWriteGob(t *testing.T) {
	type record struct {
		Name  string
		Value int
	}
	a := record{Name: "abc", Value: 1}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b record
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFormatFloat32(t *testing.T) {
	assert.Equal(t, "1.5", FormatFloat32(1.5))
}

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
	"encoding/binary"
	"encoding/gob"
	"io"
	"strconv"

	"github.com/juju/errors"
)

// maxDimension bounds matrix dimensions read from untrusted streams.
const maxDimension = 1 << 31

// WriteMatrix writes matrix to byte stream.
func WriteMatrix(w io.Writer, m [][]float32) error {
	for i := range m {
		if err := binary.Write(w, binary.LittleEndian, m[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadMatrix reads matrix from byte stream.
func ReadMatrix(r io.Reader, m [][]float32) error {
	for i := range m {
		if err := binary.Read(r, binary.LittleEndian, m[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteShape writes the number of rows and columns of a matrix.
func WriteShape(w io.Writer, rows, cols int) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, [2]int64{int64(rows), int64(cols)}))
}

// ReadShape reads the number of rows and columns of a matrix.
func ReadShape(r io.Reader) (int, int, error) {
	var shape [2]int64
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return 0, 0, errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 || shape[0] >= maxDimension || shape[1] >= maxDimension {
		return 0, 0, errors.NotValidf("matrix shape %v", shape)
	}
	return int(shape[0]), int(shape[1]), nil
}

// WriteBytes writes length-prefixed bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s))); err != nil {
		return errors.Trace(err)
	}
	if _, err := w.Write(s); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// ReadBytes reads length-prefixed bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 {
		return nil, errors.NotValidf("length %d", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buffer).Encode(v); err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	return errors.Trace(gob.NewDecoder(bytes.NewReader(data)).Decode(v))
}

func FormatFloat32(val float32) string {
	return strconv.FormatFloat(float64(val), 'f', -1, 32)
}

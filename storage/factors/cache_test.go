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

package factors

import (
	"context"
	"testing"
	"time"

	"github.com/gorse-io/alsrec/storage/blob"
	"github.com/stretchr/testify/assert"
)

func TestCachedStore(t *testing.T) {
	testStore(t, NewCachedStore(NewBlobStore(blob.NewPOSIX(t.TempDir()), ""), time.Minute))
}

func TestCachedStoreServesFromMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCachedStore(NewBlobStore(blob.NewPOSIX(dir), ""), time.Minute)
	store.SetConfig(testHyper, 5)
	assert.NoError(t, store.SaveMatrix(ctx, testMatrix(), UserVecs))
	assert.Equal(t, 1, store.Len())

	// remove the persisted copy, the cached one is still served
	assert.NoError(t, blob.NewPOSIX(dir).Remove(ctx, testHyper.Fingerprint()+"/"+UserVecs))
	m, ok := store.LoadMatrix(ctx, testHyper, UserVecs, 3, 2)
	assert.True(t, ok)
	assert.Equal(t, testMatrix(), m)

	// callers get copies
	m[0][0] = 100
	m, ok = store.LoadMatrix(ctx, testHyper, UserVecs, 3, 2)
	assert.True(t, ok)
	assert.Equal(t, float32(1), m[0][0])

	// cached matrix of another shape is ignored
	_, ok = store.LoadMatrix(ctx, testHyper, UserVecs, 2, 3)
	assert.False(t, ok)
}

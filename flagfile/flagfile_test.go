// Copyright The elbdrain Authors
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

package flagfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New(t.TempDir(), "dg-1", "d-1", nil)

	require.NoError(t, s.Set("ELB_LIST", "lb-a lb-b"))

	v, err := s.Get("ELB_LIST")
	require.NoError(t, err)
	require.Equal(t, "lb-a lb-b", v)
}

func TestGetFirstMatchWins(t *testing.T) {
	s := New(t.TempDir(), "dg-1", "d-1", nil)

	require.NoError(t, s.Set("ELB_LIST", "original"))
	require.NoError(t, s.Set("ELB_LIST", "rewritten"))

	v, err := s.Get("ELB_LIST")
	require.NoError(t, err)
	require.Equal(t, "original", v)
}

func TestGetMissing(t *testing.T) {
	s := New(t.TempDir(), "dg-1", "d-1", nil)

	_, err := s.Get("ELB_LIST")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("OTHER", "value"))
	_, err = s.Get("ELB_LIST")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	s := New(t.TempDir(), "dg-1", "d-1", nil)

	require.NoError(t, s.Set("ELB_LIST", "lb-a"))
	require.True(t, s.Exists())

	require.NoError(t, s.Remove())
	require.False(t, s.Exists())

	_, err := s.Get("ELB_LIST")
	require.ErrorIs(t, err, ErrNotFound)

	// Removing a file that is already gone is tolerated.
	require.NoError(t, s.Remove())
}

func TestSeparateProcessesSharePath(t *testing.T) {
	// The deregister and register passes run as separate processes; all
	// they share is the deployment key. Two independent stores built from
	// the same key must see each other's writes.
	dir := t.TempDir()

	writer := New(dir, "dg-1", "d-1", nil)
	require.NoError(t, writer.Set("ELB_LIST", "lb-a lb-b"))

	reader := New(dir, "dg-1", "d-1", nil)
	v, err := reader.Get("ELB_LIST")
	require.NoError(t, err)
	require.Equal(t, "lb-a lb-b", v)

	// A different deployment never collides.
	other := New(dir, "dg-1", "d-2", nil)
	_, err = other.Get("ELB_LIST")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileFormat(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "dg-1", "d-1", nil)

	require.NoError(t, s.Set("ELB_LIST", "lb-a lb-b"))
	require.NoError(t, s.Set("EXTRA", "1"))

	content, err := os.ReadFile(filepath.Join(dir, "dg-1_d-1"))
	require.NoError(t, err)
	require.Equal(t, "ELB_LIST=lb-a lb-b\nEXTRA=1\n", string(content))
}

func TestSetRejectsUnescapableInput(t *testing.T) {
	s := New(t.TempDir(), "dg-1", "d-1", nil)

	require.Error(t, s.Set("BAD=KEY", "v"))
	require.Error(t, s.Set("KEY", "line1\nline2"))
}

func TestSetCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "flags")
	s := New(dir, "dg-1", "d-1", nil)

	require.NoError(t, s.Set("ELB_LIST", "lb-a"))
	require.True(t, s.Exists())
}

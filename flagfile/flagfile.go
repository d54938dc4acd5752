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

// Package flagfile persists small key=value facts across the two process
// invocations of one deployment: the deregister pass records what it did so
// the paired register pass, running later as a new process, can undo it.
//
// The backing store is one plain-text file per deployment, named from the
// deployment group and deployment IDs. That naming is also the collision
// guard: two overlapping deployments on the same instance write different
// files. Writes append; reads return the first match, so an overwritten key
// keeps its original value.
package flagfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/common/promslog"
)

// ErrNotFound is returned by Get when the key, or the whole flag file, does
// not exist.
var ErrNotFound = errors.New("flag not found")

// Store reads and writes the flag file of one deployment.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a Store for the deployment identified by the group and
// deployment IDs. The file lives under dir and is created lazily on the
// first Set.
func New(dir, deploymentGroupID, deploymentID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = promslog.NewNopLogger()
	}
	return &Store{
		path:   filepath.Join(dir, deploymentGroupID+"_"+deploymentID),
		logger: logger,
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Exists reports whether a deregister pass has started and not yet been
// completed by a successful register pass.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Set appends one key=value line. There is no escaping, so keys may not
// contain '=' and neither side may contain a newline.
func (s *Store) Set(key, value string) error {
	if strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("flag key %q must not contain '=' or newlines", key)
	}
	if strings.Contains(value, "\n") {
		return fmt.Errorf("flag value for %q must not contain newlines", key)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("could not create flag directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open flag file %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return fmt.Errorf("could not write flag file %s: %w", s.path, err)
	}
	return f.Sync()
}

// Get scans the file and returns the value of the first line matching key.
func (s *Store) Get(key string) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("could not open flag file %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		k, v, ok := strings.Cut(scanner.Text(), "=")
		if ok && k == key {
			return v, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("could not read flag file %s: %w", s.path, err)
	}
	return "", ErrNotFound
}

// Remove deletes the flag file. A file that is already gone is logged and
// tolerated: the deployment may legitimately never have written one.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Flag file already absent on removal", "path", s.path)
			return nil
		}
		return fmt.Errorf("could not remove flag file %s: %w", s.path, err)
	}
	return nil
}

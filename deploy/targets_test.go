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

package deploy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elbdrain/elbdrain/elb"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name     string
		raw      []string
		expected TargetList
		wantErr  bool
	}{
		{
			name:     "SingleName",
			raw:      []string{"lb-a"},
			expected: Explicit("lb-a"),
		},
		{
			name:     "RepeatedFlag",
			raw:      []string{"lb-a", "lb-b"},
			expected: Explicit("lb-a", "lb-b"),
		},
		{
			name:     "SpaceSeparatedEnvValue",
			raw:      []string{"lb-a lb-b lb-c"},
			expected: Explicit("lb-a", "lb-b", "lb-c"),
		},
		{
			name:     "CommaSeparated",
			raw:      []string{"lb-a,lb-b"},
			expected: Explicit("lb-a", "lb-b"),
		},
		{
			name:     "DiscoverAll",
			raw:      []string{"_all_"},
			expected: DiscoverAll(),
		},
		{
			name:     "DiscoverAllLenient",
			raw:      []string{"_any_"},
			expected: DiscoverAllLenient(),
		},
		{
			name:    "SentinelMixedWithNames",
			raw:     []string{"_all_", "lb-a"},
			wantErr: true,
		},
		{
			name:    "Empty",
			raw:     nil,
			wantErr: true,
		},
		{
			name:    "OnlySeparators",
			raw:     []string{" , "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := ParseTargets(tt.raw)
			if tt.wantErr {
				var cfgErr *elb.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, targets)
		})
	}
}

func TestTargetListString(t *testing.T) {
	require.Equal(t, "_all_", DiscoverAll().String())
	require.Equal(t, "_any_", DiscoverAllLenient().String())
	require.Equal(t, "lb-a lb-b", Explicit("lb-a", "lb-b").String())
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig, *cfg)
	require.Equal(t, model.Duration(3*time.Second), cfg.PollInterval)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(`
region: eu-west-2
poll_interval: 5s
flag_dir: /var/lib/elbdrain
deployment_id: d-ABCDEF123
deployment_group_id: dg-42
role_arn: arn:aws:iam::123456789012:role/deployer
`)
	require.NoError(t, err)
	require.Equal(t, "eu-west-2", cfg.Region)
	require.Equal(t, model.Duration(5*time.Second), cfg.PollInterval)
	require.Equal(t, "/var/lib/elbdrain", cfg.FlagDir)
	require.Equal(t, "d-ABCDEF123", cfg.DeploymentID)
	require.Equal(t, "dg-42", cfg.DeploymentGroupID)
	require.Equal(t, "arn:aws:iam::123456789012:role/deployer", cfg.RoleARN)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load("region: us-east-1")
	require.NoError(t, err)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, DefaultConfig.PollInterval, cfg.PollInterval)
	require.Equal(t, DefaultConfig.FlagDir, cfg.FlagDir)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "ZeroPollInterval",
			input: "poll_interval: 0s",
		},
		{
			name:  "EmptyFlagDir",
			input: `flag_dir: ""`,
		},
		{
			name:  "AccessKeyWithoutSecret",
			input: "access_key: AKIAEXAMPLE",
		},
		{
			name:  "SecretWithoutAccessKey",
			input: "secret_key: shhh",
		},
		{
			name:  "BadYAML",
			input: "region: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.input)
			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elbdrain.yml")
	require.NoError(t, os.WriteFile(path, []byte("region: ap-southeast-1\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ap-southeast-1", cfg.Region)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

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
	"errors"
	"fmt"
	"os"
	"time"

	config_util "github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// DefaultConfig is the base configuration applied before YAML unmarshalling
// and before any flag overrides.
var DefaultConfig = Config{
	PollInterval: model.Duration(3 * time.Second),
	FlagDir:      "/var/run/elbdrain",
}

// Config carries everything the tool needs for one invocation. It is built
// once at startup and passed to components at construction; nothing mutates
// it afterwards.
type Config struct {
	Region    string             `yaml:"region,omitempty"`
	Endpoint  string             `yaml:"endpoint,omitempty"`
	AccessKey string             `yaml:"access_key,omitempty"`
	SecretKey config_util.Secret `yaml:"secret_key,omitempty"`
	Profile   string             `yaml:"profile,omitempty"`
	RoleARN   string             `yaml:"role_arn,omitempty"`

	// PollInterval is the sleep between membership state polls while
	// waiting for a load balancer to converge.
	PollInterval model.Duration `yaml:"poll_interval,omitempty"`

	// FlagDir is where the per-deployment flag file lives. It must survive
	// between the deregister and register invocations of one deployment.
	FlagDir string `yaml:"flag_dir,omitempty"`

	DeploymentID      string `yaml:"deployment_id,omitempty"`
	DeploymentGroupID string `yaml:"deployment_group_id,omitempty"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	*c = DefaultConfig
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks the invariants that every component relies on.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.FlagDir == "" {
		return errors.New("flag directory must not be empty")
	}
	if c.AccessKey != "" && c.SecretKey == "" {
		return errors.New("access_key set but secret_key is empty")
	}
	if c.AccessKey == "" && c.SecretKey != "" {
		return errors.New("secret_key set but access_key is empty")
	}
	return nil
}

// Load parses the YAML-encoded config from s.
func Load(s string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(s), cfg); err != nil {
		return nil, err
	}
	// An empty document never reaches UnmarshalYAML, apply defaults here.
	if *cfg == (Config{}) {
		*cfg = DefaultConfig
	}
	return cfg, nil
}

// LoadFile parses the file at filename into a Config.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	return cfg, nil
}

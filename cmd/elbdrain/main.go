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

// The elbdrain command takes one EC2 instance out of its Classic ELBs for
// the duration of a deployment and puts it back afterwards.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
	"github.com/prometheus/common/promslog"
	promslogflag "github.com/prometheus/common/promslog/flag"
	"github.com/prometheus/common/version"

	"github.com/elbdrain/elbdrain/config"
	"github.com/elbdrain/elbdrain/deploy"
	"github.com/elbdrain/elbdrain/elb"
	"github.com/elbdrain/elbdrain/flagfile"
	"github.com/elbdrain/elbdrain/instance"
)

func main() {
	os.Exit(run())
}

func run() int {
	a := kingpin.New(filepath.Base(os.Args[0]), "Drain an EC2 instance out of its Classic ELBs around a deployment and restore it afterwards.")
	a.Version(version.Print("elbdrain"))
	a.HelpFlag.Short('h')

	var (
		configFile   = a.Flag("config.file", "Optional YAML configuration file.").String()
		region       = a.Flag("region", "AWS region. Defaults to the instance metadata region.").String()
		instanceID   = a.Flag("instance.id", "Instance to operate on. Defaults to the local instance.").String()
		instanceIP   = a.Flag("instance.ip", "Resolve the instance by this IP address instead of an explicit ID.").String()
		elbList      = a.Flag("elb.list", fmt.Sprintf("Load balancer name, repeatable, or one of the sentinels %q / %q.", deploy.SentinelAll, deploy.SentinelAny)).Envar("ELB_LIST").Strings()
		deployID     = a.Flag("deployment.id", "Deployment identifier, half of the flag file key.").Envar("DEPLOYMENT_ID").String()
		deployGroup  = a.Flag("deployment.group-id", "Deployment group identifier, the other half of the flag file key.").Envar("DEPLOYMENT_GROUP_ID").String()
		flagDir      = a.Flag("flag.dir", "Directory holding the per-deployment flag file.").String()
		pollInterval = a.Flag("poll.interval", "Interval between membership state polls.").Duration()
	)

	promslogConfig := &promslog.Config{}
	promslogflag.AddFlags(a, promslogConfig)

	deregCmd := a.Command("deregister", "Drain the instance out of the target load balancers.")
	regCmd := a.Command("register", "Restore the instance into the target load balancers.")
	statusCmd := a.Command("status", "Print the instance's membership state per load balancer. Read-only.")

	cmd, err := a.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		a.Usage(os.Args[1:])
		return 2
	}

	logger := promslog.New(promslogConfig)
	ctx := context.Background()

	cfg := &config.Config{}
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			return fatal(err)
		}
	} else {
		*cfg = config.DefaultConfig
	}
	applyFlags(cfg, *region, *flagDir, *pollInterval, *deployID, *deployGroup)
	if err := cfg.Validate(); err != nil {
		return fatal(err)
	}

	if cfg.Region == "" {
		cfg.Region, err = instance.Region(ctx)
		if err != nil {
			return fatal(err)
		}
		logger.Info("Using region from instance metadata", "region", cfg.Region)
	}

	awsCfg, err := elb.NewAWSConfig(ctx, cfg)
	if err != nil {
		return fatal(err)
	}

	id := *instanceID
	if id == "" {
		id, err = instance.NewResolver(awsCfg, logger).Resolve(ctx, *instanceIP)
		if err != nil {
			return fatal(err)
		}
		logger.Info("Resolved instance", "instance", id)
	}

	targets, err := deploy.ParseTargets(*elbList)
	if err != nil {
		return fatal(err)
	}

	if cmd != statusCmd.FullCommand() && (cfg.DeploymentID == "" || cfg.DeploymentGroupID == "") {
		return fatal(fmt.Errorf("deployment.id and deployment.group-id are required (or DEPLOYMENT_ID / DEPLOYMENT_GROUP_ID in the environment)"))
	}

	client := elb.NewClient(awsCfg, cfg, logger)
	flags := flagfile.New(cfg.FlagDir, cfg.DeploymentGroupID, cfg.DeploymentID, logger)
	orch := deploy.New(client, flags, logger, prometheus.DefaultRegisterer)

	switch cmd {
	case deregCmd.FullCommand():
		if err := orch.Deregister(ctx, id, targets); err != nil {
			return fatal(err)
		}
		logger.Info("Deregistration complete", "instance", id)
	case regCmd.FullCommand():
		if err := orch.Register(ctx, id, targets); err != nil {
			return fatal(err)
		}
		logger.Info("Registration complete", "instance", id)
	case statusCmd.FullCommand():
		statuses, err := orch.Status(ctx, id, targets)
		if err != nil {
			return fatal(err)
		}
		for _, s := range statuses {
			if s.Err != nil {
				fmt.Printf("%s\tquery failed: %v\n", s.Name, s.Err)
				continue
			}
			fmt.Printf("%s\t%s\n", s.Name, s.State)
		}
	}

	return 0
}

// applyFlags lets explicit flags win over the config file.
func applyFlags(cfg *config.Config, region, flagDir string, pollInterval time.Duration, deployID, deployGroup string) {
	if region != "" {
		cfg.Region = region
	}
	if flagDir != "" {
		cfg.FlagDir = flagDir
	}
	if pollInterval != 0 {
		cfg.PollInterval = model.Duration(pollInterval)
	}
	if deployID != "" {
		cfg.DeploymentID = deployID
	}
	if deployGroup != "" {
		cfg.DeploymentGroupID = deployGroup
	}
}

func fatal(err error) int {
	fmt.Fprintln(os.Stderr, "FATAL:", err)
	return 1
}

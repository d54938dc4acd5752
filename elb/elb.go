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

// Package elb talks to the Classic ELB control plane: it describes load
// balancers, polls one instance's membership state, and issues the register
// and deregister calls. Every call is a single synchronous round trip;
// waiting and sequencing live in the deploy package.
package elb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/prometheus/common/promslog"

	"github.com/elbdrain/elbdrain/config"
)

type elbClient interface {
	DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancing.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DescribeLoadBalancersOutput, error)
	DescribeLoadBalancerAttributes(ctx context.Context, params *elasticloadbalancing.DescribeLoadBalancerAttributesInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DescribeLoadBalancerAttributesOutput, error)
	DescribeInstanceHealth(ctx context.Context, params *elasticloadbalancing.DescribeInstanceHealthInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DescribeInstanceHealthOutput, error)
	RegisterInstancesWithLoadBalancer(ctx context.Context, params *elasticloadbalancing.RegisterInstancesWithLoadBalancerInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.RegisterInstancesWithLoadBalancerOutput, error)
	DeregisterInstancesFromLoadBalancer(ctx context.Context, params *elasticloadbalancing.DeregisterInstancesFromLoadBalancerInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DeregisterInstancesFromLoadBalancerOutput, error)
}

// LoadBalancer is the subset of a described load balancer that the wait
// budget calculation needs.
type LoadBalancer struct {
	Name               string
	HealthCheckTimeout time.Duration
	ConnectionDraining bool
	DrainingTimeout    time.Duration
}

// Client wraps the ELB service client with the instance-membership
// operations the orchestrator needs.
type Client struct {
	api          elbClient
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewAWSConfig builds the shared SDK configuration: static keys when given,
// shared-config profile, and an assumed role when cfg.RoleARN is set.
func NewAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var creds aws.CredentialsProvider
	if cfg.AccessKey != "" {
		creds = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, string(cfg.SecretKey), ""))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, func(options *awsConfig.LoadOptions) error {
		options.Region = cfg.Region
		options.Credentials = creds
		options.SharedConfigProfile = cfg.Profile
		return nil
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("could not create aws config: %w", err)
	}

	if cfg.RoleARN != "" {
		awsCfg.Credentials = stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN)
	}

	return awsCfg, nil
}

// NewClient returns a Client using the given SDK configuration.
func NewClient(awsCfg aws.Config, cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = promslog.NewNopLogger()
	}

	api := elasticloadbalancing.NewFromConfig(awsCfg, func(options *elasticloadbalancing.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Client{
		api:          api,
		logger:       logger,
		pollInterval: time.Duration(cfg.PollInterval),
	}
}

// Describe resolves a load balancer name into the timeouts that drive the
// wait budget. Two round trips: the health check timeout comes from the
// load balancer description, the draining timeout from its attributes.
func (c *Client) Describe(ctx context.Context, name string) (*LoadBalancer, error) {
	out, err := c.api.DescribeLoadBalancers(ctx, &elasticloadbalancing.DescribeLoadBalancersInput{
		LoadBalancerNames: []string{name},
	})
	if err != nil {
		return nil, fmt.Errorf("could not describe load balancer %q: %w", name, err)
	}
	if len(out.LoadBalancerDescriptions) == 0 {
		return nil, fmt.Errorf("load balancer %q not found", name)
	}

	lb := &LoadBalancer{Name: name}
	if hc := out.LoadBalancerDescriptions[0].HealthCheck; hc != nil && hc.Timeout != nil {
		lb.HealthCheckTimeout = time.Duration(*hc.Timeout) * time.Second
	}

	attrs, err := c.api.DescribeLoadBalancerAttributes(ctx, &elasticloadbalancing.DescribeLoadBalancerAttributesInput{
		LoadBalancerName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("could not describe attributes of load balancer %q: %w", name, err)
	}
	if attrs.LoadBalancerAttributes != nil {
		if cd := attrs.LoadBalancerAttributes.ConnectionDraining; cd != nil && cd.Enabled {
			lb.ConnectionDraining = true
			if cd.Timeout != nil {
				lb.DrainingTimeout = time.Duration(*cd.Timeout) * time.Second
			}
		}
	}

	return lb, nil
}

// RegisterInstance adds the instance back into the load balancer's pool.
func (c *Client) RegisterInstance(ctx context.Context, instanceID, lbName string) error {
	_, err := c.api.RegisterInstancesWithLoadBalancer(ctx, &elasticloadbalancing.RegisterInstancesWithLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []types.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return &ActionError{Op: "register", LoadBalancer: lbName, Err: err}
	}
	return nil
}

// DeregisterInstance removes the instance from the load balancer's pool.
func (c *Client) DeregisterInstance(ctx context.Context, instanceID, lbName string) error {
	_, err := c.api.DeregisterInstancesFromLoadBalancer(ctx, &elasticloadbalancing.DeregisterInstancesFromLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []types.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return &ActionError{Op: "deregister", LoadBalancer: lbName, Err: err}
	}
	return nil
}

// InstanceLoadBalancers lists the names of every load balancer that
// currently has the instance registered, in the provider's listing order.
func (c *Client) InstanceLoadBalancers(ctx context.Context, instanceID string) ([]string, error) {
	var (
		names  []string
		marker *string
	)
	for {
		out, err := c.api.DescribeLoadBalancers(ctx, &elasticloadbalancing.DescribeLoadBalancersInput{
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("could not list load balancers: %w", err)
		}

		for _, desc := range out.LoadBalancerDescriptions {
			for _, inst := range desc.Instances {
				if inst.InstanceId != nil && *inst.InstanceId == instanceID {
					names = append(names, aws.ToString(desc.LoadBalancerName))
					break
				}
			}
		}

		if out.NextMarker == nil || *out.NextMarker == "" {
			break
		}
		marker = out.NextMarker
	}

	return names, nil
}

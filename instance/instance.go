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

// Package instance resolves the identity of the instance being deployed
// to: either an explicit ID, an IP address looked up through the EC2 API,
// or the local instance metadata service.
package instance

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/prometheus/common/promslog"
)

type ec2Client interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

type imdsClient interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// Resolver turns an IP address, or nothing at all, into an instance ID.
type Resolver struct {
	ec2    ec2Client
	imds   imdsClient
	logger *slog.Logger
}

// NewResolver returns a Resolver backed by the real EC2 and instance
// metadata clients.
func NewResolver(awsCfg aws.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = promslog.NewNopLogger()
	}
	return &Resolver{
		ec2:    ec2.NewFromConfig(awsCfg),
		imds:   imds.NewFromConfig(awsCfg),
		logger: logger,
	}
}

// Resolve returns the instance ID for ip, or the local instance's own ID
// when ip is empty.
func (r *Resolver) Resolve(ctx context.Context, ip string) (string, error) {
	if ip == "" {
		return r.local(ctx)
	}
	return r.byIP(ctx, ip)
}

func (r *Resolver) local(ctx context.Context) (string, error) {
	out, err := r.imds.GetMetadata(ctx, &imds.GetMetadataInput{Path: "instance-id"})
	if err != nil {
		return "", fmt.Errorf("could not read instance-id from instance metadata: %w", err)
	}
	defer out.Content.Close()

	id, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("could not read instance metadata response: %w", err)
	}
	if len(id) == 0 {
		return "", fmt.Errorf("instance metadata returned an empty instance-id")
	}
	return string(id), nil
}

// byIP looks the address up as a private IP first and falls back to the
// public one, matching how instances are usually addressed from inside and
// outside the VPC.
func (r *Resolver) byIP(ctx context.Context, ip string) (string, error) {
	for _, filter := range []string{"private-ip-address", "ip-address"} {
		out, err := r.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{{
				Name:   aws.String(filter),
				Values: []string{ip},
			}},
		})
		if err != nil {
			return "", fmt.Errorf("could not describe instances by %s %q: %w", filter, ip, err)
		}
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				if inst.InstanceId != nil {
					return *inst.InstanceId, nil
				}
			}
		}
		r.logger.Debug("No instance matched filter", "filter", filter, "ip", ip)
	}
	return "", fmt.Errorf("no instance found with IP address %q", ip)
}

// Region asks the local instance metadata service for the region. Used
// when the configuration leaves the region empty.
func Region(ctx context.Context) (string, error) {
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	client := imds.NewFromConfig(cfg)
	result, err := client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("a region is required and could not be fetched from the instance metadata: %w", err)
	}
	return result.Region, nil
}

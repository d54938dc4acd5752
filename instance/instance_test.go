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

package instance

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/prometheus/common/promslog"
	"github.com/stretchr/testify/require"
)

type mockEC2Client struct {
	// instances maps filter name to the instances returned for it.
	instances map[string][]ec2types.Instance
	err       error
	filters   []string
}

func (m *mockEC2Client) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	filter := aws.ToString(params.Filters[0].Name)
	m.filters = append(m.filters, filter)
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: m.instances[filter]}},
	}, nil
}

type mockIMDSClient struct {
	instanceID string
	err        error
}

func (m *mockIMDSClient) GetMetadata(_ context.Context, params *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if params.Path != "instance-id" {
		return nil, errors.New("unexpected metadata path " + params.Path)
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(m.instanceID))}, nil
}

func newTestResolver(e ec2Client, i imdsClient) *Resolver {
	return &Resolver{ec2: e, imds: i, logger: promslog.NewNopLogger()}
}

func TestResolveLocal(t *testing.T) {
	r := newTestResolver(&mockEC2Client{}, &mockIMDSClient{instanceID: "i-0123456789abcdef0"})

	id, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "i-0123456789abcdef0", id)
}

func TestResolveLocalMetadataUnavailable(t *testing.T) {
	r := newTestResolver(&mockEC2Client{}, &mockIMDSClient{err: errors.New("connection refused")})

	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
}

func TestResolveByPrivateIP(t *testing.T) {
	mock := &mockEC2Client{
		instances: map[string][]ec2types.Instance{
			"private-ip-address": {{InstanceId: aws.String("i-aaa")}},
		},
	}
	r := newTestResolver(mock, &mockIMDSClient{})

	id, err := r.Resolve(context.Background(), "10.0.1.15")
	require.NoError(t, err)
	require.Equal(t, "i-aaa", id)
	require.Equal(t, []string{"private-ip-address"}, mock.filters)
}

func TestResolveByPublicIPFallback(t *testing.T) {
	mock := &mockEC2Client{
		instances: map[string][]ec2types.Instance{
			"ip-address": {{InstanceId: aws.String("i-bbb")}},
		},
	}
	r := newTestResolver(mock, &mockIMDSClient{})

	id, err := r.Resolve(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, "i-bbb", id)
	require.Equal(t, []string{"private-ip-address", "ip-address"}, mock.filters)
}

func TestResolveByIPNoMatch(t *testing.T) {
	r := newTestResolver(&mockEC2Client{}, &mockIMDSClient{})

	_, err := r.Resolve(context.Background(), "10.9.9.9")
	require.Error(t, err)
}

func TestResolveByIPDescribeError(t *testing.T) {
	r := newTestResolver(&mockEC2Client{err: errors.New("throttled")}, &mockIMDSClient{})

	_, err := r.Resolve(context.Background(), "10.0.1.15")
	require.Error(t, err)
}

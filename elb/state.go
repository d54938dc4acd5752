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

package elb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing/types"
	"github.com/aws/smithy-go"
)

// MembershipState is one instance's relationship to one load balancer.
type MembershipState string

// The provider reports the first three states. StateNotMember is a local
// extension: the provider reported no relationship at all between the
// instance and the load balancer, which is different from StateUnknown
// (a state the provider itself reports for registered instances).
const (
	StateInService    MembershipState = "InService"
	StateOutOfService MembershipState = "OutOfService"
	StateUnknown      MembershipState = "Unknown"
	StateNotMember    MembershipState = "NotMember"
)

func (s MembershipState) String() string { return string(s) }

// API error codes that mean "this instance is not associated with this load
// balancer" rather than a transport or permission failure.
const (
	errCodeInvalidInstance = "InvalidInstance"
	errCodeInvalidEndPoint = "InvalidEndPoint"
)

// PollState queries the instance's membership state on one load balancer
// with a single DescribeInstanceHealth round trip; it never loops. Status
// strings outside the known set, and error codes meaning the instance is
// not associated with the load balancer, resolve to StateNotMember. Only
// other transport or API failures are returned, wrapped in a QueryError.
func (c *Client) PollState(ctx context.Context, instanceID, lbName string) (MembershipState, error) {
	out, err := c.api.DescribeInstanceHealth(ctx, &elasticloadbalancing.DescribeInstanceHealthInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []types.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeInvalidInstance, errCodeInvalidEndPoint:
				return StateNotMember, nil
			}
		}
		return StateUnknown, &QueryError{LoadBalancer: lbName, Err: err}
	}

	if len(out.InstanceStates) == 0 || out.InstanceStates[0].State == nil {
		return StateNotMember, nil
	}

	switch state := MembershipState(*out.InstanceStates[0].State); state {
	case StateInService, StateOutOfService, StateUnknown:
		return state, nil
	default:
		c.logger.Debug("Unrecognized instance state from provider", "lb", lbName, "state", *out.InstanceStates[0].State)
		return StateNotMember, nil
	}
}

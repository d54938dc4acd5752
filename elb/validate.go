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

import "context"

// Validate confirms the load balancer is usable for this run: it must be
// describable, and polling the instance's state on it must not fail. The
// state itself does not matter; an instance that is Unknown or not a member
// still validates. Only a load balancer that cannot be queried at all is
// rejected. On success the description is returned so callers can compute
// the wait budget without a second round trip.
func (c *Client) Validate(ctx context.Context, instanceID, lbName string) (*LoadBalancer, error) {
	lb, err := c.Describe(ctx, lbName)
	if err != nil {
		return nil, &ValidationError{LoadBalancer: lbName, Reason: "not describable", Err: err}
	}

	if _, err := c.PollState(ctx, instanceID, lbName); err != nil {
		return nil, &ValidationError{LoadBalancer: lbName, Reason: "instance state not queryable", Err: err}
	}

	return lb, nil
}

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
	"fmt"
	"time"
)

// propagationDelay covers the provider-side settling time of the register
// or deregister call itself, on top of the load balancer's own timeout.
const propagationDelay = 30 * time.Second

// WaitBudget derives the poll budget for one load balancer and one target
// state. Reaching StateInService is bounded by the health check timeout;
// reaching StateOutOfService by the connection draining timeout when
// draining is enabled, otherwise only by the propagation allowance. The
// attempt count is the total allowance divided by the poll interval,
// rounded up.
func (c *Client) WaitBudget(lb *LoadBalancer, target MembershipState) (attempts int, interval time.Duration, err error) {
	var base time.Duration
	switch target {
	case StateInService:
		base = lb.HealthCheckTimeout
	case StateOutOfService:
		if lb.ConnectionDraining {
			base = lb.DrainingTimeout
		}
	default:
		return 0, 0, &ConfigError{Msg: fmt.Sprintf("no wait budget for target state %q", target)}
	}

	total := base + propagationDelay
	attempts = int((total + c.pollInterval - 1) / c.pollInterval)
	return attempts, c.pollInterval, nil
}

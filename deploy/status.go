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
	"context"
	"fmt"

	"github.com/elbdrain/elbdrain/elb"
)

// LBStatus is one load balancer's view of the instance, or the error that
// prevented reading it.
type LBStatus struct {
	Name  string
	State elb.MembershipState
	Err   error
}

// Status reports the instance's membership state on each target load
// balancer. It is read-only: no provider mutation is ever issued, and a
// load balancer that cannot be queried is reported in place rather than
// aborting the rest.
func (o *Orchestrator) Status(ctx context.Context, instanceID string, targets TargetList) ([]LBStatus, error) {
	var names []string
	switch targets.Kind() {
	case TargetExplicit:
		names = targets.Names()
	case TargetDiscoverAll, TargetDiscoverAllLenient:
		discovered, err := o.client.InstanceLoadBalancers(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		names = discovered
	default:
		return nil, &elb.ConfigError{Msg: fmt.Sprintf("unknown target list kind %d", targets.Kind())}
	}

	statuses := make([]LBStatus, 0, len(names))
	for _, name := range names {
		state, err := o.client.PollState(ctx, instanceID, name)
		statuses = append(statuses, LBStatus{Name: name, State: state, Err: err})
	}
	return statuses, nil
}

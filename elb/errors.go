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

// QueryError is a transport or API failure on a read-only provider call.
// Callers treat it as "this load balancer cannot be used this run", not as
// a statement about the instance's membership.
type QueryError struct {
	LoadBalancer string
	Err          error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("could not query instance state on load balancer %q: %v", e.LoadBalancer, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ValidationError marks a load balancer as unusable for the current run.
// The orchestrator skips the load balancer and continues with the rest.
type ValidationError struct {
	LoadBalancer string
	Reason       string
	Err          error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("load balancer %q failed validation: %s: %v", e.LoadBalancer, e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError reports bad input (an unrecognized target state or target
// list). It is fatal and aborts the run before any provider mutation.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ActionError is a failed register or deregister call. It is fatal: the
// instance's membership is now ambiguous and must not be papered over, so
// there is no retry and no rollback of already-processed load balancers.
type ActionError struct {
	Op           string
	LoadBalancer string
	Err          error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("could not %s instance on load balancer %q: %v", e.Op, e.LoadBalancer, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// TimeoutError reports that a load balancer never converged to the target
// state within its poll budget.
type TimeoutError struct {
	LoadBalancer string
	State        MembershipState
	Attempts     int
	Interval     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("load balancer %q did not reach state %s after %d polls %s apart",
		e.LoadBalancer, e.State, e.Attempts, e.Interval)
}

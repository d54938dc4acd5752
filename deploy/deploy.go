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

// Package deploy sequences one instance's exit from and return to a set of
// load balancers around a deployment. The two phases are symmetric and run
// in separate process invocations; the flag file carries the resolved load
// balancer list between them.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/promslog"

	"github.com/elbdrain/elbdrain/elb"
	"github.com/elbdrain/elbdrain/flagfile"
)

// ELBListKey is the flag file key under which the deregister phase records
// the load balancer list for the register phase.
const ELBListKey = "ELB_LIST"

// Client is the provider surface the orchestrator drives. *elb.Client
// implements it; tests substitute a fake.
type Client interface {
	Validate(ctx context.Context, instanceID, lbName string) (*elb.LoadBalancer, error)
	PollState(ctx context.Context, instanceID, lbName string) (elb.MembershipState, error)
	WaitBudget(lb *elb.LoadBalancer, target elb.MembershipState) (attempts int, interval time.Duration, err error)
	RegisterInstance(ctx context.Context, instanceID, lbName string) error
	DeregisterInstance(ctx context.Context, instanceID, lbName string) error
	InstanceLoadBalancers(ctx context.Context, instanceID string) ([]string, error)
}

// Orchestrator drives the deregister and register phases. All per-LB work
// is strictly sequential in list order: deterministic logs and a modest
// API call rate, at the cost of wall clock time growing with the number of
// load balancers. The wait step is sequential too, so the total wait is
// the sum of the individual settling times, not the max.
type Orchestrator struct {
	client Client
	flags  *flagfile.Store
	logger *slog.Logger
	m      *metrics

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New returns an Orchestrator. reg may be nil to skip metric registration.
func New(client Client, flags *flagfile.Store, logger *slog.Logger, reg prometheus.Registerer) *Orchestrator {
	if logger == nil {
		logger = promslog.NewNopLogger()
	}
	return &Orchestrator{
		client: client,
		flags:  flags,
		logger: logger,
		m:      newMetrics(reg),
		sleep:  time.Sleep,
	}
}

// Deregister drains the instance out of every target load balancer: resolve
// the target list, persist it for the paired register pass, validate each
// load balancer (skipping the unusable ones), issue the deregister calls,
// then wait for each load balancer to report the instance out of service.
//
// A nil return with zero provider mutations is possible: lenient discovery
// that finds nothing is a benign no-op.
func (o *Orchestrator) Deregister(ctx context.Context, instanceID string, targets TargetList) error {
	names, done, err := o.resolveDeregisterTargets(ctx, instanceID, targets)
	if err != nil || done {
		return err
	}

	// Record the full resolved list before touching anything, so the
	// register pass knows the original membership set even if some load
	// balancers fail validation below.
	if err := o.flags.Set(ELBListKey, strings.Join(names, " ")); err != nil {
		return err
	}

	lbs := o.validate(ctx, instanceID, names)

	for _, lb := range lbs {
		o.logger.Info("Deregistering instance", "instance", instanceID, "lb", lb.Name)
		o.m.providerCalls.WithLabelValues("deregister").Inc()
		if err := o.client.DeregisterInstance(ctx, instanceID, lb.Name); err != nil {
			return err
		}
	}

	for _, lb := range lbs {
		if err := o.waitFor(ctx, instanceID, lb, elb.StateOutOfService); err != nil {
			return err
		}
	}

	return nil
}

// Register is the symmetric restore phase. On full success the flag file is
// removed, closing out the deployment.
func (o *Orchestrator) Register(ctx context.Context, instanceID string, targets TargetList) error {
	names, done, err := o.resolveRegisterTargets(targets)
	if err != nil || done {
		return err
	}

	lbs := o.validate(ctx, instanceID, names)

	for _, lb := range lbs {
		o.logger.Info("Registering instance", "instance", instanceID, "lb", lb.Name)
		o.m.providerCalls.WithLabelValues("register").Inc()
		if err := o.client.RegisterInstance(ctx, instanceID, lb.Name); err != nil {
			return err
		}
	}

	for _, lb := range lbs {
		if err := o.waitFor(ctx, instanceID, lb, elb.StateInService); err != nil {
			return err
		}
	}

	return o.flags.Remove()
}

// resolveDeregisterTargets turns the target list into concrete names,
// discovering the instance's current load balancers for the sentinels.
// done is true for the benign empty lenient-discovery case.
func (o *Orchestrator) resolveDeregisterTargets(ctx context.Context, instanceID string, targets TargetList) (names []string, done bool, err error) {
	switch targets.Kind() {
	case TargetExplicit:
		return targets.Names(), false, nil
	case TargetDiscoverAll, TargetDiscoverAllLenient:
		names, err = o.client.InstanceLoadBalancers(ctx, instanceID)
		if err != nil {
			return nil, false, err
		}
		if len(names) == 0 {
			if targets.Kind() == TargetDiscoverAllLenient {
				o.logger.Info("Instance is in no load balancer, nothing to deregister", "instance", instanceID)
				return nil, true, nil
			}
			return nil, false, fmt.Errorf("instance %s is not registered with any load balancer", instanceID)
		}
		o.logger.Info("Discovered load balancers", "instance", instanceID, "lbs", strings.Join(names, " "))
		return names, false, nil
	default:
		return nil, false, &elb.ConfigError{Msg: fmt.Sprintf("unknown target list kind %d", targets.Kind())}
	}
}

// resolveRegisterTargets resolves the restore-phase list. The sentinels do
// not re-discover: by now the instance has been out of its load balancers
// for the whole deployment, so discovery would come up empty. The list
// persisted by the deregister pass is authoritative instead.
func (o *Orchestrator) resolveRegisterTargets(targets TargetList) (names []string, done bool, err error) {
	switch targets.Kind() {
	case TargetExplicit:
		return targets.Names(), false, nil
	case TargetDiscoverAll, TargetDiscoverAllLenient:
		stored, err := o.flags.Get(ELBListKey)
		if err != nil {
			if errors.Is(err, flagfile.ErrNotFound) {
				if targets.Kind() == TargetDiscoverAllLenient {
					o.logger.Info("No recorded load balancer list, nothing to register")
					return nil, true, nil
				}
				return nil, false, fmt.Errorf("no load balancer list recorded by a deregister pass in %s", o.flags.Path())
			}
			return nil, false, err
		}
		names = strings.Fields(stored)
		if len(names) == 0 {
			return nil, false, fmt.Errorf("recorded load balancer list in %s is empty", o.flags.Path())
		}
		o.logger.Info("Recovered load balancer list from flag file", "lbs", stored)
		return names, false, nil
	default:
		return nil, false, &elb.ConfigError{Msg: fmt.Sprintf("unknown target list kind %d", targets.Kind())}
	}
}

// validate filters names down to the load balancers usable this run. A
// validation failure is soft: operating on a partial set beats aborting
// the whole deployment, so the failure is logged and the load balancer
// skipped.
func (o *Orchestrator) validate(ctx context.Context, instanceID string, names []string) []*elb.LoadBalancer {
	lbs := make([]*elb.LoadBalancer, 0, len(names))
	for _, name := range names {
		lb, err := o.client.Validate(ctx, instanceID, name)
		if err != nil {
			o.m.skipped.Inc()
			o.logger.Warn("Skipping load balancer", "lb", name, "err", err)
			continue
		}
		lbs = append(lbs, lb)
	}
	return lbs
}

// waitFor polls until the instance reaches the target state on the load
// balancer or the budget runs out. Only the read is retried here, never an
// action. A failed poll consumes an attempt rather than aborting: transient
// read errors should not kill a deployment whose actions all succeeded.
// An instance the provider no longer associates with the load balancer
// counts as out of service.
func (o *Orchestrator) waitFor(ctx context.Context, instanceID string, lb *elb.LoadBalancer, target elb.MembershipState) error {
	attempts, interval, err := o.client.WaitBudget(lb, target)
	if err != nil {
		return err
	}

	o.logger.Info("Waiting for instance state", "lb", lb.Name, "state", target, "attempts", attempts, "interval", interval)

	for i := 0; i < attempts; i++ {
		if i > 0 {
			o.sleep(interval)
		}
		o.m.polls.Inc()

		state, err := o.client.PollState(ctx, instanceID, lb.Name)
		if err != nil {
			o.logger.Warn("State poll failed", "lb", lb.Name, "err", err)
			continue
		}
		if state == target || (target == elb.StateOutOfService && state == elb.StateNotMember) {
			o.logger.Info("Instance reached state", "lb", lb.Name, "state", state)
			return nil
		}
		o.logger.Debug("Instance not yet in target state", "lb", lb.Name, "state", state, "want", target)
	}

	return &elb.TimeoutError{LoadBalancer: lb.Name, State: target, Attempts: attempts, Interval: interval}
}

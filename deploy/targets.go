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
	"fmt"
	"strings"

	"github.com/elbdrain/elbdrain/elb"
)

// Sentinel values accepted in place of an explicit load balancer list.
const (
	// SentinelAll means "every load balancer currently containing the
	// instance"; discovering none is an error.
	SentinelAll = "_all_"
	// SentinelAny is the lenient variant: discovering none is a benign
	// no-op rather than an error.
	SentinelAny = "_any_"
)

// TargetKind discriminates the three forms a target list can take.
type TargetKind int

const (
	TargetExplicit TargetKind = iota
	TargetDiscoverAll
	TargetDiscoverAllLenient
)

// TargetList is the tagged form of the load balancer list handed to the
// orchestrator: an explicit set of names, or one of the discovery
// sentinels.
type TargetList struct {
	kind  TargetKind
	names []string
}

// Kind returns the variant tag.
func (t TargetList) Kind() TargetKind { return t.kind }

// Names returns the explicit names; empty for the discovery variants.
func (t TargetList) Names() []string { return t.names }

func (t TargetList) String() string {
	switch t.kind {
	case TargetDiscoverAll:
		return SentinelAll
	case TargetDiscoverAllLenient:
		return SentinelAny
	default:
		return strings.Join(t.names, " ")
	}
}

// Explicit builds a TargetList from a fixed set of names.
func Explicit(names ...string) TargetList {
	return TargetList{kind: TargetExplicit, names: names}
}

// DiscoverAll is the strict discovery variant.
func DiscoverAll() TargetList { return TargetList{kind: TargetDiscoverAll} }

// DiscoverAllLenient is the discovery variant that treats an empty result
// as success.
func DiscoverAllLenient() TargetList { return TargetList{kind: TargetDiscoverAllLenient} }

// ParseTargets interprets raw list entries. A sentinel must stand alone;
// mixing it with explicit names is ambiguous and rejected. Entries may
// themselves be space- or comma-separated bundles, as when the whole list
// arrives through a single environment variable.
func ParseTargets(raw []string) (TargetList, error) {
	var names []string
	for _, entry := range raw {
		for _, name := range strings.FieldsFunc(entry, func(r rune) bool { return r == ' ' || r == ',' }) {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return TargetList{}, &elb.ConfigError{Msg: "empty load balancer list"}
	}

	for _, name := range names {
		if name != SentinelAll && name != SentinelAny {
			continue
		}
		if len(names) != 1 {
			return TargetList{}, &elb.ConfigError{Msg: fmt.Sprintf("sentinel %q cannot be combined with other load balancer names", name)}
		}
		if name == SentinelAll {
			return DiscoverAll(), nil
		}
		return DiscoverAllLenient(), nil
	}

	return Explicit(names...), nil
}

// Copyright 2024 The Castor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memo

import "github.com/castorsql/castor/plan"

// MultiExpr is one interned (group, operator) pair: Op's inputs are
// always plan.Leaf placeholders pointing at other groups (spec.md §3).
type MultiExpr struct {
	ID    MultiExprID
	Group plan.GroupID
	Op    plan.Operator
	Fired map[string]bool
}

func newMultiExpr(id MultiExprID, gid plan.GroupID, op plan.Operator) *MultiExpr {
	return &MultiExpr{ID: id, Group: gid, Op: op, Fired: make(map[string]bool)}
}

// IsPhysical reports whether Op is one of the optimizer's physical
// operators rather than a logical one. Physical operators implement this
// optional interface; logical operators (plan.Get, plan.Filter, ...) do
// not, so the zero value (not physical) is correct for them.
type physicalMarker interface {
	Physical() bool
}

func isPhysical(op plan.Operator) bool {
	if m, ok := op.(physicalMarker); ok {
		return m.Physical()
	}
	return false
}

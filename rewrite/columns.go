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

// Package rewrite implements the plan-to-plan transformations that run
// outside the cost-based search: dependent-join unnesting (spec.md
// §4.7) and filter pushdown, both run once on the logical plan before
// it is memoized.
package rewrite

import "github.com/castorsql/castor/plan"

// ReferencedColumns returns every column read anywhere within op's scalar
// expressions, recursively through its inputs — the "references" set used
// to decide whether a dependent join's outer parameters are actually used
// by its subquery (spec.md §4.7).
func ReferencedColumns(op plan.Operator) plan.ColSet {
	out := plan.NewColSet()
	switch o := op.(type) {
	case plan.Get:
		for _, p := range o.Predicates {
			out = out.Union(p.Columns())
		}
	case plan.Filter:
		for _, p := range o.Predicates {
			out = out.Union(p.Columns())
		}
	case plan.Map:
		for _, proj := range o.Projects {
			out = out.Union(proj.Expr.Columns())
		}
	case plan.Join:
		for _, p := range o.Predicates {
			out = out.Union(p.Columns())
		}
	case plan.DependentJoin:
		for _, p := range o.Predicates {
			out = out.Union(p.Columns())
		}
		for _, c := range o.Parameters {
			out = out.Add(c.ID)
		}
	case plan.Aggregate:
		for _, a := range o.Aggregates {
			if a.Arg != nil {
				out = out.Union(a.Arg.Columns())
			}
		}
	case plan.Call:
		for _, a := range o.Args {
			out = out.Union(a.Columns())
		}
	}
	for _, in := range op.Inputs() {
		if in == nil {
			continue
		}
		out = out.Union(ReferencedColumns(in))
	}
	return out
}

// FreeParameters filters parameters down to those ReferencedColumns(subquery)
// actually reads.
func FreeParameters(parameters []plan.Column, subquery plan.Operator) []plan.Column {
	refs := ReferencedColumns(subquery)
	var free []plan.Column
	for _, p := range parameters {
		if refs.Contains(p.ID) {
			free = append(free, p)
		}
	}
	return free
}

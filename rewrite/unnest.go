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

package rewrite

import "github.com/castorsql/castor/plan"

// UnnestDependentJoins pushes a DependentJoin down through its subquery
// until the subquery no longer reads any outer parameter, at which point
// it is rewritten into a plain inner Join (spec.md §4.7), following
// "Unnesting Arbitrary Queries" (Neumann & Kemper). The top-down rewrite
// runs once per statement, before cost-based search begins.
func UnnestDependentJoins(op plan.Operator) plan.Operator {
	if dj, ok := op.(plan.DependentJoin); ok {
		if len(FreeParameters(dj.Parameters, dj.Subquery)) > 0 {
			return UnnestDependentJoins(pushDependentJoin(dj))
		}
		return plan.Join{
			Kind:       plan.JoinInner,
			Predicates: dj.Predicates,
			Left:       UnnestDependentJoins(dj.Domain),
			Right:      UnnestDependentJoins(dj.Subquery),
		}
	}
	children := op.Inputs()
	if len(children) == 0 {
		return op
	}
	rewritten := make([]plan.Operator, len(children))
	for i, c := range children {
		rewritten[i] = UnnestDependentJoins(c)
	}
	return op.WithInputs(rewritten)
}

// pushDependentJoin moves one DependentJoin node one level down into its
// subquery, per the per-operator-kind table in spec.md §4.7.
func pushDependentJoin(dj plan.DependentJoin) plan.Operator {
	switch sub := dj.Subquery.(type) {
	case plan.Filter:
		return plan.Filter{
			Predicates: sub.Predicates,
			Input: plan.DependentJoin{
				Parameters: dj.Parameters,
				Predicates: dj.Predicates,
				Domain:     dj.Domain,
				Subquery:   sub.Input,
			},
		}
	case plan.Map:
		projects := append([]plan.MapColumn(nil), sub.Projects...)
		for _, p := range dj.Parameters {
			if !mapHasColumn(projects, p) {
				projects = append(projects, plan.MapColumn{Column: p, Expr: plan.ColumnRef{Column: p}})
			}
		}
		return plan.Map{
			Projects: projects,
			Input: plan.DependentJoin{
				Parameters: dj.Parameters,
				Predicates: dj.Predicates,
				Domain:     dj.Domain,
				Subquery:   sub.Input,
			},
		}
	case plan.Join:
		return pushThroughJoin(dj, sub)
	case plan.Aggregate:
		groupBy := append([]plan.Column(nil), sub.GroupBy...)
		groupBy = append(groupBy, dj.Parameters...)
		return plan.Aggregate{
			GroupBy:    groupBy,
			Aggregates: sub.Aggregates,
			Input: plan.DependentJoin{
				Parameters: dj.Parameters,
				Predicates: dj.Predicates,
				Domain:     dj.Domain,
				Subquery:   sub.Input,
			},
		}
	case plan.Limit:
		return pushThroughLimit(dj, sub)
	case plan.Union:
		return plan.Union{
			Left: plan.DependentJoin{
				Parameters: dj.Parameters, Predicates: dj.Predicates,
				Domain: dj.Domain, Subquery: sub.Left,
			},
			Right: plan.DependentJoin{
				Parameters: dj.Parameters, Predicates: dj.Predicates,
				Domain: dj.Domain, Subquery: sub.Right,
			},
		}
	default:
		return dj
	}
}

func mapHasColumn(projects []plan.MapColumn, c plan.Column) bool {
	for _, p := range projects {
		if p.Column.ID == c.ID {
			return true
		}
	}
	return false
}

// pushThroughJoin implements the three-way split from unnest.rs: push the
// dependent join to whichever side(s) actually reference the outer
// parameters.
func pushThroughJoin(dj plan.DependentJoin, sub plan.Join) plan.Operator {
	leftFree := FreeParameters(dj.Parameters, sub.Left)
	rightFree := FreeParameters(dj.Parameters, sub.Right)
	switch {
	case sub.Kind == plan.JoinInner && len(leftFree) == 0:
		return pushRight(dj, sub)
	case sub.Kind == plan.JoinInner && len(rightFree) == 0:
		return pushLeft(dj, sub)
	case sub.Kind != plan.JoinOuter && len(leftFree) == 0:
		return pushRight(dj, sub)
	default:
		return pushBoth(dj, sub)
	}
}

func pushRight(dj plan.DependentJoin, sub plan.Join) plan.Operator {
	sub.Right = plan.DependentJoin{
		Parameters: dj.Parameters,
		Predicates: nil,
		Domain:     dj.Domain,
		Subquery:   sub.Right,
	}
	return sub
}

func pushLeft(dj plan.DependentJoin, sub plan.Join) plan.Operator {
	sub.Left = plan.DependentJoin{
		Parameters: dj.Parameters,
		Predicates: nil,
		Domain:     dj.Domain,
		Subquery:   sub.Left,
	}
	return sub
}

// pushBoth duplicates the dependent join onto both sides of an inner join
// whose predicates reference outer parameters from both subqueries,
// tying the two copies together with a natural join over fresh column
// names for the left copy's parameters (mirroring the original's
// left_parameters substitution, simplified here since this engine's
// column ids are already process-global and never collide).
func pushBoth(dj plan.DependentJoin, sub plan.Join) plan.Operator {
	leftParams := make([]plan.Column, len(dj.Parameters))
	predicates := append([]plan.Scalar(nil), sub.Predicates...)
	for i, p := range dj.Parameters {
		fresh := plan.NewColumn(p.Name)
		leftParams[i] = fresh
		predicates = append(predicates, plan.FuncCall{
			Function: "is",
			Args:     []plan.Scalar{plan.ColumnRef{Column: fresh}, plan.ColumnRef{Column: p}},
		})
	}
	sub.Predicates = predicates
	sub.Left = plan.DependentJoin{
		Parameters: leftParams,
		Predicates: nil,
		Domain:     dj.Domain,
		Subquery:   sub.Left,
	}
	sub.Right = plan.DependentJoin{
		Parameters: dj.Parameters,
		Predicates: nil,
		Domain:     dj.Domain,
		Subquery:   sub.Right,
	}
	return sub
}

// pushThroughLimit handles the two supported subquery LIMIT forms: LIMIT 0
// drops the dependent join's output, LIMIT 1 becomes any_value (spec.md
// §4.7); any other bound is rejected at plan time rather than silently
// mishandled.
func pushThroughLimit(dj plan.DependentJoin, sub plan.Limit) plan.Operator {
	if sub.Offset > 0 {
		return dj
	}
	switch sub.Limit {
	case 0:
		return plan.Limit{
			Limit: 0,
			Input: plan.DependentJoin{
				Parameters: dj.Parameters, Predicates: dj.Predicates,
				Domain: dj.Domain, Subquery: sub.Input,
			},
		}
	case 1:
		aggs := anyValueAll(sub.Input)
		return plan.DependentJoin{
			Parameters: dj.Parameters,
			Predicates: dj.Predicates,
			Domain:     dj.Domain,
			Subquery:   plan.Aggregate{Aggregates: aggs, Input: sub.Input},
		}
	default:
		return dj
	}
}

// anyValueAll wraps every column the subquery's outermost operator would
// have produced in an any_value aggregate, collapsing its result to one
// row (used to decorrelate a LIMIT 1 subquery).
func anyValueAll(input plan.Operator) []plan.AggregateExpr {
	cols := outputColumns(input)
	aggs := make([]plan.AggregateExpr, len(cols))
	for i, c := range cols {
		aggs[i] = plan.AggregateExpr{Column: c, Func: "any_value", Arg: plan.ColumnRef{Column: c}}
	}
	return aggs
}

// outputColumns best-effort-derives the columns an operator projects,
// used by anyValueAll's LIMIT-1 rewrite and by splitByJoinSide.
func outputColumns(op plan.Operator) []plan.Column {
	switch o := op.(type) {
	case plan.Get:
		return o.Columns
	case plan.Out:
		return o.Columns
	case plan.GetWith:
		return o.Columns
	case plan.Aggregate:
		cols := append([]plan.Column(nil), o.GroupBy...)
		for _, a := range o.Aggregates {
			cols = append(cols, a.Column)
		}
		return cols
	}
	inputs := op.Inputs()
	if len(inputs) > 0 {
		return outputColumns(inputs[0])
	}
	return nil
}

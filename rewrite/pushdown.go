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

// PushFiltersDown moves a Filter's predicates as close to the scans that
// can answer them as possible, one rewrite pass at a time. Unlike the
// cost-based rules the optimizer explores, this runs once before search
// begins: a predicate that cannot possibly get more selective by staying
// higher in the tree should never occupy search budget.
func PushFiltersDown(op plan.Operator) plan.Operator {
	switch o := op.(type) {
	case plan.Filter:
		return pushFilterDown(o.Predicates, PushFiltersDown(o.Input))
	case plan.Join:
		o.Left = PushFiltersDown(o.Left)
		o.Right = PushFiltersDown(o.Right)
		return o
	default:
		children := op.Inputs()
		if len(children) == 0 {
			return op
		}
		rewritten := make([]plan.Operator, len(children))
		for i, c := range children {
			rewritten[i] = PushFiltersDown(c)
		}
		return op.WithInputs(rewritten)
	}
}

// pushFilterDown splits predicates into those it can sink below child and
// those it must keep here, merging with any Filter/Get already present
// rather than stacking a redundant Filter node on top.
func pushFilterDown(predicates []plan.Scalar, child plan.Operator) plan.Operator {
	switch c := child.(type) {
	case plan.Get:
		c.Predicates = append(append([]plan.Scalar(nil), c.Predicates...), predicates...)
		return c
	case plan.Filter:
		c.Predicates = append(append([]plan.Scalar(nil), c.Predicates...), predicates...)
		return c
	case plan.Join:
		sinkLeft, sinkRight, keep := splitByJoinSide(predicates, c.Left, c.Right)
		if len(sinkLeft) > 0 {
			c.Left = pushFilterDown(sinkLeft, c.Left)
		}
		if len(sinkRight) > 0 {
			c.Right = pushFilterDown(sinkRight, c.Right)
		}
		c.Predicates = append(append([]plan.Scalar(nil), c.Predicates...), keep...)
		return c
	default:
		return plan.Filter{Predicates: predicates, Input: child}
	}
}

// splitByJoinSide partitions predicates by which single side of a join
// they reference entirely; a predicate that reads columns from both
// sides (or neither) stays above the join.
func splitByJoinSide(predicates []plan.Scalar, left, right plan.Operator) (sinkLeft, sinkRight, keep []plan.Scalar) {
	leftCols := plan.NewColSet(outputColumns(left)...)
	rightCols := plan.NewColSet(outputColumns(right)...)
	for _, p := range predicates {
		refs := p.Columns()
		switch {
		case refs.Len() == 0:
			keep = append(keep, p)
		case colSetSubsetOf(refs, leftCols):
			sinkLeft = append(sinkLeft, p)
		case colSetSubsetOf(refs, rightCols):
			sinkRight = append(sinkRight, p)
		default:
			keep = append(keep, p)
		}
	}
	return sinkLeft, sinkRight, keep
}

func colSetSubsetOf(sub, super plan.ColSet) bool {
	found := true
	sub.Each(func(id plan.ColumnID) bool {
		if !super.Contains(id) {
			found = false
			return false
		}
		return true
	})
	return found
}

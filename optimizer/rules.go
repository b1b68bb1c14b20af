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

package optimizer

import "github.com/castorsql/castor/plan"

// Implement returns every physical candidate for a logical operator,
// leaving op's own inputs (already Leaf placeholders once memoized)
// untouched. This plays the role of the original engine's per-operator
// Rule::apply: rather than a separate pattern-matching/binding stage,
// each logical arm is implemented directly since none of this engine's
// physical alternatives require rewriting the shape of the input tree
// (join reordering is out of scope — see DESIGN.md).
func Implement(op plan.Operator) []plan.Operator {
	switch o := op.(type) {
	case plan.Get:
		candidates := []plan.Operator{SeqScan{Table: o, Columns: o.Columns, Predicates: o.Predicates}}
		if idx := matchingIndex(o); idx != "" {
			candidates = append(candidates, IndexScan{Table: o, IndexName: idx, Columns: o.Columns, Predicates: o.Predicates})
		}
		return candidates

	case plan.Filter:
		return []plan.Operator{PhysicalFilter{Predicates: o.Predicates, Input: o.Input}}

	case plan.Map:
		return []plan.Operator{PhysicalMap{Projects: o.Projects, Input: o.Input}}

	case plan.Join:
		candidates := []plan.Operator{NestedLoop{Kind: o.Kind, Predicates: o.Predicates, Mark: o.Mark, Left: o.Left, Right: o.Right}}
		if eqL, eqR, residual := equiJoinKeys(o.Predicates); len(eqL) > 0 {
			for _, broadcast := range [...]bool{true, false} {
				candidates = append(candidates, HashJoin{
					Kind: o.Kind, Predicates: residual, Mark: o.Mark,
					EquiLeft: eqL, EquiRight: eqR, Broadcast: broadcast,
					Left: o.Left, Right: o.Right,
				})
			}
		}
		return candidates

	case plan.Aggregate:
		return []plan.Operator{PhysicalAggregate{GroupBy: o.GroupBy, Aggregates: o.Aggregates, Input: o.Input}}

	case plan.Sort:
		return []plan.Operator{PhysicalSort{Keys: o.Keys, Input: o.Input}}

	case plan.Out:
		return []plan.Operator{PhysicalOut{Columns: o.Columns, Input: o.Input}}

	case plan.Limit:
		return []plan.Operator{PhysicalLimit{Limit: o.Limit, Offset: o.Offset, Input: o.Input}}

	case plan.Union:
		return []plan.Operator{PhysicalUnion{Left: o.Left, Right: o.Right}}

	case plan.DML:
		return []plan.Operator{PhysicalDML{Kind: o.Kind, Table: plan.Get{Table: o.Table}, Input: o.Input}}

	case plan.Call:
		return []plan.Operator{PhysicalCall{Procedure: string(o.Procedure), Args: o.Args}}

	case plan.SingleGet, plan.With, plan.GetWith, plan.CreateTempTable,
		plan.DDL, plan.Script, plan.Assign, plan.Explain:
		return []plan.Operator{Trivial{Op: o}}

	default:
		return nil
	}
}

// matchingIndex returns the name of an index on Table usable to answer
// one of Get's equality/range Predicates, or "" if none applies. Kept
// deliberately simple (first column of the index must be bound by a
// predicate) rather than a general access-path selection search, which
// spec.md §4.8 does not require beyond costing IndexScan differently
// from SeqScan.
func matchingIndex(g plan.Get) string {
	for _, idx := range g.Table.Indexes {
		if len(idx.Columns) == 0 {
			continue
		}
		for _, pred := range g.Predicates {
			if predicateBindsColumn(pred, idx.Columns[0]) {
				return idx.Name
			}
		}
	}
	return ""
}

func predicateBindsColumn(pred plan.Scalar, colID int64) bool {
	call, ok := pred.(plan.FuncCall)
	if !ok {
		return false
	}
	switch call.Function {
	case "=", "<", "<=", ">", ">=":
	default:
		return false
	}
	for _, a := range call.Args {
		if ref, ok := a.(plan.ColumnRef); ok && int64(ref.Column.ID) == colID {
			return true
		}
	}
	return false
}

// equiJoinKeys splits Join predicates into column=column equalities (one
// side free of the other's columns) usable as a hash join's build/probe
// keys, and everything else (the residual, evaluated after probing).
func equiJoinKeys(predicates []plan.Scalar) (leftCols, rightCols []string, residual []plan.Scalar) {
	for _, p := range predicates {
		call, ok := p.(plan.FuncCall)
		if !ok || call.Function != "=" || len(call.Args) != 2 {
			residual = append(residual, p)
			continue
		}
		l, lok := call.Args[0].(plan.ColumnRef)
		r, rok := call.Args[1].(plan.ColumnRef)
		if !lok || !rok {
			residual = append(residual, p)
			continue
		}
		leftCols = append(leftCols, l.Column.Name)
		rightCols = append(rightCols, r.Column.Name)
	}
	return leftCols, rightCols, residual
}

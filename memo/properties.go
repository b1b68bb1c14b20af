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

import (
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
)

// TableStatsLookup resolves a catalog table to its accumulated
// statistics; the planner supplies this (backed by storage.Heap.Stats)
// so the memo package never needs to depend on storage.
type TableStatsLookup func(tableID int64) *stats.TableStats

// SeqScanCost is the per-row constant of the local cost model (spec.md
// §4.8), used by this package's lowerBound; optimizer/cost.go keeps its
// own costSeqScan constant with the same value.
const SeqScanCost = 1.0

var lookupTableStats TableStatsLookup = func(int64) *stats.TableStats { return stats.NewTableStats() }

// SetTableStatsLookup installs the catalog-backed stats resolver used by
// computeLogicalProps for plan.Get. Called once during planner startup.
func SetTableStatsLookup(f TableStatsLookup) { lookupTableStats = f }

func groupCardinality(m *Memo, gid plan.GroupID) float64 {
	g := m.Group(gid)
	if g == nil || g.Props == nil {
		return 1
	}
	return g.Props.Cardinality
}

func childGroupID(op plan.Operator, i int) (plan.GroupID, bool) {
	inputs := op.Inputs()
	if i >= len(inputs) {
		return 0, false
	}
	leaf, ok := inputs[i].(plan.Leaf)
	return leaf.Group, ok
}

// computeLogicalProps implements the propagation rules of spec.md §4.6.
// op's inputs are already plan.Leaf placeholders, so child cardinality
// and statistics come from m's already-populated groups.
func computeLogicalProps(m *Memo, op plan.Operator) *LogicalProps {
	props := &LogicalProps{Columns: make(map[plan.ColumnID]*stats.ColumnStats)}

	switch o := op.(type) {
	case plan.SingleGet:
		props.Cardinality = 1

	case plan.Get:
		ts := lookupTableStats(o.Table.ID)
		props.Cardinality = ts.ApproxCardinality()
		for _, col := range o.Columns {
			if cs, ok := ts.Columns[col.Name]; ok {
				props.Columns[col.ID] = cs
			}
		}

	case plan.Filter:
		gid, _ := childGroupID(op, 0)
		sel := 1.0
		for _, pred := range o.Predicates {
			sel *= selectivity(m, gid, pred)
		}
		props.Cardinality = groupCardinality(m, gid) * sel
		copyChildColumns(props, m, gid)

	case plan.Map:
		gid, _ := childGroupID(op, 0)
		props.Cardinality = groupCardinality(m, gid)
		copyChildColumns(props, m, gid)
		// Computed columns have unknown statistics (spec.md §4.6).

	case plan.Out:
		gid, _ := childGroupID(op, 0)
		props.Cardinality = groupCardinality(m, gid)
		child := m.Group(gid)
		if child != nil && child.Props != nil {
			for _, c := range o.Columns {
				if cs, ok := child.Props.Columns[c.ID]; ok {
					props.Columns[c.ID] = cs
				}
			}
		}

	case plan.Join:
		lgid, _ := childGroupID(op, 0)
		rgid, _ := childGroupID(op, 1)
		card := groupCardinality(m, lgid) * groupCardinality(m, rgid)
		sel := 1.0
		for _, pred := range o.Predicates {
			sel *= selectivityAcross(m, lgid, rgid, pred)
		}
		props.Cardinality = card * sel
		copyChildColumns(props, m, lgid)
		copyChildColumns(props, m, rgid)

	case plan.DependentJoin:
		dgid, _ := childGroupID(op, 0)
		sgid, _ := childGroupID(op, 1)
		props.Cardinality = groupCardinality(m, dgid) * groupCardinality(m, sgid)
		copyChildColumns(props, m, dgid)
		copyChildColumns(props, m, sgid)

	case plan.Aggregate:
		gid, _ := childGroupID(op, 0)
		if len(o.GroupBy) == 0 {
			props.Cardinality = 1
			break
		}
		card := 1.0
		known := false
		child := m.Group(gid)
		for _, c := range o.GroupBy {
			if child != nil && child.Props != nil {
				if cs, ok := child.Props.Columns[c.ID]; ok {
					card *= cs.DistinctCount()
					known = true
					continue
				}
			}
			card = groupCardinality(m, gid)
		}
		if !known {
			card = groupCardinality(m, gid)
		}
		props.Cardinality = card

	case plan.Limit:
		gid, _ := childGroupID(op, 0)
		card := groupCardinality(m, gid)
		if o.Limit > 0 && float64(o.Limit) < card {
			card = float64(o.Limit)
		}
		props.Cardinality = card
		copyChildColumns(props, m, gid)

	case plan.Sort:
		gid, _ := childGroupID(op, 0)
		props.Cardinality = groupCardinality(m, gid)
		copyChildColumns(props, m, gid)

	case plan.Union:
		lgid, _ := childGroupID(op, 0)
		rgid, _ := childGroupID(op, 1)
		props.Cardinality = groupCardinality(m, lgid) + groupCardinality(m, rgid)
		copyChildColumns(props, m, lgid)
		for id, cs := range columnsOf(m, rgid) {
			if existing, ok := props.Columns[id]; ok {
				merged := stats.NewColumnStats()
				merged.Merge(existing)
				merged.Merge(cs)
				props.Columns[id] = merged
			} else {
				props.Columns[id] = cs
			}
		}

	default:
		// DDL, DML, With, GetWith, CreateTempTable, Script, Explain,
		// Assign, Call: single-row or side-effecting statements that the
		// optimizer never costs as a Get/Join would (spec.md §4.8's cost
		// table gives these zero cost, except DML, costed at |in|·1).
		props.Cardinality = 1
	}

	return props
}

func columnsOf(m *Memo, gid plan.GroupID) map[plan.ColumnID]*stats.ColumnStats {
	g := m.Group(gid)
	if g == nil || g.Props == nil {
		return nil
	}
	return g.Props.Columns
}

func copyChildColumns(dst *LogicalProps, m *Memo, gid plan.GroupID) {
	for id, cs := range columnsOf(m, gid) {
		dst.Columns[id] = cs
	}
}

// selectivity estimates P(pred) for a single-input predicate, per
// spec.md §4.6: equality on a column uses 1/distinct-count; range uses
// the histogram's cumulative probability; unknown cases default to 1.0
// (no restriction).
func selectivity(m *Memo, gid plan.GroupID, pred plan.Scalar) float64 {
	call, ok := pred.(plan.FuncCall)
	if !ok {
		return 1.0
	}
	switch call.Function {
	case "and":
		sel := 1.0
		for _, arg := range call.Args {
			sel *= selectivity(m, gid, arg)
		}
		return sel
	case "or":
		// Independent union bound: 1 - product(1 - p_i).
		prod := 1.0
		for _, arg := range call.Args {
			prod *= 1 - selectivity(m, gid, arg)
		}
		return 1 - prod
	case "in":
		sel := 0.0
		for _, arg := range call.Args[1:] {
			sel += selectivity(m, gid, plan.FuncCall{Function: "=", Args: []plan.Scalar{call.Args[0], arg}})
		}
		if sel > 1 {
			sel = 1
		}
		return sel
	case "=":
		if cs := columnStatsOfArg(m, gid, call.Args); cs != nil {
			return cs.SelectivityEqual()
		}
	case "<", "<=", ">", ">=":
		if cs := columnStatsOfArg(m, gid, call.Args); cs != nil {
			lit, ok := literalFloat(call.Args)
			if ok {
				p := cs.SelectivityLessThan(lit)
				if call.Function == ">" || call.Function == ">=" {
					return 1 - p
				}
				return p
			}
		}
	}
	return 1.0
}

// selectivityAcross handles join predicates, which may reference columns
// from both input groups (spec.md §4.6: "equality between two columns
// uses 1 / max(distinct_left, distinct_right)").
func selectivityAcross(m *Memo, lgid, rgid plan.GroupID, pred plan.Scalar) float64 {
	call, ok := pred.(plan.FuncCall)
	if !ok || call.Function != "=" || len(call.Args) != 2 {
		return selectivity(m, lgid, pred)
	}
	lc, lok := call.Args[0].(plan.ColumnRef)
	rc, rok := call.Args[1].(plan.ColumnRef)
	if !lok || !rok {
		return selectivity(m, lgid, pred)
	}
	lcs := columnsOf(m, lgid)[lc.Column.ID]
	rcs := columnsOf(m, rgid)[rc.Column.ID]
	if lcs == nil || rcs == nil {
		rcs2 := columnsOf(m, rgid)[lc.Column.ID]
		lcs2 := columnsOf(m, lgid)[rc.Column.ID]
		lcs, rcs = firstNonNil(lcs, lcs2), firstNonNil(rcs, rcs2)
	}
	if lcs == nil || rcs == nil {
		return 1.0
	}
	ld, rd := lcs.DistinctCount(), rcs.DistinctCount()
	max := ld
	if rd > max {
		max = rd
	}
	if max < 1 {
		return 1.0
	}
	return 1 / max
}

func firstNonNil(a, b *stats.ColumnStats) *stats.ColumnStats {
	if a != nil {
		return a
	}
	return b
}

func columnStatsOfArg(m *Memo, gid plan.GroupID, args []plan.Scalar) *stats.ColumnStats {
	for _, a := range args {
		if c, ok := a.(plan.ColumnRef); ok {
			return columnsOf(m, gid)[c.Column.ID]
		}
	}
	return nil
}

func literalFloat(args []plan.Scalar) (float64, bool) {
	for _, a := range args {
		if lit, ok := a.(plan.Literal); ok {
			switch lit.Value.Kind {
			case kernel.Int64, kernel.Date, kernel.Timestamp:
				return float64(lit.Value.I64), true
			case kernel.Float64:
				return lit.Value.F64, true
			}
		}
	}
	return 0, false
}

// lowerBound implements spec.md §4.8: for a Get, cardinality · SeqScanCost;
// for any other operator, the sum of input groups' lower bounds.
func lowerBound(m *Memo, op plan.Operator) float64 {
	if g, ok := op.(plan.Get); ok {
		return groupCardinalityFromTable(m, g) * SeqScanCost
	}
	total := 0.0
	for _, in := range op.Inputs() {
		leaf, ok := in.(plan.Leaf)
		if !ok {
			continue
		}
		if grp := m.Group(leaf.Group); grp != nil {
			total += grp.LowerBound
		}
	}
	return total
}

func groupCardinalityFromTable(m *Memo, g plan.Get) float64 {
	ts := lookupTableStats(g.Table.ID)
	return ts.ApproxCardinality()
}

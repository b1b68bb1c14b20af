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

import (
	"fmt"
	"math"

	"github.com/castorsql/castor/memo"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
)

// Local cost model constants (spec.md §4.8); NodeCount is the cluster
// size used by broadcast/exchange costs and is a property of the
// deployment, not the plan, so it's a package variable rather than a
// per-call argument threaded through every cost function.
const (
	costSeqScan    = 1.0
	costIndexScan  = 10.0
	costFilter     = 1.0
	costMap        = 1.0
	costNestedLoop = 1.0
	costHashBuild  = 4.0
	costHashProbe  = 2.0
	costSort       = 1.0
	costExchange   = 1.0
	costInsert     = 1.0
)

// NodeCount is the cluster size (spec.md §4.8's N), set once by the
// planner from the environment before optimizing any statement.
var NodeCount float64 = 1

// TableStatsLookup mirrors memo.TableStatsLookup so PhysicalCost can
// read SeqScan's |T| without importing storage.
type TableStatsLookup func(tableID int64) *stats.TableStats

var lookupTableStats TableStatsLookup = func(int64) *stats.TableStats { return stats.NewTableStats() }

// SetTableStatsLookup installs the catalog-backed stats resolver used by
// PhysicalCost for SeqScan.
func SetTableStatsLookup(f TableStatsLookup) { lookupTableStats = f }

// PhysicalCost computes the local cost of the physical operator at the
// head of mid's multi-expression (spec.md §4.8's table). Cardinalities
// for non-scan operators come from the logical properties of the
// relevant group; calling this on a logical multi-expression (or Leaf)
// is a bug, since optimize_inputs_and_cost only ever costs physical
// expressions.
func PhysicalCost(m *memo.Memo, mid memo.MultiExprID) float64 {
	expr := m.Expr(mid)
	parentCard := groupCardinality(m, expr.Group)
	switch op := expr.Op.(type) {
	case PhysicalOut, PhysicalLimit, PhysicalUnion, PhysicalCall, Trivial:
		return 0
	case SeqScan:
		n := lookupTableStats(op.Table.Table.ID).ApproxCardinality()
		return n * costSeqScan
	case IndexScan:
		return parentCard * costIndexScan
	case PhysicalFilter:
		return inputCardinality(m, op, 0) * costFilter
	case PhysicalMap:
		return parentCard * costMap
	case NestedLoop:
		build := inputCardinality(m, op, 0)
		probe := inputCardinality(m, op, 1)
		return build * probe * costNestedLoop
	case HashJoin:
		build := inputCardinality(m, op, 0)
		probe := inputCardinality(m, op, 1)
		if op.Broadcast {
			return build*NodeCount*costHashBuild + probe*costHashProbe
		}
		return build*costHashBuild + probe*costHashProbe
	case PhysicalAggregate:
		return inputCardinality(m, op, 0) * costHashBuild
	case PhysicalSort:
		n := math.Max(parentCard, 1)
		return n * math.Log2(n) * costSort
	case Broadcast:
		return inputCardinality(m, op, 0) * costExchange * NodeCount
	case Exchange:
		return inputCardinality(m, op, 0) * costExchange
	case Gather:
		return inputCardinality(m, op, 0) * costExchange
	case PhysicalDML:
		return inputCardinality(m, op, 0) * costInsert
	default:
		panic(fmt.Sprintf("optimizer: PhysicalCost called on non-physical operator %T", expr.Op))
	}
}

func groupCardinality(m *memo.Memo, gid plan.GroupID) float64 {
	g := m.Group(gid)
	if g == nil || g.Props == nil {
		return 1
	}
	return g.Props.Cardinality
}

func inputCardinality(m *memo.Memo, op plan.Operator, i int) float64 {
	inputs := op.Inputs()
	if i >= len(inputs) {
		return 1
	}
	leaf, ok := inputs[i].(plan.Leaf)
	if !ok {
		return 1
	}
	return groupCardinality(m, leaf.Group)
}

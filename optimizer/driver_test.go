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
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/memo"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
	"github.com/stretchr/testify/require"
)

func tableWithRows(name string) catalog.Table {
	return catalog.Table{ID: 100, Name: name, Schema: catalog.Schema{{ID: 0, Name: "id", Type: kernel.Int64}}}
}

func withStats(rowCount float64, fn func()) {
	ts := stats.NewTableStats()
	ts.RowCount = rowCount
	memo.SetTableStatsLookup(func(int64) *stats.TableStats { return ts })
	SetTableStatsLookup(func(int64) *stats.TableStats { return ts })
	defer func() {
		memo.SetTableStatsLookup(func(int64) *stats.TableStats { return stats.NewTableStats() })
		SetTableStatsLookup(func(int64) *stats.TableStats { return stats.NewTableStats() })
	}()
	fn()
}

func TestOptimizeSingleScanPicksSeqScan(t *testing.T) {
	withStats(10, func() {
		m := memo.New()
		col := plan.NewColumn("id")
		gid := m.CopyInNew(plan.Get{Table: tableWithRows("t"), Columns: []plan.Column{col}})

		opt := New(m)
		out, err := opt.Optimize(gid)
		require.NoError(t, err)
		_, ok := out.(SeqScan)
		require.True(t, ok)
	})
}

func TestOptimizeJoinWithEquiKeyPicksHashJoin(t *testing.T) {
	withStats(100, func() {
		m := memo.New()
		lcol := plan.NewColumn("lid")
		rcol := plan.NewColumn("rid")
		lgid := m.CopyInNew(plan.Get{Table: tableWithRows("l"), Columns: []plan.Column{lcol}})
		rgid := m.CopyInNew(plan.Get{Table: tableWithRows("r"), Columns: []plan.Column{rcol}})
		join := plan.Join{
			Kind: plan.JoinInner,
			Predicates: []plan.Scalar{plan.FuncCall{Function: "=", Args: []plan.Scalar{
				plan.ColumnRef{Column: lcol}, plan.ColumnRef{Column: rcol},
			}}},
			Left:  plan.Leaf{Group: lgid},
			Right: plan.Leaf{Group: rgid},
		}
		jgid := m.CopyInNew(join)

		opt := New(m)
		out, err := opt.Optimize(jgid)
		require.NoError(t, err)
		hj, ok := out.(HashJoin)
		require.True(t, ok)
		require.Equal(t, []string{"lid"}, hj.EquiLeft)
		require.Equal(t, []string{"rid"}, hj.EquiRight)
	})
}

func TestOptimizeJoinWithoutEquiKeyPicksNestedLoop(t *testing.T) {
	withStats(10, func() {
		m := memo.New()
		lcol := plan.NewColumn("lid")
		rcol := plan.NewColumn("rid")
		lgid := m.CopyInNew(plan.Get{Table: tableWithRows("l"), Columns: []plan.Column{lcol}})
		rgid := m.CopyInNew(plan.Get{Table: tableWithRows("r"), Columns: []plan.Column{rcol}})
		join := plan.Join{
			Kind: plan.JoinInner,
			Predicates: []plan.Scalar{plan.FuncCall{Function: "<", Args: []plan.Scalar{
				plan.ColumnRef{Column: lcol}, plan.ColumnRef{Column: rcol},
			}}},
			Left:  plan.Leaf{Group: lgid},
			Right: plan.Leaf{Group: rgid},
		}
		jgid := m.CopyInNew(join)

		opt := New(m)
		out, err := opt.Optimize(jgid)
		require.NoError(t, err)
		_, ok := out.(NestedLoop)
		require.True(t, ok)
	})
}

func TestOptimizeAggregateRequiresExchangeEnforcer(t *testing.T) {
	withStats(10, func() {
		m := memo.New()
		col := plan.NewColumn("id")
		gid := m.CopyInNew(plan.Get{Table: tableWithRows("t"), Columns: []plan.Column{col}})
		agg := plan.Aggregate{
			GroupBy: []plan.Column{col},
			Input:   plan.Leaf{Group: gid},
		}
		agid := m.CopyInNew(agg)

		opt := New(m)
		out, err := opt.Optimize(agid)
		require.NoError(t, err)
		physAgg, ok := out.(PhysicalAggregate)
		require.True(t, ok)
		_, ok = physAgg.Input.(Exchange)
		require.True(t, ok, "aggregate input should be enforced to Exchange distribution")
	})
}

func TestOptimizeIsIdempotent(t *testing.T) {
	withStats(10, func() {
		m := memo.New()
		col := plan.NewColumn("id")
		gid := m.CopyInNew(plan.Get{Table: tableWithRows("t"), Columns: []plan.Column{col}})

		opt := New(m)
		first, err := opt.Optimize(gid)
		require.NoError(t, err)
		second, err := opt.Optimize(gid)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

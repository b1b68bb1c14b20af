package memo

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
	"github.com/stretchr/testify/require"
)

func widgetsTable() catalog.Table {
	return catalog.Table{
		ID:   100,
		Name: "widgets",
		Schema: catalog.Schema{
			{ID: 0, Name: "id", Type: kernel.Int64},
			{ID: 1, Name: "price", Type: kernel.Float64},
		},
	}
}

func TestCopyInNewSingleGetHasCardinalityOne(t *testing.T) {
	m := New()
	gid := m.CopyInNew(plan.SingleGet{})
	require.EqualValues(t, 1, m.Group(gid).Props.Cardinality)
}

func TestCopyInDeduplicatesIdenticalOperators(t *testing.T) {
	m := New()
	gid := m.CopyInNew(plan.SingleGet{})
	g := plan.Get{Table: widgetsTable()}
	leafed := g
	id1, fresh1 := m.CopyIn(gid, leafed)
	id2, fresh2 := m.CopyIn(gid, leafed)
	require.True(t, fresh1)
	require.False(t, fresh2)
	require.Equal(t, id1, id2)
}

func TestGetCardinalityFromTableStats(t *testing.T) {
	defer SetTableStatsLookup(func(int64) *stats.TableStats { return stats.NewTableStats() })

	ts := stats.NewTableStats()
	ts.RowCount = 42
	SetTableStatsLookup(func(id int64) *stats.TableStats {
		if id == 100 {
			return ts
		}
		return stats.NewTableStats()
	})

	m := New()
	col := plan.NewColumn("id")
	gid := m.CopyInNew(plan.Get{Table: widgetsTable(), Columns: []plan.Column{col}})
	require.EqualValues(t, 42, m.Group(gid).Props.Cardinality)
}

func TestFilterReducesCardinalityByEqualitySelectivity(t *testing.T) {
	ts := stats.NewTableStats()
	ts.RowCount = 100
	cs := stats.NewColumnStats()
	for i := 0; i < 10; i++ {
		ints := kernel.NewInt64ArrayFromValues([]int64{int64(i)})
		cs.Observe(ints)
	}
	ts.Columns["id"] = cs
	SetTableStatsLookup(func(int64) *stats.TableStats { return ts })
	defer SetTableStatsLookup(func(int64) *stats.TableStats { return stats.NewTableStats() })

	m := New()
	col := plan.NewColumn("id")
	getGid := m.CopyInNew(plan.Get{Table: widgetsTable(), Columns: []plan.Column{col}})
	require.InDelta(t, 100, m.Group(getGid).Props.Cardinality, 0.001)

	filter := plan.Filter{
		Predicates: []plan.Scalar{plan.FuncCall{Function: "=", Args: []plan.Scalar{
			plan.ColumnRef{Column: col}, plan.Literal{Value: kernel.Int64Value(3)},
		}}},
		Input: plan.Leaf{Group: getGid},
	}
	filterGid := m.CopyInNew(filter)
	require.Less(t, m.Group(filterGid).Props.Cardinality, m.Group(getGid).Props.Cardinality)
}

func TestJoinMultipliesChildCardinalities(t *testing.T) {
	m := New()
	lgid := m.CopyInNew(plan.SingleGet{})
	rgid := m.CopyInNew(plan.SingleGet{})
	join := plan.Join{Kind: plan.JoinInner, Left: plan.Leaf{Group: lgid}, Right: plan.Leaf{Group: rgid}}
	jgid := m.CopyInNew(join)
	require.EqualValues(t, 1, m.Group(jgid).Props.Cardinality)
}

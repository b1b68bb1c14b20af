package exec

import (
	"testing"

	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/stretchr/testify/require"
)

func groupedBatch() *kernel.RecordBatch {
	grp := kernel.NewInt64ArrayFromValues([]int64{1, 1, 2, 2, 2})
	val := kernel.NewInt64ArrayFromValues([]int64{10, 20, 1, 2, 3})
	return kernel.NewRecordBatch([]kernel.Column{
		{Name: "g", Array: grp},
		{Name: "v", Array: val},
	})
}

func TestAggregateSumPerGroup(t *testing.T) {
	batch := groupedBatch()
	aggs := []plan.AggregateExpr{{
		Column: plan.Column{Name: "total"},
		Func:   "sum",
		Arg:    plan.ColumnRef{Column: plan.Column{Name: "v"}},
	}}
	out, err := Aggregate(batch, []string{"g"}, aggs, newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	g, _ := out.Column("g")
	total, _ := out.Column("total")
	gArr := g.(*kernel.Int64Array)
	totalArr := total.(*kernel.Int64Array)
	sums := map[int64]int64{}
	for i := 0; i < out.Len(); i++ {
		gv, _ := gArr.Get(i)
		tv, _ := totalArr.Get(i)
		sums[gv] = tv
	}
	require.EqualValues(t, 30, sums[1])
	require.EqualValues(t, 6, sums[2])
}

func TestAggregateCountStarWithNoGroupBy(t *testing.T) {
	batch := groupedBatch()
	aggs := []plan.AggregateExpr{{Column: plan.Column{Name: "n"}, Func: "count_star"}}
	out, err := Aggregate(batch, nil, aggs, newSess())
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	n, _ := out.Column("n")
	v, _ := n.(*kernel.Int64Array).Get(0)
	require.EqualValues(t, 5, v)
}

func TestAggregateMinMax(t *testing.T) {
	batch := groupedBatch()
	aggs := []plan.AggregateExpr{
		{Column: plan.Column{Name: "lo"}, Func: "min", Arg: plan.ColumnRef{Column: plan.Column{Name: "v"}}},
		{Column: plan.Column{Name: "hi"}, Func: "max", Arg: plan.ColumnRef{Column: plan.Column{Name: "v"}}},
	}
	out, err := Aggregate(batch, []string{"g"}, aggs, newSess())
	require.NoError(t, err)
	g, _ := out.Column("g")
	lo, _ := out.Column("lo")
	hi, _ := out.Column("hi")
	for i := 0; i < out.Len(); i++ {
		gv, _ := g.(*kernel.Int64Array).Get(i)
		if gv == 2 {
			lv, _ := lo.(*kernel.Int64Array).Get(i)
			hv, _ := hi.(*kernel.Int64Array).Get(i)
			require.EqualValues(t, 1, lv)
			require.EqualValues(t, 3, hv)
		}
	}
}

func TestAggregateAvg(t *testing.T) {
	batch := groupedBatch()
	aggs := []plan.AggregateExpr{{Column: plan.Column{Name: "avgv"}, Func: "avg", Arg: plan.ColumnRef{Column: plan.Column{Name: "v"}}}}
	out, err := Aggregate(batch, []string{"g"}, aggs, newSess())
	require.NoError(t, err)
	g, _ := out.Column("g")
	avgv, _ := out.Column("avgv")
	for i := 0; i < out.Len(); i++ {
		gv, _ := g.(*kernel.Int64Array).Get(i)
		av, _ := avgv.(*kernel.Float64Array).Get(i)
		if gv == 1 {
			require.InDelta(t, 15.0, av, 0.001)
		}
	}
}

func TestAggregateDistinctCount(t *testing.T) {
	grp := kernel.NewInt64ArrayFromValues([]int64{1, 1, 1})
	val := kernel.NewInt64ArrayFromValues([]int64{5, 5, 6})
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "g", Array: grp}, {Name: "v", Array: val}})
	aggs := []plan.AggregateExpr{{Column: plan.Column{Name: "c"}, Func: "count", Arg: plan.ColumnRef{Column: plan.Column{Name: "v"}}, Distinct: true}}
	out, err := Aggregate(batch, []string{"g"}, aggs, newSess())
	require.NoError(t, err)
	c, _ := out.Column("c")
	v, _ := c.(*kernel.Int64Array).Get(0)
	require.EqualValues(t, 2, v)
}

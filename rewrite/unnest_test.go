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

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/plan"
	"github.com/stretchr/testify/require"
)

func scanOf(table string, cols ...plan.Column) plan.Get {
	return plan.Get{Table: catalog.Table{Name: table}, Columns: cols}
}

func eqPredicate(a, b plan.Column) plan.Scalar {
	return plan.FuncCall{Function: "=", Args: []plan.Scalar{
		plan.ColumnRef{Column: a}, plan.ColumnRef{Column: b},
	}}
}

func TestReferencedColumnsFindsFilterPredicateColumn(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	inner := plan.NewColumn("inner_id")
	sub := plan.Filter{
		Predicates: []plan.Scalar{eqPredicate(outer, inner)},
		Input:      scanOf("t", inner),
	}
	refs := ReferencedColumns(sub)
	require.True(t, refs.Contains(outer.ID))
	require.True(t, refs.Contains(inner.ID))
}

func TestFreeParametersDropsUnusedParameter(t *testing.T) {
	used := plan.NewColumn("used")
	unused := plan.NewColumn("unused")
	inner := plan.NewColumn("inner_id")
	sub := plan.Filter{
		Predicates: []plan.Scalar{eqPredicate(used, inner)},
		Input:      scanOf("t", inner),
	}
	free := FreeParameters([]plan.Column{used, unused}, sub)
	require.Len(t, free, 1)
	require.Equal(t, used.ID, free[0].ID)
}

func TestUnnestPushesThroughFilterIntoPlainJoin(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	inner := plan.NewColumn("inner_id")
	dj := plan.DependentJoin{
		Parameters: []plan.Column{outer},
		Domain:     scanOf("outer_tbl", outer),
		Subquery: plan.Filter{
			Predicates: []plan.Scalar{eqPredicate(outer, inner)},
			Input:      scanOf("inner_tbl", inner),
		},
	}
	out := UnnestDependentJoins(dj)

	filter, ok := out.(plan.Filter)
	require.True(t, ok)
	join, ok := filter.Input.(plan.Join)
	require.True(t, ok)
	require.Empty(t, FreeParameters([]plan.Column{outer}, join.Right))
}

func TestUnnestRewritesInnerJoinByPushingToReferencingSide(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	leftCol := plan.NewColumn("left_id")
	rightCol := plan.NewColumn("right_id")
	dj := plan.DependentJoin{
		Parameters: []plan.Column{outer},
		Domain:     scanOf("outer_tbl", outer),
		Subquery: plan.Join{
			Kind:       plan.JoinInner,
			Predicates: []plan.Scalar{eqPredicate(leftCol, rightCol)},
			Left:       scanOf("left_tbl", leftCol),
			Right: plan.Filter{
				Predicates: []plan.Scalar{eqPredicate(outer, rightCol)},
				Input:      scanOf("right_tbl", rightCol),
			},
		},
	}
	out := UnnestDependentJoins(dj)

	join, ok := out.(plan.Join)
	require.True(t, ok)
	require.Equal(t, plan.JoinInner, join.Kind)
	_, leftIsGet := join.Left.(plan.Get)
	require.True(t, leftIsGet)
}

func TestUnnestLimitOneBecomesAnyValueAggregate(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	inner := plan.NewColumn("inner_id")
	dj := plan.DependentJoin{
		Parameters: []plan.Column{outer},
		Domain:     scanOf("outer_tbl", outer),
		Subquery: plan.Limit{
			Limit: 1,
			Input: plan.Filter{
				Predicates: []plan.Scalar{eqPredicate(outer, inner)},
				Input:      scanOf("inner_tbl", inner),
			},
		},
	}
	out := pushDependentJoin(dj)
	next, ok := out.(plan.DependentJoin)
	require.True(t, ok)
	agg, ok := next.Subquery.(plan.Aggregate)
	require.True(t, ok)
	require.Len(t, agg.Aggregates, 1)
	require.Equal(t, plan.Function("any_value"), agg.Aggregates[0].Func)
}

func TestUnnestLimitZeroPassesThrough(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	inner := plan.NewColumn("inner_id")
	dj := plan.DependentJoin{
		Parameters: []plan.Column{outer},
		Domain:     scanOf("outer_tbl", outer),
		Subquery: plan.Limit{
			Limit: 0,
			Input: scanOf("inner_tbl", inner),
		},
	}
	out := pushDependentJoin(dj)
	lim, ok := out.(plan.Limit)
	require.True(t, ok)
	require.EqualValues(t, 0, lim.Limit)
}

func TestUnnestDistributesOverUnion(t *testing.T) {
	outer := plan.NewColumn("outer_id")
	leftInner := plan.NewColumn("left_inner")
	rightInner := plan.NewColumn("right_inner")
	dj := plan.DependentJoin{
		Parameters: []plan.Column{outer},
		Domain:     scanOf("outer_tbl", outer),
		Subquery: plan.Union{
			Left: plan.Filter{
				Predicates: []plan.Scalar{eqPredicate(outer, leftInner)},
				Input:      scanOf("left_tbl", leftInner),
			},
			Right: plan.Filter{
				Predicates: []plan.Scalar{eqPredicate(outer, rightInner)},
				Input:      scanOf("right_tbl", rightInner),
			},
		},
	}
	out := pushDependentJoin(dj)
	union, ok := out.(plan.Union)
	require.True(t, ok)
	_, leftOK := union.Left.(plan.DependentJoin)
	_, rightOK := union.Right.(plan.DependentJoin)
	require.True(t, leftOK)
	require.True(t, rightOK)
}

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

	"github.com/castorsql/castor/plan"
	"github.com/stretchr/testify/require"
)

func TestPushFiltersDownMergesIntoGet(t *testing.T) {
	id := plan.NewColumn("id")
	lit := plan.Literal{Value: nil}
	top := plan.Filter{
		Predicates: []plan.Scalar{plan.FuncCall{Function: "=", Args: []plan.Scalar{plan.ColumnRef{Column: id}, lit}}},
		Input:      scanOf("t", id),
	}
	out := PushFiltersDown(top)
	get, ok := out.(plan.Get)
	require.True(t, ok)
	require.Len(t, get.Predicates, 1)
}

func TestPushFiltersDownSinksToCorrectJoinSide(t *testing.T) {
	left := plan.NewColumn("l")
	right := plan.NewColumn("r")
	top := plan.Filter{
		Predicates: []plan.Scalar{eqPredicate(left, left)},
		Input: plan.Join{
			Kind:  plan.JoinInner,
			Left:  scanOf("lt", left),
			Right: scanOf("rt", right),
		},
	}
	out := PushFiltersDown(top)
	join, ok := out.(plan.Join)
	require.True(t, ok)
	leftGet, ok := join.Left.(plan.Get)
	require.True(t, ok)
	require.Len(t, leftGet.Predicates, 1)
	rightGet, ok := join.Right.(plan.Get)
	require.True(t, ok)
	require.Empty(t, rightGet.Predicates)
}

func TestPushFiltersDownKeepsCrossSidePredicateAboveJoin(t *testing.T) {
	left := plan.NewColumn("l")
	right := plan.NewColumn("r")
	top := plan.Filter{
		Predicates: []plan.Scalar{eqPredicate(left, right)},
		Input: plan.Join{
			Kind:  plan.JoinInner,
			Left:  scanOf("lt", left),
			Right: scanOf("rt", right),
		},
	}
	out := PushFiltersDown(top)
	_, ok := out.(plan.Join)
	require.True(t, ok, "an equi-join predicate referencing both sides should be absorbed as a join predicate slot, not stranded above")
}

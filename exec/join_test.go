package exec

import (
	"testing"

	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/stretchr/testify/require"
)

func intBatch(name string, vals []int64) *kernel.RecordBatch {
	a := kernel.NewInt64ArrayFromValues(vals)
	return kernel.NewRecordBatch([]kernel.Column{{Name: name, Array: a}})
}

func newSess() *session.Session { return session.New(1, nil, nil) }

func TestHashJoinInnerMatchesOnEquiKey(t *testing.T) {
	left := intBatch("lid", []int64{1, 2, 3})
	right := intBatch("rid", []int64{2, 3, 4})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinInner, nil, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
}

func TestHashJoinSemiReturnsLeftSchemaOnly(t *testing.T) {
	left := intBatch("lid", []int64{1, 2, 3})
	right := intBatch("rid", []int64{2, 3})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinSemi, nil, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	require.Equal(t, 1, out.NumColumns())
}

func TestHashJoinAntiReturnsUnmatchedLeft(t *testing.T) {
	left := intBatch("lid", []int64{1, 2, 3})
	right := intBatch("rid", []int64{2})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinAnti, nil, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
}

func TestHashJoinMarkAddsBooleanColumn(t *testing.T) {
	left := intBatch("lid", []int64{1, 2})
	right := intBatch("rid", []int64{2})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinMark, nil, "found", newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	mark, ok := out.Column("found")
	require.True(t, ok)
	m := mark.(*kernel.BoolArray)
	v0, _ := m.Get(0)
	v1, _ := m.Get(1)
	require.False(t, v0)
	require.True(t, v1)
}

func TestHashJoinRightPadsUnmatchedRightWithNulls(t *testing.T) {
	left := intBatch("lid", []int64{1})
	right := intBatch("rid", []int64{1, 2})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinRight, nil, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	lid, _ := out.Column("lid")
	require.False(t, lid.IsValid(1))
}

func TestHashJoinOuterPadsBothSides(t *testing.T) {
	left := intBatch("lid", []int64{1, 99})
	right := intBatch("rid", []int64{1, 2})
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinOuter, nil, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
}

func TestHashJoinResidualPredicateFiltersMatches(t *testing.T) {
	left := intBatch("lid", []int64{1, 2})
	right := intBatch("rid", []int64{1, 2})
	residual := []plan.Scalar{plan.FuncCall{Function: "=", Args: []plan.Scalar{
		plan.ColumnRef{Column: plan.Column{Name: "lid"}},
		plan.Literal{Value: kernel.Int64Value(2)},
	}}}
	out, err := HashJoin(left, right, []string{"lid"}, []string{"rid"}, plan.JoinInner, residual, "", newSess())
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
}

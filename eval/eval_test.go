package eval

import (
	"testing"

	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/stretchr/testify/require"
)

func batchOf(name string, vals []int64, valid []bool) *kernel.RecordBatch {
	a := kernel.NewInt64Array()
	for i, v := range vals {
		ok := true
		if valid != nil {
			ok = valid[i]
		}
		a.Push(v, ok)
	}
	return kernel.NewRecordBatch([]kernel.Column{{Name: name, Array: a}})
}

func newSession() *session.Session {
	return session.New(1, nil, nil)
}

func TestEvalLiteralRepeatsAcrossBatch(t *testing.T) {
	batch := batchOf("x", []int64{1, 2, 3}, nil)
	out, err := Eval(plan.Literal{Value: kernel.Int64Value(7)}, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.Int64Array)
	require.Equal(t, 3, arr.Len())
	for i := 0; i < 3; i++ {
		v, ok := arr.Get(i)
		require.True(t, ok)
		require.EqualValues(t, 7, v)
	}
}

func TestEvalColumnRefReadsByName(t *testing.T) {
	batch := batchOf("x", []int64{10, 20}, nil)
	col := plan.Column{Name: "x"}
	out, err := Eval(plan.ColumnRef{Column: col}, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.Int64Array)
	v, _ := arr.Get(1)
	require.EqualValues(t, 20, v)
}

func TestEvalColumnRefUnknownReturnsError(t *testing.T) {
	batch := batchOf("x", []int64{1}, nil)
	_, err := Eval(plan.ColumnRef{Column: plan.Column{Name: "missing"}}, batch, newSession())
	require.Error(t, err)
}

func TestEvalParameterBinding(t *testing.T) {
	batch := batchOf("x", []int64{1, 2}, nil)
	sess := session.New(1, []kernel.Value{kernel.Int64Value(99)}, nil)
	out, err := Eval(plan.Parameter{Ordinal: 0}, batch, sess)
	require.NoError(t, err)
	arr := out.(*kernel.Int64Array)
	v, _ := arr.Get(1)
	require.EqualValues(t, 99, v)
}

func TestEvalArithmeticAdd(t *testing.T) {
	batch := batchOf("x", []int64{1, 2, 3}, nil)
	expr := plan.FuncCall{Function: "+", Args: []plan.Scalar{
		plan.ColumnRef{Column: plan.Column{Name: "x"}},
		plan.Literal{Value: kernel.Int64Value(10)},
	}}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.Int64Array)
	v, _ := arr.Get(2)
	require.EqualValues(t, 13, v)
}

func TestEvalComparisonEquals(t *testing.T) {
	batch := batchOf("x", []int64{1, 2, 3}, nil)
	expr := plan.FuncCall{Function: "=", Args: []plan.Scalar{
		plan.ColumnRef{Column: plan.Column{Name: "x"}},
		plan.Literal{Value: kernel.Int64Value(2)},
	}}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.BoolArray)
	v, _ := arr.Get(1)
	require.True(t, v)
	v, _ = arr.Get(0)
	require.False(t, v)
}

func TestEvalLikeWildcards(t *testing.T) {
	require.True(t, likeMatch("hello", "h_ll%"))
	require.True(t, likeMatch("hello", "%"))
	require.False(t, likeMatch("hello", "h_l"))
	require.True(t, likeMatch("100%", "100\\%"))
}

func TestEvalCaseExpression(t *testing.T) {
	batch := batchOf("x", []int64{1, 2, 3}, nil)
	expr := plan.FuncCall{Function: "case", Args: []plan.Scalar{
		plan.FuncCall{Function: "=", Args: []plan.Scalar{
			plan.ColumnRef{Column: plan.Column{Name: "x"}}, plan.Literal{Value: kernel.Int64Value(1)},
		}},
		plan.Literal{Value: kernel.StringValue("one")},
		plan.Literal{Value: kernel.StringValue("other")},
	}}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.StringArray)
	v, _ := arr.Get(0)
	require.Equal(t, "one", v)
	v, _ = arr.Get(1)
	require.Equal(t, "other", v)
}

func TestEvalCoalesceFirstNonNull(t *testing.T) {
	batch := batchOf("x", []int64{1, 2}, []bool{false, true})
	expr := plan.FuncCall{Function: "coalesce", Args: []plan.Scalar{
		plan.ColumnRef{Column: plan.Column{Name: "x"}},
		plan.Literal{Value: kernel.Int64Value(-1)},
	}}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.Int64Array)
	v, _ := arr.Get(0)
	require.EqualValues(t, -1, v)
	v, _ = arr.Get(1)
	require.EqualValues(t, 2, v)
}

func TestEvalNextValIncrementsPerCall(t *testing.T) {
	batch := batchOf("x", []int64{1}, nil)
	sess := newSession()
	expr := plan.FuncCall{Function: "next_val", Args: []plan.Scalar{plan.Literal{Value: kernel.Int64Value(5)}}}
	out1, err := Eval(expr, batch, sess)
	require.NoError(t, err)
	out2, err := Eval(expr, batch, sess)
	require.NoError(t, err)
	v1, _ := out1.(*kernel.Int64Array).Get(0)
	v2, _ := out2.(*kernel.Int64Array).Get(0)
	require.EqualValues(t, 1, v1)
	require.EqualValues(t, 2, v2)
}

func TestEvalNonDeterministicFunctionsRejected(t *testing.T) {
	batch := batchOf("x", []int64{1}, nil)
	_, err := Eval(plan.FuncCall{Function: "current_date"}, batch, newSession())
	require.Error(t, err)
}

func TestCastInt64ToString(t *testing.T) {
	batch := batchOf("x", []int64{42}, nil)
	expr := plan.Cast{Input: plan.ColumnRef{Column: plan.Column{Name: "x"}}, To: kernel.String}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	arr := out.(*kernel.StringArray)
	v, _ := arr.Get(0)
	require.Equal(t, "42", v)
}

func TestCastStringToInt64BadInputErrors(t *testing.T) {
	s := kernel.NewStringArray()
	s.Push("not-a-number", true)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "s", Array: s}})
	expr := plan.Cast{Input: plan.ColumnRef{Column: plan.Column{Name: "s"}}, To: kernel.Int64}
	_, err := Eval(expr, batch, newSession())
	require.Error(t, err)
}

func TestStringFunctionsConcatAndUpper(t *testing.T) {
	s := kernel.NewStringArray()
	s.Push("abc", true)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "s", Array: s}})
	expr := plan.FuncCall{Function: "upper", Args: []plan.Scalar{plan.ColumnRef{Column: plan.Column{Name: "s"}}}}
	out, err := Eval(expr, batch, newSession())
	require.NoError(t, err)
	v, _ := out.(*kernel.StringArray).Get(0)
	require.Equal(t, "ABC", v)
}

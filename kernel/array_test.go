package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapSetGet(t *testing.T) {
	b := NewBitmap(10)
	b.Set(3, true)
	b.Set(9, true)
	require.True(t, b.Get(3))
	require.True(t, b.Get(9))
	require.False(t, b.Get(0))
	require.Equal(t, 2, b.PopCount())
}

func TestInt64ArrayGatherRoundTrip(t *testing.T) {
	a := NewInt64ArrayFromValues([]int64{10, 20, 30, 40})
	perm := NewInt64ArrayFromValues([]int64{3, 1, 0, 2})
	gathered := a.Gather(perm).(*Int64Array)
	inv := NewInt64ArrayFromValues([]int64{2, 1, 3, 0})
	back := gathered.Gather(inv).(*Int64Array)
	for i := 0; i < a.Len(); i++ {
		want, _ := a.Get(i)
		got, _ := back.Get(i)
		require.Equal(t, want, got)
	}
}

func TestCompareEqualIffNotLessOrGreater(t *testing.T) {
	a := NewInt64ArrayFromValues([]int64{1, 2, 3, 3})
	b := NewInt64ArrayFromValues([]int64{3, 2, 1, 3})
	eq, err := Compare(CmpEq, a, b)
	require.NoError(t, err)
	lt, err := Compare(CmpLt, a, b)
	require.NoError(t, err)
	gt, err := Compare(CmpGt, a, b)
	require.NoError(t, err)
	ltOrGt, err := Or(lt, gt)
	require.NoError(t, err)
	notLtOrGt := Not(ltOrGt)
	for i := 0; i < a.Len(); i++ {
		want, _ := eq.Get(i)
		got, _ := notLtOrGt.Get(i)
		require.Equal(t, want, got)
	}
}

func TestIsNullEqualsNull(t *testing.T) {
	a := NewInt64Array()
	a.Push(0, false)
	a.Push(5, true)
	b := NewInt64Array()
	b.Push(0, false)
	b.Push(5, true)
	is, err := Is(a, b)
	require.NoError(t, err)
	v0, _ := is.Get(0)
	v1, _ := is.Get(1)
	require.True(t, v0)
	require.True(t, v1)
}

func TestFloat64ArrayRejectsNaN(t *testing.T) {
	a := NewFloat64Array()
	err := a.Push(nan(), true)
	require.Error(t, err)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestDivideByZero(t *testing.T) {
	a := NewInt64ArrayFromValues([]int64{10})
	b := NewInt64ArrayFromValues([]int64{0})
	_, err := ArithInt64(ArithDiv, a, b)
	require.Error(t, err)
}

func TestRecordBatchSortGatherRoundTrip(t *testing.T) {
	col := NewInt64ArrayFromValues([]int64{3, 1, 2})
	batch := NewRecordBatch([]Column{{Name: "a", Array: col}})
	perm, err := batch.SortByMultiColumn([]SortKey{{Name: "a"}})
	require.NoError(t, err)
	sorted := batch.Gather(perm)
	a, _ := sorted.Column("a")
	ia := a.(*Int64Array)
	for i := 1; i < ia.Len(); i++ {
		prev, _ := ia.Get(i - 1)
		cur, _ := ia.Get(i)
		require.LessOrEqual(t, prev, cur)
	}
}

func TestConcatAndZip(t *testing.T) {
	b1 := NewRecordBatch([]Column{{Name: "a", Array: NewInt64ArrayFromValues([]int64{1, 2})}})
	b2 := NewRecordBatch([]Column{{Name: "a", Array: NewInt64ArrayFromValues([]int64{3})}})
	cat, err := Concat(b1, b2)
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	b3 := NewRecordBatch([]Column{{Name: "b", Array: NewInt64ArrayFromValues([]int64{9, 8, 7})}})
	zipped, err := Zip(cat, b3)
	require.NoError(t, err)
	require.Equal(t, 2, zipped.NumColumns())
}

package storage

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/stretchr/testify/require"
)

func testTable() catalog.Table {
	return catalog.Table{
		ID:   100,
		Name: "widgets",
		Schema: catalog.Schema{
			{ID: 0, Name: "id", Type: kernel.Int64},
			{ID: 1, Name: "name", Type: kernel.String},
		},
	}
}

func makeBatch(n int) *kernel.RecordBatch {
	ids := kernel.NewInt64Array()
	names := kernel.NewStringArray()
	for i := 0; i < n; i++ {
		ids.Push(int64(i), true)
		names.Push("w", true)
	}
	return kernel.NewRecordBatch([]kernel.Column{
		{Name: "id", Array: ids},
		{Name: "name", Array: names},
	})
}

func TestHeapInsertSpillsAcrossPages(t *testing.T) {
	h := NewHeap(testTable())
	batch := makeBatch(PageSize + 10)
	tids := h.Insert(batch, 1)
	require.Equal(t, PageSize+10, tids.Len())
	require.Equal(t, 2, h.PageCount())
	require.EqualValues(t, PageSize+10, h.ApproxCardinality())
}

func TestHeapDeleteByTidHidesRow(t *testing.T) {
	h := NewHeap(testTable())
	batch := makeBatch(3)
	tids := h.Insert(batch, 1)
	tid0, _ := tids.Get(0)
	require.True(t, h.DeleteByTid(tid0, 2))
	require.False(t, h.DeleteByTid(tid0, 3))

	out, err := h.Scan([]string{"$tid", "$xmin", "$xmax"})
	require.NoError(t, err)
	xmax, _ := out.Column("$xmax")
	xmaxArr := xmax.(*kernel.Int64Array)
	v, _ := xmaxArr.Get(0)
	require.Equal(t, int64(2), v)
}

func TestHeapScanEmptyHeapReturnsEmptyBatch(t *testing.T) {
	h := NewHeap(testTable())
	out, err := h.Scan([]string{"id", "name"})
	require.NoError(t, err)
	require.Equal(t, 0, out.Len())
}

func TestHeapStatsObservesInsertedRows(t *testing.T) {
	h := NewHeap(testTable())
	h.Insert(makeBatch(50), 1)
	st := h.Stats()
	require.EqualValues(t, 50, st.RowCount)
	require.Contains(t, st.Columns, "id")
}

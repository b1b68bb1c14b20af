package index

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/stretchr/testify/require"
)

func TestArtInsertGetBasic(t *testing.T) {
	tree := NewArt()
	_, ok := tree.Get([]byte("abc"))
	require.False(t, ok)
	tree.Insert([]byte("abc"), 1)
	v, ok := tree.Get([]byte("abc"))
	require.True(t, ok)
	require.EqualValues(t, 1, v)
}

func TestArtPrefixAndExtensionKeysCoexist(t *testing.T) {
	tree := NewArt()
	tree.Insert([]byte("abc"), 1)
	tree.Insert([]byte("abcde"), 2)
	v1, _ := tree.Get([]byte("abc"))
	v2, _ := tree.Get([]byte("abcde"))
	require.EqualValues(t, 1, v1)
	require.EqualValues(t, 2, v2)
}

func TestArtDeleteThenGetMisses(t *testing.T) {
	tree := NewArt()
	tree.Insert([]byte("k"), 9)
	require.True(t, tree.Delete([]byte("k")))
	_, ok := tree.Get([]byte("k"))
	require.False(t, ok)
	require.False(t, tree.Delete([]byte("k")))
}

// TestRangeScanS7 is the S7 scenario from spec.md: insert [1,2,3,4,5] into
// an indexed column and scan [2,5) -> [2,3,4].
func TestRangeScanS7(t *testing.T) {
	col := kernel.NewInt64ArrayFromValues([]int64{1, 2, 3, 4, 5})
	tids := kernel.NewInt64ArrayFromValues([]int64{10, 11, 12, 13, 14})
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "v", Array: col}})

	tree := NewArt()
	require.NoError(t, Insert(tree, []string{"v"}, batch, tids))

	startBatch := kernel.NewRecordBatch([]kernel.Column{{Name: "v", Array: kernel.NewInt64ArrayFromValues([]int64{2})}})
	endBatch := kernel.NewRecordBatch([]kernel.Column{{Name: "v", Array: kernel.NewInt64ArrayFromValues([]int64{5})}})
	start, err := KeyPrefix([]string{"v"}, startBatch, 0)
	require.NoError(t, err)
	end, err := KeyPrefix([]string{"v"}, endBatch, 0)
	require.NoError(t, err)

	entries := tree.RangeScan(start, end)
	got := make([]int64, len(entries))
	for i, e := range entries {
		got[i] = e.Value
	}
	require.Equal(t, []int64{11, 12, 13}, got)
}

func TestUpperBoundIncrementsLastByte(t *testing.T) {
	require.Equal(t, []byte{1, 2, 4}, UpperBound([]byte{1, 2, 3}))
	require.Equal(t, []byte{1, 3, 0}, UpperBound([]byte{1, 2, 0xFF}))
}

func TestIndexEqualityScan(t *testing.T) {
	col := kernel.NewInt64ArrayFromValues([]int64{7, 7, 8})
	tids := kernel.NewInt64ArrayFromValues([]int64{100, 101, 102})
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "v", Array: col}})

	ix := NewIndex(catalog.IndexDef{ID: 1, Name: "idx_v"}, []string{"v"})
	require.NoError(t, ix.Insert([]string{"v"}, batch, tids))

	keyBatch := kernel.NewRecordBatch([]kernel.Column{{Name: "v", Array: kernel.NewInt64ArrayFromValues([]int64{7})}})
	prefix, err := KeyPrefix([]string{"v"}, keyBatch, 0)
	require.NoError(t, err)

	got := ix.EqualityScan(prefix)
	require.ElementsMatch(t, []int64{100, 101}, got)
}

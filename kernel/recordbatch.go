package kernel

import "gopkg.in/src-d/go-errors.v1"

// ErrSchemaMismatch is returned by Concat when its batches do not share the
// same column names, in order (and by Scatter).
var ErrSchemaMismatch = errors.NewKind("kernel: schema mismatch: %v vs %v")

// Column pairs a stable name with its backing array.
type Column struct {
	Name  string
	Array Array
}

// RecordBatch is an ordered list of equal-length named columns: the
// execution currency every operator consumes and produces.
type RecordBatch struct {
	Columns []Column
}

func NewRecordBatch(cols []Column) *RecordBatch {
	return &RecordBatch{Columns: cols}
}

func (b *RecordBatch) Len() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Array.Len()
}

func (b *RecordBatch) NumColumns() int { return len(b.Columns) }

func (b *RecordBatch) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

func (b *RecordBatch) Column(name string) (Array, bool) {
	for _, c := range b.Columns {
		if c.Name == name {
			return c.Array, true
		}
	}
	return nil, false
}

// Zip horizontally concatenates equal-length batches into one wider batch.
func Zip(batches ...*RecordBatch) (*RecordBatch, error) {
	var cols []Column
	n := -1
	for _, b := range batches {
		if n == -1 {
			n = b.Len()
		} else if b.Len() != n {
			return nil, ErrLengthMismatch.New(n, b.Len())
		}
		cols = append(cols, b.Columns...)
	}
	return NewRecordBatch(cols), nil
}

// Concat vertically concatenates same-schema batches.
func Concat(batches ...*RecordBatch) (*RecordBatch, error) {
	if len(batches) == 0 {
		return NewRecordBatch(nil), nil
	}
	names := batches[0].ColumnNames()
	for _, b := range batches[1:] {
		if !sameNames(names, b.ColumnNames()) {
			return nil, ErrSchemaMismatch.New(names, b.ColumnNames())
		}
	}
	cols := make([]Column, len(names))
	for ci, name := range names {
		arrs := make([]Array, len(batches))
		for bi, b := range batches {
			arrs[bi] = b.Columns[ci].Array
		}
		merged, err := concatArrays(arrs)
		if err != nil {
			return nil, err
		}
		cols[ci] = Column{Name: name, Array: merged}
	}
	return NewRecordBatch(cols), nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func concatArrays(arrs []Array) (Array, error) {
	total := 0
	for _, a := range arrs {
		total += a.Len()
	}
	switch arrs[0].(type) {
	case *BoolArray:
		out := NewBoolArrayCap(0)
		for _, a := range arrs {
			ba := a.(*BoolArray)
			for i := 0; i < ba.Len(); i++ {
				v, ok := ba.Get(i)
				out.Push(v, ok)
			}
		}
		return out, nil
	case *Int64Array:
		first := arrs[0].(*Int64Array)
		out := &Int64Array{kind: first.kind, isValid: NewBitmap(0)}
		for _, a := range arrs {
			ia := a.(*Int64Array)
			for i := 0; i < ia.Len(); i++ {
				v, ok := ia.Get(i)
				out.Push(v, ok)
			}
		}
		return out, nil
	case *Float64Array:
		out := NewFloat64Array()
		for _, a := range arrs {
			fa := a.(*Float64Array)
			for i := 0; i < fa.Len(); i++ {
				v, ok := fa.Get(i)
				if err := out.Push(v, ok); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	case *StringArray:
		out := NewStringArray()
		for _, a := range arrs {
			sa := a.(*StringArray)
			for i := 0; i < sa.Len(); i++ {
				v, ok := sa.Get(i)
				out.Push(v, ok)
			}
		}
		return out, nil
	}
	return nil, ErrKindMismatch.New(arrs[0].Kind(), arrs[0].Kind())
}

// Gather applies the same index vector to every column.
func (b *RecordBatch) Gather(indexes *Int64Array) *RecordBatch {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = Column{Name: c.Name, Array: c.Array.Gather(indexes)}
	}
	return NewRecordBatch(cols)
}

// Compress keeps rows where mask is true (not null).
func (b *RecordBatch) Compress(mask *BoolArray) *RecordBatch {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = Column{Name: c.Name, Array: c.Array.Compress(mask)}
	}
	return NewRecordBatch(cols)
}

// Rename returns a batch with column i renamed to name.
func (b *RecordBatch) Rename(i int, name string) *RecordBatch {
	cols := append([]Column(nil), b.Columns...)
	cols[i] = Column{Name: name, Array: cols[i].Array}
	return NewRecordBatch(cols)
}

// Project keeps only the named columns, in the given order.
func (b *RecordBatch) Project(names []string) (*RecordBatch, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		a, ok := b.Column(name)
		if !ok {
			return nil, errors.NewKind("kernel: no such column %q").New(name)
		}
		cols[i] = Column{Name: name, Array: a}
	}
	return NewRecordBatch(cols), nil
}

// SortKey names a column to sort by and whether it is descending.
type SortKey struct {
	Name string
	Desc bool
}

// SortByMultiColumn returns the stable permutation implementing a
// multi-column ORDER BY.
func (b *RecordBatch) SortByMultiColumn(keys []SortKey) (*Int64Array, error) {
	arrs := make([]Array, len(keys))
	for i, k := range keys {
		a, ok := b.Column(k.Name)
		if !ok {
			return nil, errors.NewKind("kernel: no such column %q").New(k.Name)
		}
		arrs[i] = a
	}
	less := func(i, j int) bool {
		for ki, a := range arrs {
			if Less(a, i, j, keys[ki].Desc) {
				return true
			}
			if Less(a, j, i, keys[ki].Desc) {
				return false
			}
		}
		return false
	}
	return SortToIndex(b.Len(), less), nil
}

// Transpose reinterprets every column as a stride×(len/stride) column-major
// matrix and returns its transpose.
func (b *RecordBatch) Transpose(stride int) *RecordBatch {
	idx := TransposeIndex(b.Len(), stride)
	return b.Gather(idx)
}

// Scatter writes self[i] into into[indexes[i]] for every column, skipping
// rows where indexes[i] is null.
func Scatter(src, into *RecordBatch, indexes *Int64Array) error {
	if len(src.Columns) != len(into.Columns) {
		return ErrSchemaMismatch.New(src.ColumnNames(), into.ColumnNames())
	}
	for i, c := range src.Columns {
		if err := ScatterArray(c.Array, into.Columns[i].Array, indexes); err != nil {
			return err
		}
	}
	return nil
}

// ScatterArray is the kind-dispatching counterpart of Array.Gather.
func ScatterArray(src, into Array, indexes *Int64Array) error {
	switch s := src.(type) {
	case *BoolArray:
		s.Scatter(indexes, into.(*BoolArray))
	case *Int64Array:
		s.Scatter(indexes, into.(*Int64Array))
	case *Float64Array:
		for i := 0; i < s.Len(); i++ {
			idx, ok := indexes.Get(i)
			if !ok {
				continue
			}
			v, valid := s.Get(i)
			if err := into.(*Float64Array).Set(int(idx), v, valid); err != nil {
				return err
			}
		}
	case *StringArray:
		// StringArray has no random-access writer (append-only buffer); a
		// scatter target rebuilds sequentially from a pre-sized null array.
		dst := into.(*StringArray)
		max := dst.Len()
		values := make([]string, max)
		valid := make([]bool, max)
		for i := 0; i < max; i++ {
			values[i], valid[i] = dst.Get(i)
		}
		for i := 0; i < s.Len(); i++ {
			idx, ok := indexes.Get(i)
			if !ok {
				continue
			}
			v, sv := s.Get(i)
			values[idx] = v
			valid[idx] = sv
		}
		rebuilt := NewStringArray()
		for i := range values {
			rebuilt.Push(values[i], valid[i])
		}
		*dst = *rebuilt
	default:
		return ErrKindMismatch.New(src.Kind(), into.Kind())
	}
	return nil
}

// HashColumns folds each named column through a running per-row seed, in
// order, per the §4.1 hash contract.
func (b *RecordBatch) HashColumns(names []string) (*Uint64Array, error) {
	seed := NewUint64Zeros(b.Len())
	for _, name := range names {
		a, ok := b.Column(name)
		if !ok {
			return nil, errors.NewKind("kernel: no such column %q").New(name)
		}
		a.Hash(seed)
	}
	return seed, nil
}

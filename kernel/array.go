package kernel

import (
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Array is the common interface satisfied by every typed column. Binary
// elementwise operators are not part of the interface because their
// signatures depend on concrete kind pairs; they are free functions below
// operating on the Array union (see Equal, Less, etc.).
type Array interface {
	Kind() Kind
	Len() int
	IsValid(i int) bool
	Slice(n int) Array
	Gather(indexes *Int64Array) Array
	Compress(mask *BoolArray) Array
	Hash(seed *Uint64Array)
	sortKey(i int) sortable
}

type sortable interface {
	less(other sortable) bool
}

// ---- Bool ----

type BoolArray struct {
	values  *Bitmap
	isValid *Bitmap
}

func NewBoolArray() *BoolArray {
	return &BoolArray{values: NewBitmap(0), isValid: NewBitmap(0)}
}

func NewBoolArrayCap(n int) *BoolArray {
	return &BoolArray{values: NewBitmap(n), isValid: NewBitmap(n)}
}

func (a *BoolArray) Kind() Kind { return Bool }
func (a *BoolArray) Len() int   { return a.values.Len() }

func (a *BoolArray) Get(i int) (bool, bool) {
	if !a.isValid.Get(i) {
		return false, false
	}
	return a.values.Get(i), true
}

func (a *BoolArray) IsValid(i int) bool { return a.isValid.Get(i) }

func (a *BoolArray) Push(v bool, valid bool) {
	a.values.Push(v)
	a.isValid.Push(valid)
}

func (a *BoolArray) Set(i int, v bool, valid bool) {
	a.values.Set(i, v)
	a.isValid.Set(i, valid)
}

func (a *BoolArray) Slice(n int) Array {
	return &BoolArray{values: a.values.Slice(n), isValid: a.isValid.Slice(n)}
}

func (a *BoolArray) Extend(start, end int, from Array, offset int) {
	src := from.(*BoolArray)
	for i := 0; i < end-start; i++ {
		v, ok := src.Get(offset + i)
		a.Set(start+i, v, ok)
	}
}

func (a *BoolArray) Gather(indexes *Int64Array) Array {
	out := NewBoolArrayCap(indexes.Len())
	for i := 0; i < indexes.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			out.Push(false, false)
			continue
		}
		v, valid := a.Get(int(idx))
		out.Push(v, valid)
	}
	return out
}

func (a *BoolArray) Compress(mask *BoolArray) Array {
	out := NewBoolArray()
	for i := 0; i < a.Len(); i++ {
		if v, ok := mask.Get(i); ok && v {
			val, valid := a.Get(i)
			out.Push(val, valid)
		}
	}
	return out
}

func (a *BoolArray) Scatter(indexes *Int64Array, into *BoolArray) {
	for i := 0; i < a.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			continue
		}
		v, valid := a.Get(i)
		into.Set(int(idx), v, valid)
	}
}

func (a *BoolArray) Hash(seed *Uint64Array) {
	for i := 0; i < a.Len(); i++ {
		v, ok := a.Get(i)
		h := seed.values[i]
		if ok {
			if v {
				h = mix(h, 1)
			} else {
				h = mix(h, 0)
			}
		} else {
			h = mix(h, nullHashConst)
		}
		seed.values[i] = h
	}
}

type boolSortable struct {
	valid bool
	v     bool
}

func (s boolSortable) less(o sortable) bool {
	other := o.(boolSortable)
	if s.valid != other.valid {
		return !s.valid // nulls sort first
	}
	if !s.valid {
		return false
	}
	return !s.v && other.v
}

func (a *BoolArray) sortKey(i int) sortable {
	v, ok := a.Get(i)
	return boolSortable{valid: ok, v: v}
}

// ---- Primitive (Int64 / Float64 / Date / Timestamp) ----

// Int64Array backs INT64, DATE (days since epoch, stored widened), and
// TIMESTAMP (microseconds since epoch) — Date and Timestamp are distinct
// Kinds but share this representation since both are signed 64-bit
// counters against an epoch.
type Int64Array struct {
	kind    Kind
	values  []int64
	isValid *Bitmap
}

func NewInt64Array() *Int64Array      { return newPrimitive(Int64) }
func NewDateArray() *Int64Array       { return newPrimitive(Date) }
func NewTimestampArray() *Int64Array  { return newPrimitive(Timestamp) }
func newPrimitive(k Kind) *Int64Array { return &Int64Array{kind: k, isValid: NewBitmap(0)} }

func NewInt64ArrayFromValues(vs []int64) *Int64Array {
	a := NewInt64Array()
	for _, v := range vs {
		a.Push(v, true)
	}
	return a
}

func (a *Int64Array) Kind() Kind { return a.kind }
func (a *Int64Array) Len() int   { return len(a.values) }

func (a *Int64Array) Get(i int) (int64, bool) {
	if !a.isValid.Get(i) {
		return 0, false
	}
	return a.values[i], true
}

func (a *Int64Array) IsValid(i int) bool { return a.isValid.Get(i) }

func (a *Int64Array) Push(v int64, valid bool) {
	a.values = append(a.values, v)
	a.isValid.Push(valid)
}

func (a *Int64Array) Set(i int, v int64, valid bool) {
	a.values[i] = v
	a.isValid.Set(i, valid)
}

func (a *Int64Array) Slice(n int) Array {
	out := &Int64Array{kind: a.kind, values: append([]int64(nil), a.values[:n]...), isValid: a.isValid.Slice(n)}
	return out
}

func (a *Int64Array) Extend(start, end int, from Array, offset int) {
	src := from.(*Int64Array)
	for len(a.values) < end {
		a.values = append(a.values, 0)
		a.isValid.Push(false)
	}
	for i := 0; i < end-start; i++ {
		v, ok := src.Get(offset + i)
		a.Set(start+i, v, ok)
	}
}

func (a *Int64Array) Gather(indexes *Int64Array) Array {
	out := &Int64Array{kind: a.kind, isValid: NewBitmap(0)}
	for i := 0; i < indexes.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			out.Push(0, false)
			continue
		}
		v, valid := a.Get(int(idx))
		out.Push(v, valid)
	}
	return out
}

func (a *Int64Array) Compress(mask *BoolArray) Array {
	out := &Int64Array{kind: a.kind, isValid: NewBitmap(0)}
	for i := 0; i < a.Len(); i++ {
		if v, ok := mask.Get(i); ok && v {
			val, valid := a.Get(i)
			out.Push(val, valid)
		}
	}
	return out
}

func (a *Int64Array) Scatter(indexes *Int64Array, into *Int64Array) {
	for i := 0; i < a.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			continue
		}
		v, valid := a.Get(i)
		into.Set(int(idx), v, valid)
	}
}

func (a *Int64Array) Hash(seed *Uint64Array) {
	var buf [8]byte
	for i := 0; i < a.Len(); i++ {
		h := seed.values[i]
		if v, ok := a.Get(i); ok {
			putUint64(buf[:], uint64(v))
			h = mix(h, xxhash.Sum64(buf[:]))
		} else {
			h = mix(h, nullHashConst)
		}
		seed.values[i] = h
	}
}

type primSortable struct {
	valid bool
	v     int64
}

func (s primSortable) less(o sortable) bool {
	other := o.(primSortable)
	if s.valid != other.valid {
		return !s.valid
	}
	if !s.valid {
		return false
	}
	return s.v < other.v
}

func (a *Int64Array) sortKey(i int) sortable {
	v, ok := a.Get(i)
	return primSortable{valid: ok, v: v}
}

// ---- Float64 ----

type Float64Array struct {
	values  []float64
	isValid *Bitmap
}

func NewFloat64Array() *Float64Array { return &Float64Array{isValid: NewBitmap(0)} }

func (a *Float64Array) Kind() Kind { return Float64 }
func (a *Float64Array) Len() int   { return len(a.values) }

func (a *Float64Array) Get(i int) (float64, bool) {
	if !a.isValid.Get(i) {
		return 0, false
	}
	return a.values[i], true
}

func (a *Float64Array) IsValid(i int) bool { return a.isValid.Get(i) }

// Push rejects NaN per SPEC_FULL.md open question 2.
func (a *Float64Array) Push(v float64, valid bool) error {
	if valid && v != v {
		return ErrNaN.New()
	}
	a.values = append(a.values, v)
	a.isValid.Push(valid)
	return nil
}

func (a *Float64Array) Set(i int, v float64, valid bool) error {
	if valid && v != v {
		return ErrNaN.New()
	}
	a.values[i] = v
	a.isValid.Set(i, valid)
	return nil
}

func (a *Float64Array) Slice(n int) Array {
	return &Float64Array{values: append([]float64(nil), a.values[:n]...), isValid: a.isValid.Slice(n)}
}

func (a *Float64Array) Extend(start, end int, from Array, offset int) error {
	src := from.(*Float64Array)
	for len(a.values) < end {
		a.values = append(a.values, 0)
		a.isValid.Push(false)
	}
	for i := 0; i < end-start; i++ {
		v, ok := src.Get(offset + i)
		if err := a.Set(start+i, v, ok); err != nil {
			return err
		}
	}
	return nil
}

func (a *Float64Array) Gather(indexes *Int64Array) Array {
	out := NewFloat64Array()
	for i := 0; i < indexes.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			out.Push(0, false)
			continue
		}
		v, valid := a.Get(int(idx))
		out.Push(v, valid)
	}
	return out
}

func (a *Float64Array) Compress(mask *BoolArray) Array {
	out := NewFloat64Array()
	for i := 0; i < a.Len(); i++ {
		if v, ok := mask.Get(i); ok && v {
			val, valid := a.Get(i)
			out.Push(val, valid)
		}
	}
	return out
}

func (a *Float64Array) Hash(seed *Uint64Array) {
	var buf [8]byte
	for i := 0; i < a.Len(); i++ {
		h := seed.values[i]
		if v, ok := a.Get(i); ok {
			putUint64(buf[:], float64bits(v))
			h = mix(h, xxhash.Sum64(buf[:]))
		} else {
			h = mix(h, nullHashConst)
		}
		seed.values[i] = h
	}
}

type floatSortable struct {
	valid bool
	v     float64
}

func (s floatSortable) less(o sortable) bool {
	other := o.(floatSortable)
	if s.valid != other.valid {
		return !s.valid
	}
	if !s.valid {
		return false
	}
	return s.v < other.v
}

func (a *Float64Array) sortKey(i int) sortable {
	v, ok := a.Get(i)
	return floatSortable{valid: ok, v: v}
}

// ---- String ----

type StringArray struct {
	buf     strings.Builder
	offsets []int32
	isValid *Bitmap
}

func NewStringArray() *StringArray {
	return &StringArray{offsets: []int32{0}, isValid: NewBitmap(0)}
}

func (a *StringArray) Kind() Kind { return String }
func (a *StringArray) Len() int   { return len(a.offsets) - 1 }

func (a *StringArray) Get(i int) (string, bool) {
	if !a.isValid.Get(i) {
		return "", false
	}
	s := a.buf.String()
	return s[a.offsets[i]:a.offsets[i+1]], true
}

func (a *StringArray) IsValid(i int) bool { return a.isValid.Get(i) }

func (a *StringArray) Push(v string, valid bool) {
	if valid {
		a.buf.WriteString(v)
	}
	a.offsets = append(a.offsets, int32(a.buf.Len()))
	a.isValid.Push(valid)
}

func (a *StringArray) Slice(n int) Array {
	out := NewStringArray()
	for i := 0; i < n; i++ {
		v, ok := a.Get(i)
		out.Push(v, ok)
	}
	return out
}

func (a *StringArray) Extend(start, end int, from Array, offset int) {
	src := from.(*StringArray)
	for i := start; i < end && i < a.Len(); i++ {
		_ = i
	}
	for i := 0; i < end-start; i++ {
		v, ok := src.Get(offset + i)
		// StringArray has no random-access Set (append-only buffer), so
		// extend is only used while building up to `end` sequentially.
		for a.Len() < start+i {
			a.Push("", false)
		}
		a.Push(v, ok)
	}
}

func (a *StringArray) Gather(indexes *Int64Array) Array {
	out := NewStringArray()
	for i := 0; i < indexes.Len(); i++ {
		idx, ok := indexes.Get(i)
		if !ok {
			out.Push("", false)
			continue
		}
		v, valid := a.Get(int(idx))
		out.Push(v, valid)
	}
	return out
}

func (a *StringArray) Compress(mask *BoolArray) Array {
	out := NewStringArray()
	for i := 0; i < a.Len(); i++ {
		if v, ok := mask.Get(i); ok && v {
			val, valid := a.Get(i)
			out.Push(val, valid)
		}
	}
	return out
}

func (a *StringArray) Hash(seed *Uint64Array) {
	for i := 0; i < a.Len(); i++ {
		h := seed.values[i]
		if v, ok := a.Get(i); ok {
			h = mix(h, xxhash.Sum64String(v))
		} else {
			h = mix(h, nullHashConst)
		}
		seed.values[i] = h
	}
}

type stringSortable struct {
	valid bool
	v     string
}

func (s stringSortable) less(o sortable) bool {
	other := o.(stringSortable)
	if s.valid != other.valid {
		return !s.valid
	}
	if !s.valid {
		return false
	}
	return s.v < other.v
}

func (a *StringArray) sortKey(i int) sortable {
	v, ok := a.Get(i)
	return stringSortable{valid: ok, v: v}
}

// ---- Uint64Array: the running hash-seed vector used by Hash ----

type Uint64Array struct {
	values []uint64
}

func NewUint64Zeros(n int) *Uint64Array {
	return &Uint64Array{values: make([]uint64, n)}
}

func (a *Uint64Array) Len() int         { return len(a.values) }
func (a *Uint64Array) Get(i int) uint64 { return a.values[i] }

const nullHashConst = 0x9e3779b97f4a7c15

func mix(seed, v uint64) uint64 {
	seed ^= v + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2)
	return seed
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

// SortToIndex returns the stable permutation of 0..n-1 ordered by less.
// With Less as the comparator, nulls come first in ascending order; desc
// reverses the whole comparison, so nulls come last.
func SortToIndex(n int, less func(i, j int) bool) *Int64Array {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	out := NewInt64Array()
	for _, v := range idx {
		out.Push(int64(v), true)
	}
	return out
}

// TransposeIndex returns the gather permutation that views an n-length
// array as a stride×(n/stride) column-major matrix and reads it back out
// transposed (row-major over the original column-major storage).
func TransposeIndex(n, stride int) *Int64Array {
	cols := n / stride
	out := NewInt64Array()
	for r := 0; r < stride; r++ {
		for c := 0; c < cols; c++ {
			out.Push(int64(c*stride+r), true)
		}
	}
	return out
}

// Less compares row i of a against row j of a (single column helper used by
// multi-column sort composition in RecordBatch.SortByMultiColumn).
func Less(a Array, i, j int, desc bool) bool {
	si, sj := a.sortKey(i), a.sortKey(j)
	if desc {
		return sj.less(si)
	}
	return si.less(sj)
}

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

package exec

import (
	"strconv"

	"github.com/castorsql/castor/eval"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"gopkg.in/src-d/go-errors.v1"
)

var ErrUnknownAggregate = errors.NewKind("exec: unknown aggregate function %q")

// aggState is one group's running accumulator state, reset to its zero
// value at group creation (spec.md §4.5's Open/Feeding/Finished machine
// collapses here to build-then-finish since the whole input batch is
// already materialized).
type aggState struct {
	count   int64
	sumI    int64
	sumF    float64
	minI    int64
	maxI    int64
	minF    float64
	maxF    float64
	minS    string
	maxS    string
	any     kernel.Value
	anySet  bool
	boolAnd bool
	boolOr  bool
	seen    map[string]bool // distinct-value dedup key per group, when Distinct
}

func newAggState() *aggState {
	return &aggState{boolAnd: true, seen: make(map[string]bool)}
}

// Aggregate groups batch by groupBy columns and folds aggs over each
// group, returning one row per distinct group-by key (spec.md §3/§4.5).
// Grouping uses the same hash-bucket approach as HashJoin's build side so
// both operators share one strategy for partitioning rows by key.
func Aggregate(batch *kernel.RecordBatch, groupBy []string, aggs []plan.AggregateExpr, sess *session.Session) (*kernel.RecordBatch, error) {
	n := batch.Len()
	groupOf := make([]int, n)
	var groupKeys []kernel.Array
	numGroups := 0

	if len(groupBy) == 0 {
		numGroups = 1
		for i := range groupOf {
			groupOf[i] = 0
		}
	} else {
		seed, err := batch.HashColumns(groupBy)
		if err != nil {
			return nil, err
		}
		cols := make([]kernel.Array, len(groupBy))
		for i, name := range groupBy {
			a, ok := batch.Column(name)
			if !ok {
				return nil, ErrNoSuchColumn.New(name)
			}
			cols[i] = a
		}
		bucketOf := make(map[uint64][]int) // hash -> group ids sharing that hash
		groupRepRow := make([]int, 0)
		for i := 0; i < n; i++ {
			h := seed.Get(i)
			found := -1
			for _, g := range bucketOf[h] {
				if rowKeysEqual(cols, i, cols, groupRepRow[g]) {
					found = g
					break
				}
			}
			if found == -1 {
				found = numGroups
				numGroups++
				groupRepRow = append(groupRepRow, i)
				bucketOf[h] = append(bucketOf[h], found)
			}
			groupOf[i] = found
		}
		groupKeys = make([]kernel.Array, len(groupBy))
		repIdx := kernel.NewInt64ArrayFromValues(int64Slice(groupRepRow))
		for i, c := range cols {
			groupKeys[i] = c.Gather(repIdx)
		}
	}

	states := make([]*aggState, numGroups)
	for g := range states {
		states[g] = newAggState()
	}

	argArrays := make([]kernel.Array, len(aggs))
	for ai, a := range aggs {
		if a.Arg == nil {
			continue
		}
		arr, err := eval.Eval(a.Arg, batch, sess)
		if err != nil {
			return nil, err
		}
		argArrays[ai] = arr
	}

	for ai, a := range aggs {
		arr := argArrays[ai]
		for row := 0; row < n; row++ {
			g := groupOf[row]
			if err := accumulate(states[g], a, arr, row); err != nil {
				return nil, err
			}
		}
	}

	cols := make([]kernel.Column, 0, len(groupBy)+len(aggs))
	for i, name := range groupBy {
		cols = append(cols, kernel.Column{Name: name, Array: groupKeys[i]})
	}
	for ai, a := range aggs {
		col, err := finalizeColumn(a, states, argArrays[ai])
		if err != nil {
			return nil, err
		}
		cols = append(cols, kernel.Column{Name: a.Column.Name, Array: col})
	}
	return kernel.NewRecordBatch(cols), nil
}

func int64Slice(ints []int) []int64 {
	out := make([]int64, len(ints))
	for i, v := range ints {
		out[i] = int64(v)
	}
	return out
}

// rowKeysEqual treats two nulls in the same grouping column as equal,
// matching SQL GROUP BY's (but not the regular equality operator's)
// null-handling.
func rowKeysEqual(a []kernel.Array, i int, b []kernel.Array, j int) bool {
	for k := range a {
		iValid, jValid := a[k].IsValid(i), b[k].IsValid(j)
		if iValid != jValid {
			return false
		}
		if !iValid {
			continue
		}
		if !elemEqualAt(a[k], i, b[k], j) {
			return false
		}
	}
	return true
}

func accumulate(s *aggState, a plan.AggregateExpr, arr kernel.Array, row int) error {
	switch a.Func {
	case "count_star":
		s.count++
		return nil
	case "count":
		if arr.IsValid(row) {
			if a.Distinct && !s.markSeen(arr, row) {
				return nil
			}
			s.count++
		}
		return nil
	case "any_value":
		if !s.anySet && arr.IsValid(row) {
			s.any = eval1(arr, row)
			s.anySet = true
		}
		return nil
	case "sum", "avg":
		if !arr.IsValid(row) {
			return nil
		}
		if a.Distinct && !s.markSeen(arr, row) {
			return nil
		}
		s.count++
		switch ta := arr.(type) {
		case *kernel.Int64Array:
			v, _ := ta.Get(row)
			s.sumI += v
		case *kernel.Float64Array:
			v, _ := ta.Get(row)
			s.sumF += v
		}
		return nil
	case "min":
		if !arr.IsValid(row) {
			return nil
		}
		return s.foldMin(arr, row)
	case "max":
		if !arr.IsValid(row) {
			return nil
		}
		return s.foldMax(arr, row)
	case "logical_and":
		if arr.IsValid(row) {
			v, _ := arr.(*kernel.BoolArray).Get(row)
			s.boolAnd = s.boolAnd && v
			s.count++
		}
		return nil
	case "logical_or":
		if arr.IsValid(row) {
			v, _ := arr.(*kernel.BoolArray).Get(row)
			s.boolOr = s.boolOr || v
			s.count++
		}
		return nil
	}
	return ErrUnknownAggregate.New(string(a.Func))
}

func (s *aggState) markSeen(arr kernel.Array, row int) bool {
	key := distinctKey(arr, row)
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

func distinctKey(arr kernel.Array, row int) string {
	switch a := arr.(type) {
	case *kernel.Int64Array:
		v, _ := a.Get(row)
		return strconv.FormatInt(v, 10)
	case *kernel.Float64Array:
		v, _ := a.Get(row)
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *kernel.StringArray:
		v, _ := a.Get(row)
		return v
	case *kernel.BoolArray:
		v, _ := a.Get(row)
		if v {
			return "t"
		}
		return "f"
	}
	return ""
}

func (s *aggState) foldMin(arr kernel.Array, row int) error {
	switch a := arr.(type) {
	case *kernel.Int64Array:
		v, _ := a.Get(row)
		if s.count == 0 || v < s.minI {
			s.minI = v
		}
	case *kernel.Float64Array:
		v, _ := a.Get(row)
		if s.count == 0 || v < s.minF {
			s.minF = v
		}
	case *kernel.StringArray:
		v, _ := a.Get(row)
		if s.count == 0 || v < s.minS {
			s.minS = v
		}
	}
	s.count++
	return nil
}

func (s *aggState) foldMax(arr kernel.Array, row int) error {
	switch a := arr.(type) {
	case *kernel.Int64Array:
		v, _ := a.Get(row)
		if s.count == 0 || v > s.maxI {
			s.maxI = v
		}
	case *kernel.Float64Array:
		v, _ := a.Get(row)
		if s.count == 0 || v > s.maxF {
			s.maxF = v
		}
	case *kernel.StringArray:
		v, _ := a.Get(row)
		if s.count == 0 || v > s.maxS {
			s.maxS = v
		}
	}
	s.count++
	return nil
}

func eval1(arr kernel.Array, row int) kernel.Value {
	switch a := arr.(type) {
	case *kernel.BoolArray:
		v, _ := a.Get(row)
		return kernel.BoolValue(v)
	case *kernel.Int64Array:
		v, _ := a.Get(row)
		switch a.Kind() {
		case kernel.Date:
			return kernel.DateValue(int32(v))
		case kernel.Timestamp:
			return kernel.TimestampValue(v)
		default:
			return kernel.Int64Value(v)
		}
	case *kernel.Float64Array:
		v, _ := a.Get(row)
		return kernel.Float64Value(v)
	case *kernel.StringArray:
		v, _ := a.Get(row)
		return kernel.StringValue(v)
	}
	return kernel.Value{}
}

func finalizeColumn(a plan.AggregateExpr, states []*aggState, arg kernel.Array) (kernel.Array, error) {
	switch a.Func {
	case "count_star", "count":
		out := kernel.NewInt64Array()
		for _, s := range states {
			out.Push(s.count, true)
		}
		return out, nil
	case "any_value":
		return finalizeAny(states, arg)
	case "sum":
		return finalizeSum(states, arg)
	case "avg":
		out := kernel.NewFloat64Array()
		for _, s := range states {
			if s.count == 0 {
				if err := out.Push(0, false); err != nil {
					return nil, err
				}
				continue
			}
			var total float64
			if arg != nil {
				if _, isInt := arg.(*kernel.Int64Array); isInt {
					total = float64(s.sumI)
				} else {
					total = s.sumF
				}
			}
			if err := out.Push(total/float64(s.count), true); err != nil {
				return nil, err
			}
		}
		return out, nil
	case "min":
		return finalizeMinMax(states, arg, true)
	case "max":
		return finalizeMinMax(states, arg, false)
	case "logical_and":
		out := kernel.NewBoolArrayCap(len(states))
		for _, s := range states {
			out.Push(s.boolAnd, s.count > 0)
		}
		return out, nil
	case "logical_or":
		out := kernel.NewBoolArrayCap(len(states))
		for _, s := range states {
			out.Push(s.boolOr, s.count > 0)
		}
		return out, nil
	}
	return nil, ErrUnknownAggregate.New(string(a.Func))
}

func finalizeAny(states []*aggState, arg kernel.Array) (kernel.Array, error) {
	var kind kernel.Kind
	if arg != nil {
		kind = arg.Kind()
	}
	switch kind {
	case kernel.Bool:
		out := kernel.NewBoolArrayCap(len(states))
		for _, s := range states {
			out.Push(s.any.Bool, s.anySet)
		}
		return out, nil
	case kernel.Float64:
		out := kernel.NewFloat64Array()
		for _, s := range states {
			if err := out.Push(s.any.F64, s.anySet); err != nil {
				return nil, err
			}
		}
		return out, nil
	case kernel.String:
		out := kernel.NewStringArray()
		for _, s := range states {
			out.Push(s.any.Str, s.anySet)
		}
		return out, nil
	default:
		out := kernel.NewInt64Array()
		for _, s := range states {
			out.Push(s.any.I64, s.anySet)
		}
		return out, nil
	}
}

func finalizeSum(states []*aggState, arg kernel.Array) (kernel.Array, error) {
	if _, isFloat := arg.(*kernel.Float64Array); isFloat {
		out := kernel.NewFloat64Array()
		for _, s := range states {
			if err := out.Push(s.sumF, s.count > 0); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	out := kernel.NewInt64Array()
	for _, s := range states {
		out.Push(s.sumI, s.count > 0)
	}
	return out, nil
}

func finalizeMinMax(states []*aggState, arg kernel.Array, isMin bool) (kernel.Array, error) {
	switch arg.(type) {
	case *kernel.Float64Array:
		out := kernel.NewFloat64Array()
		for _, s := range states {
			v := s.maxF
			if isMin {
				v = s.minF
			}
			if err := out.Push(v, s.count > 0); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *kernel.StringArray:
		out := kernel.NewStringArray()
		for _, s := range states {
			v := s.maxS
			if isMin {
				v = s.minS
			}
			out.Push(v, s.count > 0)
		}
		return out, nil
	default:
		out := kernel.NewInt64Array()
		for _, s := range states {
			v := s.maxI
			if isMin {
				v = s.minI
			}
			out.Push(v, s.count > 0)
		}
		return out, nil
	}
}

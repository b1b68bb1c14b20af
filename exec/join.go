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
	"github.com/castorsql/castor/eval"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
)

// HashJoin probes left against a hash table built over right's leftKeys/
// rightKeys equi-join columns, then evaluates any remaining residual
// predicates on the matched candidate batch before applying Kind's
// semantics (spec.md §3/§4.5). markName names the extra boolean column
// JoinMark adds; it is ignored for every other Kind.
func HashJoin(left, right *kernel.RecordBatch, leftKeys, rightKeys []string, kind plan.JoinKind, residual []plan.Scalar, markName string, sess *session.Session) (*kernel.RecordBatch, error) {
	ht, err := BuildHashTable(right, rightKeys)
	if err != nil {
		return nil, err
	}
	leftHash, err := left.HashColumns(leftKeys)
	if err != nil {
		return nil, err
	}

	var leftIdx, rightIdx []int64
	for i := 0; i < left.Len(); i++ {
		matches, err := ht.Probe(left, leftKeys, i, leftHash.Get(i))
		if err != nil {
			return nil, err
		}
		for _, r := range matches {
			leftIdx = append(leftIdx, int64(i))
			rightIdx = append(rightIdx, int64(r))
		}
	}
	leftIdxArr := kernel.NewInt64ArrayFromValues(leftIdx)
	rightIdxArr := kernel.NewInt64ArrayFromValues(rightIdx)

	leftGathered := left.Gather(leftIdxArr)
	rightGathered := right.Gather(rightIdxArr)
	zipped, err := kernel.Zip(leftGathered, rightGathered)
	if err != nil {
		return nil, err
	}

	if len(residual) > 0 {
		mask, err := evalPredicateConjunction(residual, zipped, sess)
		if err != nil {
			return nil, err
		}
		zipped = zipped.Compress(mask)
		leftIdxArr = leftIdxArr.Compress(mask).(*kernel.Int64Array)
		rightIdxArr = rightIdxArr.Compress(mask).(*kernel.Int64Array)
	}

	matchedLeft := make([]bool, left.Len())
	matchedRight := make([]bool, right.Len())
	for i := 0; i < leftIdxArr.Len(); i++ {
		l, _ := leftIdxArr.Get(i)
		r, _ := rightIdxArr.Get(i)
		matchedLeft[l] = true
		matchedRight[r] = true
	}

	switch kind {
	case plan.JoinInner:
		return zipped, nil
	case plan.JoinSemi:
		return projectMatched(left, matchedLeft, true)
	case plan.JoinAnti:
		return projectMatched(left, matchedLeft, false)
	case plan.JoinMark:
		return withMarkColumn(left, matchedLeft, markName)
	case plan.JoinRight:
		return appendUnmatchedRight(zipped, left, right, matchedRight)
	case plan.JoinOuter:
		withRight, err := appendUnmatchedRight(zipped, left, right, matchedRight)
		if err != nil {
			return nil, err
		}
		return appendUnmatchedLeft(withRight, left, right, matchedLeft)
	case plan.JoinSingle:
		return singleJoinResult(zipped, left, right, leftIdxArr, matchedLeft)
	}
	return zipped, nil
}

// evalPredicateConjunction ANDs every residual predicate together over
// batch and returns the resulting mask, treating null (unknown) as false
// per SQL join-predicate semantics.
func evalPredicateConjunction(preds []plan.Scalar, batch *kernel.RecordBatch, sess *session.Session) (*kernel.BoolArray, error) {
	var acc *kernel.BoolArray
	for _, p := range preds {
		arr, err := eval.Eval(p, batch, sess)
		if err != nil {
			return nil, err
		}
		b := arr.(*kernel.BoolArray)
		if acc == nil {
			acc = b
			continue
		}
		acc, err = kernel.And(acc, b)
		if err != nil {
			return nil, err
		}
	}
	if acc == nil {
		acc = kernel.NewBoolArrayCap(batch.Len())
		for i := 0; i < batch.Len(); i++ {
			acc.Push(true, true)
		}
	}
	out := kernel.NewBoolArrayCap(acc.Len())
	for i := 0; i < acc.Len(); i++ {
		v, ok := acc.Get(i)
		out.Push(ok && v, true)
	}
	return out, nil
}

// projectMatched returns left's rows where matched[i] == keep, with
// left's own schema (used by Semi/Anti, which never surface right
// columns).
func projectMatched(left *kernel.RecordBatch, matched []bool, keep bool) (*kernel.RecordBatch, error) {
	var idx []int64
	for i, m := range matched {
		if m == keep {
			idx = append(idx, int64(i))
		}
	}
	return left.Gather(kernel.NewInt64ArrayFromValues(idx)), nil
}

func withMarkColumn(left *kernel.RecordBatch, matched []bool, markName string) (*kernel.RecordBatch, error) {
	mark := kernel.NewBoolArrayCap(len(matched))
	for _, m := range matched {
		mark.Push(m, true)
	}
	cols := append([]kernel.Column(nil), left.Columns...)
	cols = append(cols, kernel.Column{Name: markName, Array: mark})
	return kernel.NewRecordBatch(cols), nil
}

// appendUnmatchedRight adds right rows with no left partner, padding the
// left-side columns with nulls (right-outer semantics).
func appendUnmatchedRight(matched *kernel.RecordBatch, left, right *kernel.RecordBatch, matchedRight []bool) (*kernel.RecordBatch, error) {
	var unmatchedRightIdx []int64
	for i, m := range matchedRight {
		if !m {
			unmatchedRightIdx = append(unmatchedRightIdx, int64(i))
		}
	}
	rightOnly := right.Gather(kernel.NewInt64ArrayFromValues(unmatchedRightIdx))
	leftNullPad := nullBatchLike(left, rightOnly.Len())
	rightSide, err := kernel.Zip(leftNullPad, rightOnly)
	if err != nil {
		return nil, err
	}
	return kernel.Concat(matched, rightSide)
}

// appendUnmatchedLeft adds left rows with no right partner, padding the
// right-side columns with nulls (used on top of appendUnmatchedRight to
// build full-outer semantics).
func appendUnmatchedLeft(matched *kernel.RecordBatch, left, right *kernel.RecordBatch, matchedLeft []bool) (*kernel.RecordBatch, error) {
	var unmatchedLeftIdx []int64
	for i, m := range matchedLeft {
		if !m {
			unmatchedLeftIdx = append(unmatchedLeftIdx, int64(i))
		}
	}
	leftOnly := left.Gather(kernel.NewInt64ArrayFromValues(unmatchedLeftIdx))
	rightNullPad := nullBatchLike(right, leftOnly.Len())
	leftSide, err := kernel.Zip(leftOnly, rightNullPad)
	if err != nil {
		return nil, err
	}
	return kernel.Concat(matched, leftSide)
}

// singleJoinResult keeps at most one right match per left row (used to
// decorrelate scalar subqueries turned into JoinSingle), padding left rows
// with no match.
func singleJoinResult(matched *kernel.RecordBatch, left, right *kernel.RecordBatch, leftIdxArr *kernel.Int64Array, matchedLeft []bool) (*kernel.RecordBatch, error) {
	seen := make(map[int64]bool)
	var keep []int64
	for i := 0; i < leftIdxArr.Len(); i++ {
		l, _ := leftIdxArr.Get(i)
		if seen[l] {
			continue
		}
		seen[l] = true
		keep = append(keep, int64(i))
	}
	deduped := matched.Gather(kernel.NewInt64ArrayFromValues(keep))

	var unmatchedLeftIdx []int64
	for i, m := range matchedLeft {
		if !m {
			unmatchedLeftIdx = append(unmatchedLeftIdx, int64(i))
		}
	}
	leftOnly := left.Gather(kernel.NewInt64ArrayFromValues(unmatchedLeftIdx))
	rightNullPad := nullBatchLike(right, leftOnly.Len())
	leftSide, err := kernel.Zip(leftOnly, rightNullPad)
	if err != nil {
		return nil, err
	}
	return kernel.Concat(deduped, leftSide)
}

// nullBatchLike returns an all-null batch with the same schema as tmpl and
// n rows, used to pad the non-preserved side of an outer join.
func nullBatchLike(tmpl *kernel.RecordBatch, n int) *kernel.RecordBatch {
	cols := make([]kernel.Column, len(tmpl.Columns))
	for i, c := range tmpl.Columns {
		cols[i] = kernel.Column{Name: c.Name, Array: nullArrayLike(c.Array, n)}
	}
	return kernel.NewRecordBatch(cols)
}

func nullArrayLike(a kernel.Array, n int) kernel.Array {
	switch a.(type) {
	case *kernel.BoolArray:
		out := kernel.NewBoolArrayCap(n)
		for i := 0; i < n; i++ {
			out.Push(false, false)
		}
		return out
	case *kernel.Int64Array:
		out := kernel.NewInt64Array()
		switch a.Kind() {
		case kernel.Date:
			out = kernel.NewDateArray()
		case kernel.Timestamp:
			out = kernel.NewTimestampArray()
		}
		for i := 0; i < n; i++ {
			out.Push(0, false)
		}
		return out
	case *kernel.Float64Array:
		out := kernel.NewFloat64Array()
		for i := 0; i < n; i++ {
			out.Push(0, false)
		}
		return out
	case *kernel.StringArray:
		out := kernel.NewStringArray()
		for i := 0; i < n; i++ {
			out.Push("", false)
		}
		return out
	}
	return a
}

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

package eval

import (
	"strings"

	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
)

func evalCall(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	switch c.Function {
	case "current_date", "current_timestamp", "rand":
		return nil, ErrNonDeterministic.New(string(c.Function))
	case "next_val":
		return evalNextVal(c, batch, sess)
	case "and", "or", "not", "is", "isnull":
		return evalLogical(c, batch, sess)
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return evalCompare(c, batch, sess)
	case "+", "-", "*", "/", "neg":
		return evalArith(c, batch, sess)
	case "like":
		return evalLike(c, batch, sess)
	case "case":
		return evalCase(c, batch, sess)
	case "coalesce":
		return evalCoalesce(c, batch, sess)
	case "if":
		return evalIf(c, batch, sess)
	case "nullif":
		return evalNullIf(c, batch, sess)
	case "ifnull":
		return evalIfNull(c, batch, sess)
	}
	if fn, ok := stringFuncs[c.Function]; ok {
		return fn(c, batch, sess)
	}
	return nil, ErrUnknownFunction.New(string(c.Function))
}

func evalArgs(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) ([]kernel.Array, error) {
	out := make([]kernel.Array, len(c.Args))
	for i, a := range c.Args {
		arr, err := Eval(a, batch, sess)
		if err != nil {
			return nil, err
		}
		out[i] = arr
	}
	return out, nil
}

func evalNextVal(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 1 {
		return nil, ErrWrongArity.New("next_val", 1, len(c.Args))
	}
	lit, ok := c.Args[0].(plan.Literal)
	if !ok {
		return nil, ErrWrongArity.New("next_val(sequence_id)", 1, 0)
	}
	out := kernel.NewInt64Array()
	for i := 0; i < batch.Len(); i++ {
		out.Push(sess.NextVal(lit.Value.I64), true)
	}
	return out, nil
}

func evalLogical(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	switch c.Function {
	case "not":
		return kernel.Not(args[0].(*kernel.BoolArray)), nil
	case "and":
		acc := args[0].(*kernel.BoolArray)
		for _, a := range args[1:] {
			acc, err = kernel.And(acc, a.(*kernel.BoolArray))
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	case "or":
		acc := args[0].(*kernel.BoolArray)
		for _, a := range args[1:] {
			acc, err = kernel.Or(acc, a.(*kernel.BoolArray))
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	case "is":
		return kernel.Is(args[0], args[1])
	case "isnull":
		out := kernel.NewBoolArrayCap(args[0].Len())
		for i := 0; i < args[0].Len(); i++ {
			out.Push(!args[0].IsValid(i), true)
		}
		return out, nil
	}
	return nil, ErrUnknownFunction.New(string(c.Function))
}

var compareOps = map[plan.Function]kernel.Cmp{
	"=": kernel.CmpEq, "!=": kernel.CmpNe, "<>": kernel.CmpNe,
	"<": kernel.CmpLt, "<=": kernel.CmpLe, ">": kernel.CmpGt, ">=": kernel.CmpGe,
}

func evalCompare(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, ErrWrongArity.New(string(c.Function), 2, len(args))
	}
	return kernel.Compare(compareOps[c.Function], args[0], args[1])
}

func evalArith(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	if c.Function == "neg" {
		switch a := args[0].(type) {
		case *kernel.Int64Array:
			return kernel.NegateInt64(a), nil
		case *kernel.Float64Array:
			return kernel.NegateFloat64(a)
		}
		return nil, ErrBadCast.New(args[0].Kind().String(), "numeric")
	}
	if len(args) != 2 {
		return nil, ErrWrongArity.New(string(c.Function), 2, len(args))
	}
	opMap := map[plan.Function]kernel.Arith{"+": kernel.ArithAdd, "-": kernel.ArithSub, "*": kernel.ArithMul, "/": kernel.ArithDiv}
	op := opMap[c.Function]
	switch a := args[0].(type) {
	case *kernel.Int64Array:
		b, ok := args[1].(*kernel.Int64Array)
		if !ok {
			return nil, ErrBadCast.New(args[1].Kind().String(), "int64")
		}
		return kernel.ArithInt64(op, a, b)
	case *kernel.Float64Array:
		b, ok := args[1].(*kernel.Float64Array)
		if !ok {
			return nil, ErrBadCast.New(args[1].Kind().String(), "float64")
		}
		return kernel.ArithFloat64(op, a, b)
	}
	return nil, ErrBadCast.New(args[0].Kind().String(), "numeric")
}

// evalLike implements SQL LIKE: '_' matches exactly one rune, '%' matches
// any run of runes (including none), '\' escapes the following rune
// (spec.md §4.4).
func evalLike(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, ErrWrongArity.New("like", 2, len(args))
	}
	s := args[0].(*kernel.StringArray)
	pat := args[1].(*kernel.StringArray)
	out := kernel.NewBoolArrayCap(s.Len())
	for i := 0; i < s.Len(); i++ {
		sv, svalid := s.Get(i)
		pv, pvalid := pat.Get(i)
		if !svalid || !pvalid {
			out.Push(false, false)
			continue
		}
		out.Push(likeMatch(sv, pv), true)
	}
	return out, nil
}

func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '\\':
		if len(p) < 2 {
			return false
		}
		if len(s) == 0 || s[0] != p[1] {
			return false
		}
		return likeMatchRunes(s[1:], p[2:])
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatchRunes(s[i:], p[1:]) {
				return true
			}
		}
		return false
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}

func evalCase(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	// Args are laid out (cond1, result1, cond2, result2, ..., [else]).
	args := c.Args
	n := batch.Len()
	results := make([]kernel.Value, n)
	filled := make([]bool, n)
	pairs := len(args) / 2
	for p := 0; p < pairs; p++ {
		cond, err := Eval(args[2*p], batch, sess)
		if err != nil {
			return nil, err
		}
		val, err := Eval(args[2*p+1], batch, sess)
		if err != nil {
			return nil, err
		}
		condBool := cond.(*kernel.BoolArray)
		for i := 0; i < n; i++ {
			if filled[i] {
				continue
			}
			if v, ok := condBool.Get(i); ok && v {
				results[i] = valueAt(val, i)
				filled[i] = true
			}
		}
	}
	if len(args)%2 == 1 {
		elseVal, err := Eval(args[len(args)-1], batch, sess)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if !filled[i] {
				results[i] = valueAt(elseVal, i)
				filled[i] = true
			}
		}
	}
	return buildFromValues(results)
}

func evalCoalesce(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	n := batch.Len()
	results := make([]kernel.Value, n)
	for i := 0; i < n; i++ {
		for _, a := range args {
			if a.IsValid(i) {
				results[i] = valueAt(a, i)
				break
			}
		}
	}
	return buildFromValues(results)
}

func evalIf(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 3 {
		return nil, ErrWrongArity.New("if", 3, len(c.Args))
	}
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	cond := args[0].(*kernel.BoolArray)
	n := batch.Len()
	results := make([]kernel.Value, n)
	for i := 0; i < n; i++ {
		if v, ok := cond.Get(i); ok && v {
			results[i] = valueAt(args[1], i)
		} else {
			results[i] = valueAt(args[2], i)
		}
	}
	return buildFromValues(results)
}

func evalNullIf(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 2 {
		return nil, ErrWrongArity.New("nullif", 2, len(c.Args))
	}
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	eq, err := kernel.Compare(kernel.CmpEq, args[0], args[1])
	if err != nil {
		return nil, err
	}
	n := batch.Len()
	results := make([]kernel.Value, n)
	for i := 0; i < n; i++ {
		if v, ok := eq.Get(i); ok && v {
			results[i] = kernel.NullValue(args[0].Kind())
		} else {
			results[i] = valueAt(args[0], i)
		}
	}
	return buildFromValues(results)
}

func evalIfNull(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 2 {
		return nil, ErrWrongArity.New("ifnull", 2, len(c.Args))
	}
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	n := batch.Len()
	results := make([]kernel.Value, n)
	for i := 0; i < n; i++ {
		if args[0].IsValid(i) {
			results[i] = valueAt(args[0], i)
		} else {
			results[i] = valueAt(args[1], i)
		}
	}
	return buildFromValues(results)
}

// valueAt boxes element i of a as a kernel.Value, used by the branching
// scalar functions (case/coalesce/if/...) that pick among several arrays
// row by row.
func valueAt(a kernel.Array, i int) kernel.Value {
	if !a.IsValid(i) {
		return kernel.NullValue(a.Kind())
	}
	switch arr := a.(type) {
	case *kernel.BoolArray:
		v, _ := arr.Get(i)
		return kernel.BoolValue(v)
	case *kernel.Int64Array:
		v, _ := arr.Get(i)
		switch arr.Kind() {
		case kernel.Date:
			return kernel.DateValue(int32(v))
		case kernel.Timestamp:
			return kernel.TimestampValue(v)
		default:
			return kernel.Int64Value(v)
		}
	case *kernel.Float64Array:
		v, _ := arr.Get(i)
		return kernel.Float64Value(v)
	case *kernel.StringArray:
		v, _ := arr.Get(i)
		return kernel.StringValue(v)
	}
	return kernel.Value{}
}

func buildFromValues(values []kernel.Value) (kernel.Array, error) {
	if len(values) == 0 {
		return kernel.NewBoolArray(), nil
	}
	kind := values[0].Kind
	for _, v := range values {
		if v.Valid {
			kind = v.Kind
			break
		}
	}
	switch kind {
	case kernel.Bool:
		out := kernel.NewBoolArrayCap(len(values))
		for _, v := range values {
			out.Push(v.Bool, v.Valid)
		}
		return out, nil
	case kernel.Int64:
		out := kernel.NewInt64Array()
		for _, v := range values {
			out.Push(v.I64, v.Valid)
		}
		return out, nil
	case kernel.Date:
		out := kernel.NewDateArray()
		for _, v := range values {
			out.Push(v.I64, v.Valid)
		}
		return out, nil
	case kernel.Timestamp:
		out := kernel.NewTimestampArray()
		for _, v := range values {
			out.Push(v.I64, v.Valid)
		}
		return out, nil
	case kernel.Float64:
		out := kernel.NewFloat64Array()
		for _, v := range values {
			if err := out.Push(v.F64, v.Valid); err != nil {
				return nil, err
			}
		}
		return out, nil
	case kernel.String:
		out := kernel.NewStringArray()
		for _, v := range values {
			out.Push(v.Str, v.Valid)
		}
		return out, nil
	}
	return nil, ErrUnknownFunction.New("<unknown branch result kind>")
}

// --- string functions ---

type stringFunc func(plan.FuncCall, *kernel.RecordBatch, *session.Session) (kernel.Array, error)

var stringFuncs map[plan.Function]stringFunc

func init() {
	stringFuncs = map[plan.Function]stringFunc{
		"concat":      funcConcat,
		"length":      unaryStringToInt(func(s string) int64 { return int64(len([]rune(s))) }),
		"lower":       unaryStringToString(strings.ToLower),
		"upper":       unaryStringToString(strings.ToUpper),
		"reverse":     unaryStringToString(reverseString),
		"trim":        unaryStringToString(strings.TrimSpace),
		"ltrim":       unaryStringToString(func(s string) string { return strings.TrimLeft(s, " ") }),
		"rtrim":       unaryStringToString(func(s string) string { return strings.TrimRight(s, " ") }),
		"starts_with": binaryStringToBool(strings.HasPrefix),
		"ends_with":   binaryStringToBool(strings.HasSuffix),
		"strpos":      funcStrpos,
		"substr":      funcSubstr,
		"replace":     funcReplace,
		"left":        funcLeft,
		"right":       funcRight,
		"repeat":      funcRepeatStr,
		"lpad":        funcLpad,
		"rpad":        funcRpad,
		"chr":         funcChr,
	}
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func unaryStringToString(f func(string) string) stringFunc {
	return func(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
		args, err := evalArgs(c, batch, sess)
		if err != nil {
			return nil, err
		}
		s := args[0].(*kernel.StringArray)
		out := kernel.NewStringArray()
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Get(i)
			out.Push(f(v), ok)
		}
		return out, nil
	}
}

func unaryStringToInt(f func(string) int64) stringFunc {
	return func(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
		args, err := evalArgs(c, batch, sess)
		if err != nil {
			return nil, err
		}
		s := args[0].(*kernel.StringArray)
		out := kernel.NewInt64Array()
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Get(i)
			out.Push(f(v), ok)
		}
		return out, nil
	}
}

func binaryStringToBool(f func(a, b string) bool) stringFunc {
	return func(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
		args, err := evalArgs(c, batch, sess)
		if err != nil {
			return nil, err
		}
		a := args[0].(*kernel.StringArray)
		b := args[1].(*kernel.StringArray)
		out := kernel.NewBoolArrayCap(a.Len())
		for i := 0; i < a.Len(); i++ {
			av, aok := a.Get(i)
			bv, bok := b.Get(i)
			if !aok || !bok {
				out.Push(false, false)
				continue
			}
			out.Push(f(av, bv), true)
		}
		return out, nil
	}
}

func funcConcat(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	n := batch.Len()
	out := kernel.NewStringArray()
	for i := 0; i < n; i++ {
		var b strings.Builder
		valid := true
		for _, a := range args {
			s := a.(*kernel.StringArray)
			v, ok := s.Get(i)
			if !ok {
				valid = false
				break
			}
			b.WriteString(v)
		}
		out.Push(b.String(), valid)
	}
	return out, nil
}

func funcStrpos(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	haystack := args[0].(*kernel.StringArray)
	needle := args[1].(*kernel.StringArray)
	out := kernel.NewInt64Array()
	for i := 0; i < haystack.Len(); i++ {
		hv, hok := haystack.Get(i)
		nv, nok := needle.Get(i)
		if !hok || !nok {
			out.Push(0, false)
			continue
		}
		idx := strings.Index(hv, nv)
		out.Push(int64(idx+1), true) // 1-based, 0 means not found
	}
	return out, nil
}

func funcSubstr(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	s := args[0].(*kernel.StringArray)
	pos := args[1].(*kernel.Int64Array)
	var length *kernel.Int64Array
	if len(args) > 2 {
		length = args[2].(*kernel.Int64Array)
	}
	out := kernel.NewStringArray()
	for i := 0; i < s.Len(); i++ {
		sv, sok := s.Get(i)
		pv, pok := pos.Get(i)
		if !sok || !pok {
			out.Push("", false)
			continue
		}
		r := []rune(sv)
		start := int(pv) - 1
		if start < 0 {
			start = 0
		}
		if start > len(r) {
			start = len(r)
		}
		end := len(r)
		if length != nil {
			lv, lok := length.Get(i)
			if lok {
				end = start + int(lv)
				if end > len(r) {
					end = len(r)
				}
				if end < start {
					end = start
				}
			}
		}
		out.Push(string(r[start:end]), true)
	}
	return out, nil
}

func funcReplace(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	s := args[0].(*kernel.StringArray)
	from := args[1].(*kernel.StringArray)
	to := args[2].(*kernel.StringArray)
	out := kernel.NewStringArray()
	for i := 0; i < s.Len(); i++ {
		sv, ok1 := s.Get(i)
		fv, ok2 := from.Get(i)
		tv, ok3 := to.Get(i)
		if !ok1 || !ok2 || !ok3 {
			out.Push("", false)
			continue
		}
		out.Push(strings.ReplaceAll(sv, fv, tv), true)
	}
	return out, nil
}

func funcLeft(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return sidedSubstring(c, batch, sess, true)
}

func funcRight(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return sidedSubstring(c, batch, sess, false)
}

func sidedSubstring(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session, left bool) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	s := args[0].(*kernel.StringArray)
	n := args[1].(*kernel.Int64Array)
	out := kernel.NewStringArray()
	for i := 0; i < s.Len(); i++ {
		sv, sok := s.Get(i)
		nv, nok := n.Get(i)
		if !sok || !nok {
			out.Push("", false)
			continue
		}
		r := []rune(sv)
		k := int(nv)
		if k > len(r) {
			k = len(r)
		}
		if k < 0 {
			k = 0
		}
		if left {
			out.Push(string(r[:k]), true)
		} else {
			out.Push(string(r[len(r)-k:]), true)
		}
	}
	return out, nil
}

func funcRepeatStr(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	s := args[0].(*kernel.StringArray)
	n := args[1].(*kernel.Int64Array)
	out := kernel.NewStringArray()
	for i := 0; i < s.Len(); i++ {
		sv, sok := s.Get(i)
		nv, nok := n.Get(i)
		if !sok || !nok || nv < 0 {
			out.Push("", false)
			continue
		}
		out.Push(strings.Repeat(sv, int(nv)), true)
	}
	return out, nil
}

func funcLpad(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return pad(c, batch, sess, true)
}

func funcRpad(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return pad(c, batch, sess, false)
}

func pad(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session, left bool) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	s := args[0].(*kernel.StringArray)
	n := args[1].(*kernel.Int64Array)
	fill := " "
	var fillArr *kernel.StringArray
	if len(args) > 2 {
		fillArr = args[2].(*kernel.StringArray)
	}
	out := kernel.NewStringArray()
	for i := 0; i < s.Len(); i++ {
		sv, sok := s.Get(i)
		nv, nok := n.Get(i)
		if !sok || !nok {
			out.Push("", false)
			continue
		}
		padStr := fill
		if fillArr != nil {
			if fv, fok := fillArr.Get(i); fok && fv != "" {
				padStr = fv
			}
		}
		r := []rune(sv)
		target := int(nv)
		if target <= len(r) {
			if left {
				out.Push(string(r[len(r)-target:]), true)
			} else {
				out.Push(string(r[:target]), true)
			}
			continue
		}
		var b strings.Builder
		padRunes := []rune(padStr)
		need := target - len(r)
		var padding strings.Builder
		for padding.Len() < need && len(padRunes) > 0 {
			for _, pr := range padRunes {
				padding.WriteRune(pr)
				if len([]rune(padding.String())) >= need {
					break
				}
			}
		}
		padded := []rune(padding.String())
		if len(padded) > need {
			padded = padded[:need]
		}
		if left {
			b.WriteString(string(padded))
			b.WriteString(sv)
		} else {
			b.WriteString(sv)
			b.WriteString(string(padded))
		}
		out.Push(b.String(), true)
	}
	return out, nil
}

func funcChr(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	args, err := evalArgs(c, batch, sess)
	if err != nil {
		return nil, err
	}
	n := args[0].(*kernel.Int64Array)
	out := kernel.NewStringArray()
	for i := 0; i < n.Len(); i++ {
		v, ok := n.Get(i)
		if !ok {
			out.Push("", false)
			continue
		}
		out.Push(string(rune(v)), true)
	}
	return out, nil
}

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
	"time"

	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
)

var datePartNames = map[string]DatePart{
	"day":       PartDay,
	"week":      PartWeek,
	"isoweek":   PartIsoWeek,
	"month":     PartMonth,
	"quarter":   PartQuarter,
	"year":      PartYear,
	"isoyear":   PartIsoYear,
	"dayofweek": PartDayOfWeek,
	"dayofyear": PartDayOfYear,
}

func init() {
	stringFuncs["date_part"] = funcDatePart
	stringFuncs["date_add"] = funcDateAdd
	stringFuncs["date_sub"] = funcDateSub
	stringFuncs["date_trunc"] = funcDateTrunc
}

func toTime(kind kernel.Kind, v int64) time.Time {
	if kind == kernel.Date {
		return time.Unix(v*86400, 0).UTC()
	}
	return time.UnixMicro(v).UTC()
}

func fromTime(kind kernel.Kind, t time.Time) int64 {
	if kind == kernel.Date {
		return t.Unix() / 86400
	}
	return t.UnixMicro()
}

// funcDatePart implements date_part(part_name, date_or_timestamp); part_name
// must be a literal string.
func funcDatePart(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 2 {
		return nil, ErrWrongArity.New("date_part", 2, len(c.Args))
	}
	lit, ok := c.Args[0].(plan.Literal)
	if !ok {
		return nil, ErrWrongArity.New("date_part(part, value)", 2, 0)
	}
	part, ok := datePartNames[lit.Value.Str]
	if !ok {
		return nil, ErrUnknownFunction.New("date_part:" + lit.Value.Str)
	}
	arg, err := Eval(c.Args[1], batch, sess)
	if err != nil {
		return nil, err
	}
	in, ok := arg.(*kernel.Int64Array)
	if !ok || (in.Kind() != kernel.Date && in.Kind() != kernel.Timestamp) {
		return nil, ErrBadCast.New(arg.Kind().String(), "DATE/TIMESTAMP")
	}
	out := kernel.NewInt64Array()
	for i := 0; i < in.Len(); i++ {
		v, valid := in.Get(i)
		if !valid {
			out.Push(0, false)
			continue
		}
		out.Push(extractDatePart(toTime(in.Kind(), v), part), true)
	}
	return out, nil
}

func funcDateTrunc(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	if len(c.Args) != 2 {
		return nil, ErrWrongArity.New("date_trunc", 2, len(c.Args))
	}
	lit, ok := c.Args[0].(plan.Literal)
	if !ok {
		return nil, ErrWrongArity.New("date_trunc(unit, value)", 2, 0)
	}
	arg, err := Eval(c.Args[1], batch, sess)
	if err != nil {
		return nil, err
	}
	in, ok := arg.(*kernel.Int64Array)
	if !ok {
		return nil, ErrBadCast.New(arg.Kind().String(), "DATE/TIMESTAMP")
	}
	out := newLikeKind(in)
	for i := 0; i < in.Len(); i++ {
		v, valid := in.Get(i)
		if !valid {
			out.Push(0, false)
			continue
		}
		t := toTime(in.Kind(), v)
		var trunc time.Time
		switch lit.Value.Str {
		case "year":
			trunc = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		case "month":
			trunc = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		case "day":
			trunc = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		default:
			return nil, ErrUnknownFunction.New("date_trunc:" + lit.Value.Str)
		}
		out.Push(fromTime(in.Kind(), trunc), true)
	}
	return out, nil
}

func newLikeKind(in *kernel.Int64Array) *kernel.Int64Array {
	if in.Kind() == kernel.Date {
		return kernel.NewDateArray()
	}
	return kernel.NewTimestampArray()
}

func funcDateAdd(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return dateAddSub(c, batch, sess, 1)
}

func funcDateSub(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	return dateAddSub(c, batch, sess, -1)
}

// dateAddSub implements date_add/date_sub(value, count, unit): unit is a
// literal string naming "day"/"month"/"year".
func dateAddSub(c plan.FuncCall, batch *kernel.RecordBatch, sess *session.Session, sign int) (kernel.Array, error) {
	if len(c.Args) != 3 {
		return nil, ErrWrongArity.New(string(c.Function), 3, len(c.Args))
	}
	valArr, err := Eval(c.Args[0], batch, sess)
	if err != nil {
		return nil, err
	}
	countArr, err := Eval(c.Args[1], batch, sess)
	if err != nil {
		return nil, err
	}
	lit, ok := c.Args[2].(plan.Literal)
	if !ok {
		return nil, ErrWrongArity.New(string(c.Function), 3, 0)
	}
	in, ok := valArr.(*kernel.Int64Array)
	if !ok {
		return nil, ErrBadCast.New(valArr.Kind().String(), "DATE/TIMESTAMP")
	}
	count, ok := countArr.(*kernel.Int64Array)
	if !ok {
		return nil, ErrBadCast.New(countArr.Kind().String(), "INT64")
	}
	out := newLikeKind(in)
	for i := 0; i < in.Len(); i++ {
		v, valid := in.Get(i)
		n, nvalid := count.Get(i)
		if !valid || !nvalid {
			out.Push(0, false)
			continue
		}
		t := toTime(in.Kind(), v)
		amount := sign * int(n)
		var next time.Time
		switch lit.Value.Str {
		case "day":
			next = t.AddDate(0, 0, amount)
		case "month":
			next = t.AddDate(0, amount, 0)
		case "year":
			next = t.AddDate(amount, 0, 0)
		default:
			return nil, ErrUnknownFunction.New(string(c.Function) + ":" + lit.Value.Str)
		}
		out.Push(fromTime(in.Kind(), next), true)
	}
	return out, nil
}

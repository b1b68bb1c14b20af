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

// Package analyzer is the thinnest possible filler for the planner's
// Analyze boundary (SPEC_FULL.md §1/§9): full SQL compliance is out of
// scope, so this package resolves exactly one statement shape — a
// projection, optionally filtered by a single equality predicate, over
// one catalog table — against a catalog.Table snapshot and produces the
// logical plan.Operator tree planner.Planner hands to rewrite/memo/
// optimizer. cmd/coordinator wires analyzer.Analyze as its
// planner.Analyze; anything richer needs a real SQL frontend, which this
// module does not attempt to grow.
package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"gopkg.in/src-d/go-errors.v1"
)

var (
	ErrSyntax       = errors.NewKind("analyzer: cannot parse %q")
	ErrNoSuchTable  = errors.NewKind("analyzer: no such table %q")
	ErrNoSuchColumn = errors.NewKind("analyzer: no such column %q on table %q")
)

// Catalog resolves a table by name within one catalog snapshot.
// catalog.Registry satisfies this; the coordinator keeps one of those
// rather than a storage.Store, since page storage lives on the workers.
type Catalog interface {
	TableByName(catalogID catalog.CatalogID, name string) (catalog.Table, bool)
}

// Analyze resolves sql against cat and returns a logical plan.Operator,
// matching the planner.Analyze function type. Supported shape:
//
//	SELECT <col, ...|*> FROM <table> [WHERE <col> = <literal>]
//
// literal is an int64, a float64, or a single-quoted string; variables
// named in the WHERE clause as "@name" are bound to a plan.Parameter
// carrying that name with Ordinal 0 (spec.md §4.4). Analyze does not read
// the variables map; evaluation reads the session's Parameters by ordinal.
func Analyze(cat Catalog) func(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error) {
	return func(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error) {
		stmt, err := parseSelect(sql)
		if err != nil {
			return nil, err
		}
		table, ok := cat.TableByName(catalogID, stmt.table)
		if !ok {
			return nil, ErrNoSuchTable.New(stmt.table)
		}

		var root plan.Operator
		cols := columnsOf(table)
		get := plan.Get{Table: table, Columns: cols}
		if stmt.where != nil {
			pred, err := stmt.where.resolve(table, cols)
			if err != nil {
				return nil, err
			}
			get.Predicates = []plan.Scalar{pred}
		}
		root = get

		if !stmt.star {
			cols := make([]plan.Column, 0, len(stmt.columns))
			for _, name := range stmt.columns {
				idx := table.Schema.ColumnIndex(name)
				if idx < 0 {
					return nil, ErrNoSuchColumn.New(name, stmt.table)
				}
				cols = append(cols, get.Columns[idx])
			}
			root = plan.Out{Columns: cols, Input: root}
		}
		return root, nil
	}
}

func columnsOf(t catalog.Table) []plan.Column {
	cols := make([]plan.Column, len(t.Schema))
	for i, c := range t.Schema {
		cols[i] = plan.Column{ID: plan.NewColumnID(), Name: c.Name}
	}
	return cols
}

type whereClause struct {
	column string
	param  string // set when the right-hand side is "@name"
	value  kernel.Value
}

func (w *whereClause) resolve(table catalog.Table, cols []plan.Column) (plan.Scalar, error) {
	idx := table.Schema.ColumnIndex(w.column)
	if idx < 0 {
		return nil, ErrNoSuchColumn.New(w.column, table.Name)
	}
	left := plan.ColumnRef{Column: cols[idx]}
	var right plan.Scalar
	if w.param != "" {
		right = plan.Parameter{Name: w.param}
	} else {
		right = plan.Literal{Value: w.value}
	}
	return plan.FuncCall{Function: "=", Args: []plan.Scalar{left, right}}, nil
}

type selectStmt struct {
	star    bool
	columns []string
	table   string
	where   *whereClause
}

// parseSelect is a hand-rolled scanner for the one statement shape this
// package supports, not a general SQL grammar: split on the SELECT/FROM/
// WHERE keywords, case-insensitively, and reject anything else.
func parseSelect(sql string) (*selectStmt, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	upper := strings.ToUpper(sql)
	if !strings.HasPrefix(upper, "SELECT ") {
		return nil, ErrSyntax.New(sql)
	}
	fromIdx := indexKeyword(upper, " FROM ")
	if fromIdx < 0 {
		return nil, ErrSyntax.New(sql)
	}
	selectList := strings.TrimSpace(sql[len("SELECT "):fromIdx])
	rest := strings.TrimSpace(sql[fromIdx+len(" FROM "):])

	stmt := &selectStmt{}
	if selectList == "*" {
		stmt.star = true
	} else {
		for _, col := range strings.Split(selectList, ",") {
			stmt.columns = append(stmt.columns, strings.TrimSpace(col))
		}
	}

	whereIdx := indexKeyword(strings.ToUpper(rest), " WHERE ")
	if whereIdx < 0 {
		stmt.table = strings.TrimSpace(rest)
		return stmt, nil
	}
	stmt.table = strings.TrimSpace(rest[:whereIdx])
	where, err := parseWhere(strings.TrimSpace(rest[whereIdx+len(" WHERE "):]))
	if err != nil {
		return nil, err
	}
	stmt.where = where
	return stmt, nil
}

func indexKeyword(upper, kw string) int {
	return strings.Index(upper, kw)
}

func parseWhere(clause string) (*whereClause, error) {
	parts := strings.SplitN(clause, "=", 2)
	if len(parts) != 2 {
		return nil, ErrSyntax.New(clause)
	}
	column := strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	w := &whereClause{column: column}

	switch {
	case strings.HasPrefix(rhs, "@"):
		w.param = strings.TrimPrefix(rhs, "@")
	case strings.HasPrefix(rhs, "'") && strings.HasSuffix(rhs, "'") && len(rhs) >= 2:
		w.value = kernel.StringValue(rhs[1 : len(rhs)-1])
	default:
		if i, err := strconv.ParseInt(rhs, 10, 64); err == nil {
			w.value = kernel.Int64Value(i)
		} else if f, err := strconv.ParseFloat(rhs, 64); err == nil {
			w.value = kernel.Float64Value(f)
		} else {
			return nil, ErrSyntax.New(fmt.Sprintf("unrecognized literal %q", rhs))
		}
	}
	return w, nil
}

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

package plan

import "github.com/castorsql/castor/catalog"

// Operator is one arm of the logical (or, once physical properties are
// attached by the optimizer, physical) plan sum type (spec.md §3). Inputs
// are plain Operator values while an expression is free-standing; once
// memoized, the memo package replaces each input with a Leaf(groupID)
// operator of its own (see plan.Leaf).
// Operator is satisfied structurally: the optimizer package attaches
// physical operators (SeqScan, HashJoin, Broadcast, ...) that implement
// the same two methods without importing any sealed marker, since a
// MultiExpr's Op field must hold either a logical or a physical node.
type Operator interface {
	Inputs() []Operator
	// WithInputs returns a copy of the operator with its inputs replaced,
	// used by the memoizer to swap children for Leaf placeholders and by
	// rewrites to rebuild a node over transformed children.
	WithInputs(inputs []Operator) Operator
}

// JoinKind enumerates the supported join semantics (spec.md §3).
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinRight
	JoinOuter
	JoinSemi
	JoinAnti
	JoinSingle
	JoinMark // carries the extra Mark column below
)

func noInputs() []Operator { return nil }

// SingleGet produces exactly one row with no columns — the degenerate
// scan used as the base case of scalar subqueries (spec.md §3).
type SingleGet struct{}

func (SingleGet) isOperator()                      {}
func (SingleGet) Inputs() []Operator               { return noInputs() }
func (SingleGet) WithInputs(_ []Operator) Operator { return SingleGet{} }

// Get scans a table, applying Predicates and projecting Columns.
type Get struct {
	Table      catalog.Table
	Columns    []Column
	Predicates []Scalar
}

func (Get) isOperator()                        {}
func (Get) Inputs() []Operator                 { return noInputs() }
func (g Get) WithInputs(_ []Operator) Operator { return g }

// Filter keeps rows of Input for which Predicate is true.
type Filter struct {
	Predicates []Scalar
	Input      Operator
}

func (Filter) isOperator()          {}
func (f Filter) Inputs() []Operator { return []Operator{f.Input} }
func (f Filter) WithInputs(in []Operator) Operator {
	f.Input = in[0]
	return f
}

// Map adds computed columns to Input without removing any existing ones.
type Map struct {
	Projects []MapColumn
	Input    Operator
}

// MapColumn pairs a computed expression with the fresh column identity it
// is bound to.
type MapColumn struct {
	Column Column
	Expr   Scalar
}

func (Map) isOperator()          {}
func (m Map) Inputs() []Operator { return []Operator{m.Input} }
func (m Map) WithInputs(in []Operator) Operator {
	m.Input = in[0]
	return m
}

// Out restricts Input's output to exactly Columns, in order (the "Project"
// arm of spec.md §3, named Out to match the original engine's "out"
// operator and avoid confusion with physical projection pushdown).
type Out struct {
	Columns []Column
	Input   Operator
}

func (Out) isOperator()          {}
func (o Out) Inputs() []Operator { return []Operator{o.Input} }
func (o Out) WithInputs(in []Operator) Operator {
	o.Input = in[0]
	return o
}

// Join combines Left and Right rows matching Predicates under Kind. Mark
// carries the extra boolean column introduced by JoinMark.
type Join struct {
	Kind       JoinKind
	Predicates []Scalar
	Mark       Column
	Left       Operator
	Right      Operator
}

func (Join) isOperator()          {}
func (j Join) Inputs() []Operator { return []Operator{j.Left, j.Right} }
func (j Join) WithInputs(in []Operator) Operator {
	j.Left, j.Right = in[0], in[1]
	return j
}

// DependentJoin is an outer-reference-carrying join whose Subquery may
// read Parameters from the enclosing scope; see the rewrite package for
// the unnesting algorithm that eliminates it (spec.md §4.7).
type DependentJoin struct {
	Parameters []Column
	Predicates []Scalar
	Domain     Operator
	Subquery   Operator
}

func (DependentJoin) isOperator() {}
func (d DependentJoin) Inputs() []Operator {
	return []Operator{d.Domain, d.Subquery}
}
func (d DependentJoin) WithInputs(in []Operator) Operator {
	d.Domain, d.Subquery = in[0], in[1]
	return d
}

// With binds Left's result as a named temporary result set that GetWith
// references by Name within Right (spec.md §3).
type With struct {
	Name  string
	Left  Operator
	Right Operator
}

func (With) isOperator()          {}
func (w With) Inputs() []Operator { return []Operator{w.Left, w.Right} }
func (w With) WithInputs(in []Operator) Operator {
	w.Left, w.Right = in[0], in[1]
	return w
}

// GetWith reads back a temporary result set bound by an enclosing With.
type GetWith struct {
	Name    string
	Columns []Column
}

func (GetWith) isOperator()                        {}
func (GetWith) Inputs() []Operator                 { return noInputs() }
func (g GetWith) WithInputs(_ []Operator) Operator { return g }

// CreateTempTable materializes Input under Name for later GetWith reads
// (used to implement recursive/materialized CTEs).
type CreateTempTable struct {
	Name  string
	Input Operator
}

func (CreateTempTable) isOperator()          {}
func (c CreateTempTable) Inputs() []Operator { return []Operator{c.Input} }
func (c CreateTempTable) WithInputs(in []Operator) Operator {
	c.Input = in[0]
	return c
}

// AggregateExpr pairs an aggregate function call with the fresh output
// column it is bound to.
type AggregateExpr struct {
	Column   Column
	Func     Function
	Arg      Scalar // nil for count(*)
	Distinct bool
}

// Aggregate groups Input by GroupBy and folds Aggregates over each group.
type Aggregate struct {
	GroupBy    []Column
	Aggregates []AggregateExpr
	Input      Operator
}

func (Aggregate) isOperator()          {}
func (a Aggregate) Inputs() []Operator { return []Operator{a.Input} }
func (a Aggregate) WithInputs(in []Operator) Operator {
	a.Input = in[0]
	return a
}

// Limit caps Input to at most Limit rows after skipping Offset.
type Limit struct {
	Limit  int64
	Offset int64
	Input  Operator
}

func (Limit) isOperator()          {}
func (l Limit) Inputs() []Operator { return []Operator{l.Input} }
func (l Limit) WithInputs(in []Operator) Operator {
	l.Input = in[0]
	return l
}

// SortKey orders by Column, descending if Desc.
type SortKey struct {
	Column Column
	Desc   bool
}

// Sort totally orders Input by Keys.
type Sort struct {
	Keys  []SortKey
	Input Operator
}

func (Sort) isOperator()          {}
func (s Sort) Inputs() []Operator { return []Operator{s.Input} }
func (s Sort) WithInputs(in []Operator) Operator {
	s.Input = in[0]
	return s
}

// Union concatenates Left then Right, preserving branch order (Open
// Question 3, DESIGN.md).
type Union struct {
	Left  Operator
	Right Operator
}

func (Union) isOperator()          {}
func (u Union) Inputs() []Operator { return []Operator{u.Left, u.Right} }
func (u Union) WithInputs(in []Operator) Operator {
	u.Left, u.Right = in[0], in[1]
	return u
}

// DDLKind enumerates the supported data-definition statements.
type DDLKind int

const (
	DDLCreateTable DDLKind = iota
	DDLDropTable
	DDLCreateIndex
	DDLDropIndex
	DDLCreateDatabase
	DDLCreateSchema
)

// DDL is a schema-mutating statement, dispatched to the catalog's
// built-in procedures (spec.md §6).
type DDL struct {
	Kind  DDLKind
	Table catalog.Table
	Index catalog.IndexDef
}

func (DDL) isOperator()                        {}
func (DDL) Inputs() []Operator                 { return noInputs() }
func (d DDL) WithInputs(_ []Operator) Operator { return d }

// DMLKind enumerates the supported data-manipulation statements.
type DMLKind int

const (
	DMLInsert DMLKind = iota
	DMLDelete
	DMLUpdate
)

// DML mutates Table's heap with rows produced by Input (spec.md §6).
type DML struct {
	Kind  DMLKind
	Table catalog.Table
	Input Operator
}

func (DML) isOperator()          {}
func (d DML) Inputs() []Operator { return []Operator{d.Input} }
func (d DML) WithInputs(in []Operator) Operator {
	d.Input = in[0]
	return d
}

// Script runs Statements in order, threading Assign bindings between
// them.
type Script struct {
	Statements []Operator
}

func (Script) isOperator()          {}
func (s Script) Inputs() []Operator { return s.Statements }
func (s Script) WithInputs(in []Operator) Operator {
	s.Statements = in
	return s
}

// Explain reports the compiled plan for Input instead of running it.
type Explain struct {
	Input Operator
}

func (Explain) isOperator()          {}
func (e Explain) Inputs() []Operator { return []Operator{e.Input} }
func (e Explain) WithInputs(in []Operator) Operator {
	e.Input = in[0]
	return e
}

// Assign binds Input's single-row, single-column result to Variable for
// later statements in the same Script.
type Assign struct {
	Variable string
	Input    Operator
}

func (Assign) isOperator()          {}
func (a Assign) Inputs() []Operator { return []Operator{a.Input} }
func (a Assign) WithInputs(in []Operator) Operator {
	a.Input = in[0]
	return a
}

// Call invokes a built-in catalog procedure (create_table, drop_table,
// create_index, drop_index) with Args.
type Call struct {
	Procedure catalog.Procedure
	Args      []Scalar
}

func (Call) isOperator()                        {}
func (Call) Inputs() []Operator                 { return noInputs() }
func (c Call) WithInputs(_ []Operator) Operator { return c }

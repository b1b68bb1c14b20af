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

// Package memo implements the Cascades search space: groups of equivalent
// plans, the multi-expressions that populate them, and the memoization
// (copy_in / copy_in_new) that interns operator trees into it
// (spec.md §3, §4.6).
package memo

import (
	"math"

	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
)

// RequiredProperty is the distribution property a consumer demands of its
// input (spec.md §4.8).
type RequiredProperty int

const (
	PropNone RequiredProperty = iota
	PropBroadcast
	PropExchange
	PropGather
)

func (r RequiredProperty) String() string {
	switch r {
	case PropBroadcast:
		return "Broadcast"
	case PropExchange:
		return "Exchange"
	case PropGather:
		return "Gather"
	default:
		return "None"
	}
}

// MultiExprID identifies one interned (group, operator-with-leaves) pair.
type MultiExprID int64

// LogicalProps are the cached, cardinality-and-statistics facts about a
// group, computed once when the group is created (spec.md §4.6).
type LogicalProps struct {
	Cardinality float64
	Columns     map[plan.ColumnID]*stats.ColumnStats
}

// Winner is the best known (multi-expression, cost) pair for one required
// property.
type Winner struct {
	Expr MultiExprID
	Cost float64
}

// Group holds every known equivalent plan for one logical subquery.
type Group struct {
	ID                 plan.GroupID
	LogicalMultiExprs  []MultiExprID
	PhysicalMultiExprs []MultiExprID
	Props              *LogicalProps
	LowerBound         float64
	UpperBounds        map[RequiredProperty]float64
	Winners            map[RequiredProperty]Winner
	Explored           bool
}

func newGroup(id plan.GroupID, props *LogicalProps) *Group {
	return &Group{
		ID:          id,
		Props:       props,
		LowerBound:  math.Inf(1),
		UpperBounds: make(map[RequiredProperty]float64),
		Winners:     make(map[RequiredProperty]Winner),
	}
}

// Winner looks up the installed winner for a required property.
func (g *Group) Winner(req RequiredProperty) (Winner, bool) {
	w, ok := g.Winners[req]
	return w, ok
}

// UpperBound returns the best cost bound known for req, or +Inf.
func (g *Group) UpperBound(req RequiredProperty) float64 {
	if b, ok := g.UpperBounds[req]; ok {
		return b
	}
	return math.Inf(1)
}

// TrySetWinner installs (id, cost) as the new winner for req if it beats
// the current upper bound, updating both the winner and the bound.
func (g *Group) TrySetWinner(req RequiredProperty, id MultiExprID, cost float64) bool {
	if cost >= g.UpperBound(req) {
		return false
	}
	g.Winners[req] = Winner{Expr: id, Cost: cost}
	g.UpperBounds[req] = cost
	return true
}

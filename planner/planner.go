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

// Package planner drives sql text from the external analyzer boundary
// (spec.md §9/§11: the wire-format IDL the analyzer speaks is out of
// scope, so Analyze is the Go interface the rest of this package
// consumes it through) to a cost-optimal physical plan: rewrite
// (dependent-join unnesting, predicate pushdown), memoize, then
// Cascades-style search, with a plan cache keyed the way
// execute/catalog.rs's `matches` lookup is (spec.md §9/§11).
package planner

import (
	"sync"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/memo"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/rewrite"
	"github.com/castorsql/castor/stats"
	"github.com/castorsql/castor/storage"
	"github.com/mitchellh/hashstructure"
	"gopkg.in/src-d/go-errors.v1"
)

// ErrAnalyzeNotConfigured fires when Plan is called before an Analyze
// function has been installed — a configuration bug, never a user-facing
// condition.
var ErrAnalyzeNotConfigured = errors.NewKind("planner: no Analyze function configured")

// Analyze turns sql text plus bound parameters into a logical plan
// rooted at a fresh group, resolving names against catalogID. This is
// the seam spec.md §1 calls out as external: the analyzer itself (parse,
// name resolution, type-checking) is not part of this engine's scope,
// so Planner depends only on this function type rather than importing a
// concrete parser.
type Analyze func(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error)

type cacheKey struct {
	fingerprint uint64
}

// Planner wires the external analyzer into rewrite, memoization, and
// Cascades search, caching the winning physical plan per (sql,
// variable kinds, catalog) the way execute/catalog.rs's plan cache does.
type Planner struct {
	Analyze Analyze
	Store   *storage.Store

	mu    sync.Mutex
	cache map[cacheKey]plan.Operator
}

func New(analyze Analyze, store *storage.Store) *Planner {
	p := &Planner{Analyze: analyze, Store: store, cache: make(map[cacheKey]plan.Operator)}
	memo.SetTableStatsLookup(p.lookupTableStats)
	optimizer.SetTableStatsLookup(p.lookupTableStats)
	return p
}

func (p *Planner) lookupTableStats(tableID int64) *stats.TableStats {
	h, ok := p.Store.Table(tableID)
	if !ok {
		return stats.NewTableStats()
	}
	return h.Stats()
}

func fingerprintRequest(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (uint64, error) {
	kinds := make(map[string]kernel.Kind, len(variables))
	for name, v := range variables {
		kinds[name] = v.Kind
	}
	return hashstructure.Hash(struct {
		SQL       string
		Kinds     map[string]kernel.Kind
		CatalogID catalog.CatalogID
	}{sql, kinds, catalogID}, nil)
}

// Plan implements the rpc.Planner interface: analyze, rewrite, memoize,
// optimize, and return the winning physical tree — or a cached one if an
// equivalent (sql, variable kinds, catalog) request has already been
// planned, matching spec.md §9's plan-cache requirement.
func (p *Planner) Plan(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error) {
	if p.Analyze == nil {
		return nil, ErrAnalyzeNotConfigured.New()
	}
	fp, err := fingerprintRequest(sql, variables, catalogID)
	if err != nil {
		return nil, err
	}
	key := cacheKey{fingerprint: fp}

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	logical, err := p.Analyze(sql, variables, catalogID)
	if err != nil {
		return nil, err
	}
	logical = rewrite.UnnestDependentJoins(logical)
	logical = rewrite.PushFiltersDown(logical)

	m := memo.New()
	gid := m.CopyInNew(logical)
	opt := optimizer.New(m)
	physical, err := opt.Optimize(gid)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = physical
	p.mu.Unlock()
	return physical, nil
}

// Invalidate drops every cached plan, used after DDL changes a table
// referenced by a cached plan (spec.md §9).
func (p *Planner) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[cacheKey]plan.Operator)
}

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

// Package session carries the per-statement state the evaluator and
// executor consult: the transaction id that bounds visibility, bound
// parameter values, and sequence counters for next_val (spec.md §4.4,
// §5).
package session

import (
	"sync"

	"github.com/castorsql/castor/kernel"
	"github.com/sirupsen/logrus"
)

// Session is the per-statement execution context threaded through
// scalar evaluation and the executor.
type Session struct {
	Txn        int64
	Parameters []kernel.Value
	Log        *logrus.Entry

	seqMu     sync.Mutex
	sequences map[int64]int64
}

func New(txn int64, params []kernel.Value, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{Txn: txn, Parameters: params, Log: log.WithField("txn", txn), sequences: make(map[int64]int64)}
}

// NextVal reserves and returns the next integer from sequence seqID,
// side-effecting on the session's in-memory sequence table (spec.md
// §4.4). A real deployment would persist this in the catalog's sequence
// table; tracking it per-session here keeps next_val usable without
// requiring the catalog wiring that is out of this evaluator's scope.
func (s *Session) NextVal(seqID int64) int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[seqID]++
	return s.sequences[seqID]
}

// Parameter returns the bound value at ordinal i.
func (s *Session) Parameter(i int) (kernel.Value, bool) {
	if i < 0 || i >= len(s.Parameters) {
		return kernel.Value{}, false
	}
	return s.Parameters[i], true
}

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

// GroupID identifies a memo group. Defined here, alongside Leaf, so the
// two ship together: "Leaf nodes are only produced by the memoizer and
// never by rewrites" (spec.md §3's memo invariant) is easiest to keep
// true when Leaf lives next to the rest of the plan's operator arms
// rather than off in package memo.
type GroupID int64

// Leaf replaces an operator's input once it has been memoized into a
// group; rewrites never construct a Leaf directly.
type Leaf struct {
	Group GroupID
}

func (Leaf) isOperator()                        {}
func (Leaf) Inputs() []Operator                 { return nil }
func (l Leaf) WithInputs(_ []Operator) Operator { return l }

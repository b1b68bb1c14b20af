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

package analyzer

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/stretchr/testify/require"
)

func testTable() catalog.Table {
	return catalog.Table{
		ID:   10,
		Name: "orders",
		Schema: catalog.Schema{
			{ID: 0, Name: "id", Type: kernel.Int64},
			{ID: 1, Name: "customer", Type: kernel.String},
			{ID: 2, Name: "total", Type: kernel.Float64},
		},
	}
}

func testRegistry() *catalog.Registry {
	r := catalog.NewRegistry()
	r.Register(testTable())
	return r
}

func TestAnalyzeSelectStar(t *testing.T) {
	analyze := Analyze(testRegistry())
	op, err := analyze("SELECT * FROM orders", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	get, ok := op.(plan.Get)
	require.True(t, ok)
	require.Equal(t, "orders", get.Table.Name)
	require.Len(t, get.Columns, 3)
	require.Empty(t, get.Predicates)
}

func TestAnalyzeSelectColumns(t *testing.T) {
	analyze := Analyze(testRegistry())
	op, err := analyze("SELECT id, total FROM orders", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	out, ok := op.(plan.Out)
	require.True(t, ok)
	require.Len(t, out.Columns, 2)
	require.Equal(t, "id", out.Columns[0].Name)
	require.Equal(t, "total", out.Columns[1].Name)
}

func TestAnalyzeWhereLiteral(t *testing.T) {
	analyze := Analyze(testRegistry())
	op, err := analyze("SELECT * FROM orders WHERE customer = 'acme'", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	get := op.(plan.Get)
	require.Len(t, get.Predicates, 1)
	call := get.Predicates[0].(plan.FuncCall)
	require.Equal(t, plan.Function("="), call.Function)
	lit := call.Args[1].(plan.Literal)
	require.Equal(t, kernel.StringValue("acme"), lit.Value)
}

func TestAnalyzeWhereParameter(t *testing.T) {
	analyze := Analyze(testRegistry())
	op, err := analyze("SELECT * FROM orders WHERE id = @orderID", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	get := op.(plan.Get)
	call := get.Predicates[0].(plan.FuncCall)
	param := call.Args[1].(plan.Parameter)
	require.Equal(t, "orderID", param.Name)
}

func TestAnalyzeNoSuchTable(t *testing.T) {
	analyze := Analyze(testRegistry())
	_, err := analyze("SELECT * FROM missing", nil, catalog.RootCatalogID)
	require.Error(t, err)
}

func TestAnalyzeNoSuchColumn(t *testing.T) {
	analyze := Analyze(testRegistry())
	_, err := analyze("SELECT bogus FROM orders", nil, catalog.RootCatalogID)
	require.Error(t, err)
}

func TestAnalyzeSyntaxError(t *testing.T) {
	analyze := Analyze(testRegistry())
	_, err := analyze("UPDATE orders SET total = 1", nil, catalog.RootCatalogID)
	require.Error(t, err)
}

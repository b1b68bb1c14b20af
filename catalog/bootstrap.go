package catalog

import "github.com/castorsql/castor/kernel"

// System table ids, reserved per spec.md §6.
const (
	CatalogTableID     TableID   = 0
	TableTableID       TableID   = 1
	ColumnTableID      TableID   = 2
	IndexTableID       TableID   = 3
	IndexColumnTableID TableID   = 4
	RootCatalogID      CatalogID = 0
)

// BootstrapSchemas returns the fixed, hand-built schemas of the five system
// tables the planner needs in order to resolve anything else. The
// coordinator plans queries against this fixed catalog before the
// user-facing catalog (backed by the very same tables, once populated) is
// installed — see SPEC_FULL.md §11 and spec.md §9 "Recursive metadata
// planning".
func BootstrapSchemas() map[TableID]Table {
	return map[TableID]Table{
		CatalogTableID: {
			ID: CatalogTableID, Name: "catalog",
			Schema: Schema{
				{ID: 0, Name: "parent_catalog_id", Type: kernel.Int64, Nullable: true},
				{ID: 1, Name: "catalog_id", Type: kernel.Int64},
				{ID: 2, Name: "catalog_name", Type: kernel.String},
			},
		},
		TableTableID: {
			ID: TableTableID, Name: "table",
			Schema: Schema{
				{ID: 0, Name: "catalog_id", Type: kernel.Int64},
				{ID: 1, Name: "table_id", Type: kernel.Int64},
				{ID: 2, Name: "table_name", Type: kernel.String},
			},
		},
		ColumnTableID: {
			ID: ColumnTableID, Name: "column",
			Schema: Schema{
				{ID: 0, Name: "table_id", Type: kernel.Int64},
				{ID: 1, Name: "column_id", Type: kernel.Int64},
				{ID: 2, Name: "column_name", Type: kernel.String},
				{ID: 3, Name: "column_type", Type: kernel.String},
			},
		},
		IndexTableID: {
			ID: IndexTableID, Name: "index",
			Schema: Schema{
				{ID: 0, Name: "catalog_id", Type: kernel.Int64},
				{ID: 1, Name: "index_id", Type: kernel.Int64},
				{ID: 2, Name: "table_id", Type: kernel.Int64},
				{ID: 3, Name: "index_name", Type: kernel.String},
			},
		},
		IndexColumnTableID: {
			ID: IndexColumnTableID, Name: "index_column",
			Schema: Schema{
				{ID: 0, Name: "index_id", Type: kernel.Int64},
				{ID: 1, Name: "column_id", Type: kernel.Int64},
				{ID: 2, Name: "index_order", Type: kernel.Int64},
			},
		},
	}
}

// Procedure is one of the four built-in DDL procedures, each returning
// bool (spec.md §6).
type Procedure string

const (
	ProcCreateTable Procedure = "create_table"
	ProcDropTable   Procedure = "drop_table"
	ProcCreateIndex Procedure = "create_index"
	ProcDropIndex   Procedure = "drop_index"
)

var BuiltinProcedures = []Procedure{ProcCreateTable, ProcDropTable, ProcCreateIndex, ProcDropIndex}

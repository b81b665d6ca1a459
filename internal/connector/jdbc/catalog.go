package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/datascienceChris/datahub/internal/schema"
)

// Table is one relation listed by the catalog.
type Table struct {
	Schema  string
	Name    string
	Kind    string // table or view
	Comment string
}

// ID returns "schema.table". A part containing a dot or a double quote is
// double-quoted with inner quotes doubled, so distinct relations never share
// an ID.
func (t Table) ID() string {
	return quoteIdent(t.Schema) + "." + quoteIdent(t.Name)
}

func quoteIdent(name string) string {
	if !strings.ContainsAny(name, `."`) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Usage is an operational snapshot from the statistics collector.
type Usage struct {
	RowCount     int64
	SeqScans     int64
	IndexScans   int64
	RowsInserted int64
	RowsUpdated  int64
	RowsDeleted  int64
}

// Catalog reads warehouse metadata.
type Catalog interface {
	ListTables(ctx context.Context) ([]Table, error)
	Columns(ctx context.Context, schemaName, table string) ([]schema.Column, error)
	Usage(ctx context.Context, schemaName, table string) (*Usage, error)
	Close() error
}

// =============================================================================
// POSTGRES CATALOG
// =============================================================================

type sqlCatalog struct {
	db *sql.DB
}

// OpenCatalog opens a lazily connecting pool. Reachability is not checked.
func OpenCatalog(cfg *Config) (Catalog, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &sqlCatalog{db: db}, nil
}

// NewCatalog wraps an existing pool.
func NewCatalog(db *sql.DB) Catalog {
	return &sqlCatalog{db: db}
}

func (c *sqlCatalog) ListTables(ctx context.Context) ([]Table, error) {
	query := `
		SELECT t.table_schema, t.table_name, t.table_type,
			COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '')
		FROM information_schema.tables t
		WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY t.table_schema, t.table_name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		var tableType string
		if err := rows.Scan(&t.Schema, &t.Name, &tableType, &t.Comment); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.Kind = "table"
		if strings.Contains(strings.ToLower(tableType), "view") {
			t.Kind = "view"
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (c *sqlCatalog) Columns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			COALESCE(c.numeric_precision, 0),
			COALESCE(c.numeric_scale, 0),
			COALESCE(c.character_maximum_length, 0),
			c.udt_name,
			COALESCE(d.description, '')
		FROM information_schema.columns c
		LEFT JOIN pg_catalog.pg_statio_all_tables st
			ON st.schemaname = c.table_schema AND st.relname = c.table_name
		LEFT JOIN pg_catalog.pg_description d
			ON d.objoid = st.relid AND d.objsubid = c.ordinal_position
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var col schema.Column
		var isNullable, udtName string
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &col.Precision, &col.Scale, &col.Length, &udtName, &col.Comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = isNullable == "YES"
		if strings.EqualFold(col.DataType, "ARRAY") {
			col.ElementType = udtName
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *sqlCatalog) Usage(ctx context.Context, schemaName, table string) (*Usage, error) {
	query := `
		SELECT
			COALESCE(c.reltuples::bigint, 0),
			COALESCE(s.seq_scan, 0),
			COALESCE(s.idx_scan, 0),
			COALESCE(s.n_tup_ins, 0),
			COALESCE(s.n_tup_upd, 0),
			COALESCE(s.n_tup_del, 0)
		FROM pg_class c
		JOIN pg_namespace n ON c.relnamespace = n.oid
		LEFT JOIN pg_stat_user_tables s ON s.relid = c.oid
		WHERE n.nspname = $1 AND c.relname = $2
	`

	var u Usage
	err := c.db.QueryRowContext(ctx, query, schemaName, table).Scan(
		&u.RowCount, &u.SeqScans, &u.IndexScans, &u.RowsInserted, &u.RowsUpdated, &u.RowsDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	if u.RowCount < 0 {
		// reltuples is -1 for tables never analyzed.
		u.RowCount = 0
	}
	return &u, nil
}

func (c *sqlCatalog) Close() error {
	return c.db.Close()
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// resolveTable finds the physical schema and table name for a case-insensitive
// reference. Exact-case matches win over folded ones.
func (a *Adapter) resolveTable(ctx context.Context, table string) (string, string, error) {
	schemaName, tableName := datasource.SplitTableName(table, a.config.Schema)

	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE lower(table_schema::text) = lower($1::text)
		  AND lower(table_name::text) = lower($2::text)
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY (table_name::text = $2::text) DESC, table_name
		LIMIT 1
	`

	var physSchema, physTable string
	err := a.pool.QueryRow(ctx, query, schemaName, tableName).Scan(&physSchema, &physTable)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", datasource.ErrTableNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup table: %w", err)
	}
	return physSchema, physTable, nil
}

// TableExists reports whether the table or view exists.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	_, _, err := a.resolveTable(ctx, table)
	if errors.Is(err, datasource.ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchLiveSchema returns the table's columns in ordinal order.
// Uses pg_index for primary key detection, which correctly identifies primary
// keys even when created as unique indexes (common with ORMs).
func (a *Adapter) FetchLiveSchema(ctx context.Context, table string) ([]models.LiveColumn, error) {
	schemaName, tableName, err := a.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			COALESCE(col_description(cls.oid, c.ordinal_position::int), '') AS comment,
			COALESCE(fk.target_table, '') AS referenced_table,
			COALESCE(fk.target_column, '') AS referenced_column
		FROM information_schema.columns c
		JOIN pg_namespace ns ON ns.nspname = c.table_schema
		JOIN pg_class cls ON cls.relname = c.table_name AND cls.relnamespace = ns.oid
		LEFT JOIN (
			SELECT DISTINCT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		LEFT JOIN (
			SELECT DISTINCT ON (kcu.column_name)
				kcu.column_name,
				ccu.table_name AS target_table,
				ccu.column_name AS target_column
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			JOIN information_schema.constraint_column_usage ccu
				ON tc.constraint_name = ccu.constraint_name
				AND tc.table_schema = ccu.table_schema
			WHERE tc.constraint_type = 'FOREIGN KEY'
			  AND tc.table_schema = $1
			  AND tc.table_name = $2
			ORDER BY kcu.column_name, tc.constraint_name
		) fk ON c.column_name = fk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.LiveColumn
	for rows.Next() {
		var c models.LiveColumn
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.Comment,
			&c.ReferencedTable, &c.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, datasource.ErrTableNotFound
	}

	a.logger.Debug("Fetched live columns",
		zap.String("schema", schemaName),
		zap.String("table", tableName),
		zap.Int("columns", len(columns)))

	return columns, nil
}

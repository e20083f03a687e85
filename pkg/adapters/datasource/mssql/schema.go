package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// resolveTable finds the physical schema and table name for a case-insensitive
// reference. Exact-case matches win over folded ones.
func (a *Adapter) resolveTable(ctx context.Context, table string) (string, string, error) {
	schemaName, tableName := datasource.SplitTableName(table, a.config.Schema)

	query := `
	SET NOCOUNT ON;
	SELECT TOP 1 s.name, o.name
	FROM sys.objects o
	INNER JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE o.type IN ('U', 'V')
	  AND UPPER(s.name) = UPPER(@schema)
	  AND UPPER(o.name) = UPPER(@table)
	ORDER BY CASE WHEN o.name = @table THEN 0 ELSE 1 END, o.name
	`

	var physSchema, physTable string
	err := a.db.QueryRowContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	).Scan(&physSchema, &physTable)
	if errors.Is(err, sql.ErrNoRows) {
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

// FetchLiveSchema returns the table's columns in column_id order.
// Column comments come from the MS_Description extended property.
func (a *Adapter) FetchLiveSchema(ctx context.Context, table string) ([]models.LiveColumn, error) {
	schemaName, tableName, err := a.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    COALESCE(CAST(ep.value AS NVARCHAR(4000)), N'') AS comment,
	    COALESCE(OBJECT_NAME(fk.referenced_object_id), N'') AS referenced_table,
	    COALESCE(COL_NAME(fk.referenced_object_id, fk.referenced_column_id), N'') AS referenced_column
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id
	    AND ep.class = 1 AND ep.name = N'MS_Description'
	OUTER APPLY (
	    SELECT TOP 1 fkc.referenced_object_id, fkc.referenced_column_id
	    FROM sys.foreign_key_columns fkc
	    WHERE fkc.parent_object_id = c.object_id AND fkc.parent_column_id = c.column_id
	    ORDER BY fkc.constraint_object_id
	) fk
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.LiveColumn
	for rows.Next() {
		var col models.LiveColumn
		var isNullable, isPrimary int

		err := rows.Scan(
			&col.Name,
			&col.DataType,
			&isNullable,
			&isPrimary,
			&col.Comment,
			&col.ReferencedTable,
			&col.ReferencedColumn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.DataType = mapSQLServerType(col.DataType)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
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

package schemaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testWhitelist = `{
  "tables": {
    "ORDERS": {"table_type": "TABLE", "display_name": "Sales Orders"},
    "CUSTOMERS": {"table_type": "TABLE", "display_name": "Customers"},
    "ORDER_SUMMARY": {"table_type": "VIEW", "display_name": "Order Summary"},
    "audit_log": {"table_type": "TABLE"}
  },
  "table_categories": {
    "sales": {"tables": ["ORDERS", "ORDER_SUMMARY"], "description": "Sales data"},
    "master": ["CUSTOMERS"]
  },
  "importance_levels": {
    "critical": {"tables": ["ORDERS"]},
    "high": {"tables": ["CUSTOMERS"]},
    "low": ["AUDIT_LOG"]
  }
}`

const testPatterns = `{
  "column_patterns": {
    "^CUSTOMER_ID$": {"semantic_type": "foreign_key", "default_description": "Customer reference"},
    "_ID$": {"semantic_type": "identifier", "default_description": "Identifier", "business_hints": "Use for joins"},
    "_DATE$": {"semantic_type": "datetime", "default_description": "Date"},
    "AMOUNT": {"semantic_type": "money", "default_description": "Monetary amount"}
  },
  "time_patterns": {
    "last_30_days": {
      "mssql": "{date_column} >= DATEADD(day, -30, GETDATE())",
      "postgresql": "{date_column} >= CURRENT_DATE - INTERVAL '30 days'"
    }
  }
}`

const testOrdersDetail = `{
  "table_name": "ORDERS",
  "display_name": "Customer Orders",
  "key_columns": {
    "ORDER_ID": {"semantic_type": "primary_identifier", "description": "Order number"},
    "STATUS": {"semantic_type": "status", "description": "Order status", "enum_values": {"1": "Open", "2": "Shipped", "9": 9}},
    "ORDER_DATE": {"semantic_type": "primary_date", "timezone_aware": false}
  },
  "relationships": {
    "primary_key": "ORDER_ID",
    "foreign_keys": [{"column": "CUSTOMER_ID", "references": "CUSTOMERS.CUSTOMER_ID"}],
    "parent_tables": [{"table": "CUSTOMERS", "join_condition": "ORDERS.CUSTOMER_ID = CUSTOMERS.CUSTOMER_ID", "relationship": "many_to_one"}]
  },
  "business_logic": {
    "primary_date_field": "ORDER_DATE",
    "primary_amount_field": "TOTAL_AMOUNT",
    "status_field": "STATUS",
    "status_values": {"1": "Open", "2": "Shipped"},
    "active_records_filter": "STATUS <> 'Cancelled'",
    "calculated_fields": {
      "NET_AMOUNT": {"description": "Total less discount", "sql": {"mssql": "TOTAL_AMOUNT - DISCOUNT", "postgresql": "total_amount - discount"}}
    }
  }
}`

// writeConfigDir writes a configuration directory. Keys of details are file names
// under tables/. Empty whitelist or patterns strings skip that file.
func writeConfigDir(t *testing.T, whitelist, patterns string, details map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if whitelist != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, WhitelistFile), []byte(whitelist), 0o644))
	}
	if patterns != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, GlobalPatternsFile), []byte(patterns), 0o644))
	}
	if len(details) > 0 {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, TablesDir), 0o755))
		for name, content := range details {
			require.NoError(t, os.WriteFile(filepath.Join(dir, TablesDir, name), []byte(content), 0o644))
		}
	}
	return dir
}

package schemaconfig

import (
	"encoding/json"
	"fmt"
)

// On-disk file names inside the configuration directory.
const (
	WhitelistFile      = "tables_list.json"
	GlobalPatternsFile = "global_patterns.json"
	TablesDir          = "tables"
)

type whitelistFile struct {
	Tables           map[string]whitelistTable `json:"tables"`
	TableCategories  map[string]tableGroup     `json:"table_categories"`
	ImportanceLevels map[string]tableGroup     `json:"importance_levels"`
}

type whitelistTable struct {
	TableType   string `json:"table_type"`
	DisplayName string `json:"display_name"`
}

// tableGroup accepts either a bare list of table names or {"tables": [...], "description": "..."}.
type tableGroup struct {
	Tables      []string
	Description string
}

func (g *tableGroup) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		g.Tables = list
		return nil
	}
	var obj struct {
		Tables      []string `json:"tables"`
		Description string   `json:"description"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("table group must be a list or an object with \"tables\": %w", err)
	}
	g.Tables = obj.Tables
	g.Description = obj.Description
	return nil
}

type patternsFile struct {
	// Decoded separately so regex order is kept.
	ColumnPatterns json.RawMessage              `json:"column_patterns"`
	TimePatterns   map[string]map[string]string `json:"time_patterns"`
}

type columnPattern struct {
	SemanticType       string `json:"semantic_type"`
	DefaultDescription string `json:"default_description"`
	BusinessHints      string `json:"business_hints"`
}

type detailFile struct {
	TableName          string             `json:"table_name"`
	DisplayName        string             `json:"display_name"`
	Type               string             `json:"type"`
	Category           string             `json:"category"`
	BusinessImportance string             `json:"business_importance"`
	KeyColumns         json.RawMessage    `json:"key_columns"`
	Relationships      *relationshipsFile `json:"relationships"`
	BusinessLogic      *businessLogicFile `json:"business_logic"`
}

type keyColumn struct {
	SemanticType  string          `json:"semantic_type"`
	Description   string          `json:"description"`
	EnumValues    json.RawMessage `json:"enum_values"`
	AIHints       string          `json:"ai_hints"`
	UsageNotes    string          `json:"usage_notes"`
	TimezoneAware *bool           `json:"timezone_aware"`
}

type relationshipsFile struct {
	PrimaryKey   json.RawMessage  `json:"primary_key"`
	ForeignKeys  []foreignKeyFile `json:"foreign_keys"`
	ParentTables []joinFile       `json:"parent_tables"`
	ChildTables  []joinFile       `json:"child_tables"`
}

type foreignKeyFile struct {
	Column      string `json:"column"`
	References  string `json:"references"`
	Description string `json:"description"`
}

type joinFile struct {
	Table         string `json:"table"`
	JoinCondition string `json:"join_condition"`
	Cardinality   string `json:"cardinality"`
	Relationship  string `json:"relationship"` // older files use this name for cardinality
	Description   string `json:"description"`
}

type businessLogicFile struct {
	PrimaryDateField    string                         `json:"primary_date_field"`
	PrimaryAmountField  string                         `json:"primary_amount_field"`
	StatusField         string                         `json:"status_field"`
	StatusValues        json.RawMessage                `json:"status_values"`
	ActiveRecordsFilter string                         `json:"active_records_filter"`
	CalculatedFields    map[string]calculatedFieldFile `json:"calculated_fields"`
}

type calculatedFieldFile struct {
	Description string            `json:"description"`
	SQL         map[string]string `json:"sql"`
}

package models

import "time"

// PreloadStatus records which tables completed static and dynamic preload.
// Written by the preload routine, read by health-check collaborators.
type PreloadStatus struct {
	RunID                   string            `json:"run_id,omitempty"`
	StaticPreloadCompleted  bool              `json:"static_preload_completed"`
	DynamicPreloadCompleted bool              `json:"dynamic_preload_completed"`
	StaticTables            []string          `json:"static_tables"`
	DynamicTables           []string          `json:"dynamic_tables"`
	FailedTables            map[string]string `json:"failed_tables,omitempty"`
	MissingTables           []string          `json:"missing_tables,omitempty"`
	TotalTables             int               `json:"total_tables"`
	PreloadTimestamp        *time.Time        `json:"preload_timestamp,omitempty"`
	CacheSize               int               `json:"cache_size"`
}

// TablePreloadState reports from which preload pass a table was loaded.
type TablePreloadState struct {
	Static  bool `json:"static"`
	Dynamic bool `json:"dynamic"`
}

// Preloaded returns true if either pass loaded the table.
func (s TablePreloadState) Preloaded() bool {
	return s.Static || s.Dynamic
}

// CacheStats summarizes schema cache effectiveness.
type CacheStats struct {
	Enabled     bool    `json:"enabled"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	TTLMinutes  float64 `json:"ttl_minutes"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// TableSummary is one row of the whitelist listing.
type TableSummary struct {
	TableName   string         `json:"table_name"`
	Kind        TableKind      `json:"table_type"`
	DisplayName string         `json:"display_name"`
	Category    string         `json:"category,omitempty"`
	Importance  ImportanceTier `json:"importance"`
	Documented  bool           `json:"documented"`
}

// SchemaSummary is an overview of the loaded configuration.
type SchemaSummary struct {
	TotalTables      int        `json:"total_tables"`
	DocumentedTables int        `json:"documented_tables"`
	TotalKeyColumns  int        `json:"total_key_columns"`
	ColumnPatterns   int        `json:"column_patterns"`
	TimePatterns     int        `json:"time_patterns"`
	StrictMode       bool       `json:"strict_mode"`
	Cache            CacheStats `json:"cache"`
	LoadedAt         time.Time  `json:"loaded_at"`
}

// TableDependency is one outgoing foreign key of a table.
type TableDependency struct {
	ConstraintName   string `json:"constraint_name"`
	ParentTable      string `json:"parent_table"`
	ParentColumn     string `json:"parent_column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

package schemaconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/patterns"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/sql"
)

// Load parses the configuration directory. A missing, unparsable, or invalid
// whitelist or global pattern file fails with a *apperrors.ConfigLoadError, as
// does a malformed detail file for a critical table. Malformed detail files for
// other tables are logged and ignored so those tables resolve from patterns only.
func Load(dir string, logger *zap.Logger) (*ConfigSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("schema-config")

	whitelist, err := loadWhitelist(filepath.Join(dir, WhitelistFile))
	if err != nil {
		return nil, err
	}

	matcher, timePatterns, err := loadGlobalPatterns(filepath.Join(dir, GlobalPatternsFile))
	if err != nil {
		return nil, err
	}

	cs := &ConfigSet{
		dir:          dir,
		loadedAt:     time.Now(),
		whitelist:    whitelist,
		details:      make(map[string]*models.TableDetailConfig),
		degraded:     make(map[string]string),
		matcher:      matcher,
		timePatterns: timePatterns,
	}

	if err := cs.loadDetails(filepath.Join(dir, TablesDir), logger); err != nil {
		return nil, err
	}

	logger.Info("Schema configuration loaded",
		zap.String("dir", dir),
		zap.Int("tables", len(cs.whitelist)),
		zap.Int("documented_tables", len(cs.details)),
		zap.Int("degraded_tables", len(cs.degraded)),
		zap.Int("column_patterns", matcher.Len()),
		zap.Int("time_patterns", timePatterns.Len()))

	return cs, nil
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := jsonutil.CheckDuplicateKeys(data); err != nil {
		return nil, err
	}
	return data, nil
}

func loadWhitelist(path string) (map[string]models.WhitelistEntry, error) {
	fail := func(err error) (map[string]models.WhitelistEntry, error) {
		return nil, &apperrors.ConfigLoadError{Path: path, Err: err}
	}

	data, err := readJSONFile(path)
	if err != nil {
		return fail(err)
	}
	var raw whitelistFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail(err)
	}
	if raw.Tables == nil {
		return fail(errors.New(`missing "tables" object`))
	}

	entries := make(map[string]models.WhitelistEntry, len(raw.Tables))
	for name, t := range raw.Tables {
		key := models.NormalizeTableName(name)
		if key == "" {
			return fail(errors.New("empty table name"))
		}
		if _, dup := entries[key]; dup {
			return fail(fmt.Errorf("table %q listed more than once (names are case-insensitive)", key))
		}
		kind, err := models.ParseTableKind(t.TableType)
		if err != nil {
			return fail(fmt.Errorf("table %q: %w", key, err))
		}
		display := t.DisplayName
		if display == "" {
			display = key
		}
		entries[key] = models.WhitelistEntry{
			TableName:   key,
			Kind:        kind,
			DisplayName: display,
			Importance:  models.ImportanceMedium,
		}
	}

	assigned := make(map[string]string)
	for tier, group := range raw.ImportanceLevels {
		importance, err := models.ParseImportanceTier(tier)
		if err != nil {
			return fail(err)
		}
		for _, name := range group.Tables {
			key := models.NormalizeTableName(name)
			e, ok := entries[key]
			if !ok {
				return fail(fmt.Errorf("importance level %q names table %q which is not in \"tables\"", tier, key))
			}
			if prev, seen := assigned[key]; seen {
				return fail(fmt.Errorf("table %q listed in importance levels %q and %q", key, prev, tier))
			}
			assigned[key] = tier
			e.Importance = importance
			entries[key] = e
		}
	}

	categorized := make(map[string]string)
	for category, group := range raw.TableCategories {
		for _, name := range group.Tables {
			key := models.NormalizeTableName(name)
			e, ok := entries[key]
			if !ok {
				return fail(fmt.Errorf("category %q names table %q which is not in \"tables\"", category, key))
			}
			if prev, seen := categorized[key]; seen {
				return fail(fmt.Errorf("table %q listed in categories %q and %q", key, prev, category))
			}
			categorized[key] = category
			e.Category = category
			entries[key] = e
		}
	}

	return entries, nil
}

func loadGlobalPatterns(path string) (*patterns.Matcher, *patterns.TimePatterns, error) {
	fail := func(err error) (*patterns.Matcher, *patterns.TimePatterns, error) {
		return nil, nil, &apperrors.ConfigLoadError{Path: path, Err: err}
	}

	data, err := readJSONFile(path)
	if err != nil {
		return fail(err)
	}
	var raw patternsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail(err)
	}

	var specs []patterns.RuleSpec
	if len(raw.ColumnPatterns) > 0 && string(raw.ColumnPatterns) != "null" {
		ordered := orderedmap.New[string, columnPattern]()
		if err := json.Unmarshal(raw.ColumnPatterns, ordered); err != nil {
			return fail(fmt.Errorf("column_patterns: %w", err))
		}
		for pair := ordered.Oldest(); pair != nil; pair = pair.Next() {
			specs = append(specs, patterns.RuleSpec{
				Pattern:      pair.Key,
				SemanticType: pair.Value.SemanticType,
				Description:  pair.Value.DefaultDescription,
				Hints:        pair.Value.BusinessHints,
			})
		}
	}

	matcher, err := patterns.NewMatcher(specs)
	if err != nil {
		return fail(err)
	}
	timePatterns, err := patterns.NewTimePatterns(raw.TimePatterns)
	if err != nil {
		return fail(err)
	}
	return matcher, timePatterns, nil
}

// loadDetails reads tables/*.json. The directory itself is optional.
func (c *ConfigSet) loadDetails(dir string, logger *zap.Logger) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return &apperrors.ConfigLoadError{Path: dir, Err: err}
	}
	sort.Strings(files)

	sources := make(map[string]string)
	for _, path := range files {
		stem := models.NormalizeTableName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

		detail, err := parseDetailFile(path, stem)
		if err != nil {
			table := stem
			if detail != nil {
				table = detail.TableName
			}
			if e, ok := c.whitelist[table]; ok && e.Importance == models.ImportanceCritical {
				return &apperrors.ConfigLoadError{Path: path, Table: table, Err: err}
			}
			logger.Warn("Ignoring malformed table detail file; table will resolve from global patterns only",
				zap.String("path", path),
				zap.String("table", table),
				zap.Error(err))
			c.degraded[table] = err.Error()
			continue
		}

		if prev, dup := sources[detail.TableName]; dup {
			return &apperrors.ConfigLoadError{
				Path:  path,
				Table: detail.TableName,
				Err:   fmt.Errorf("table already configured by %s", prev),
			}
		}
		sources[detail.TableName] = path

		entry, whitelisted := c.whitelist[detail.TableName]
		if !whitelisted {
			logger.Info("Detail file for table not in whitelist; used only when strict mode is off",
				zap.String("path", path),
				zap.String("table", detail.TableName))
		}
		// The whitelist is authoritative for tier and category.
		if whitelisted {
			detail.Importance = entry.Importance
			if entry.Category != "" {
				detail.Category = entry.Category
			}
		}
		c.details[detail.TableName] = detail
	}

	for _, name := range c.TablesByImportance(models.ImportanceCritical) {
		if _, ok := c.details[name]; !ok {
			if _, bad := c.degraded[name]; !bad {
				logger.Warn("Critical table has no detail file", zap.String("table", name))
			}
		}
	}
	return nil
}

// parseDetailFile decodes and validates one detail file. On validation failure the
// partially decoded config is returned with the error so the caller knows the table.
func parseDetailFile(path, stem string) (*models.TableDetailConfig, error) {
	data, err := readJSONFile(path)
	if err != nil {
		return nil, err
	}
	var raw detailFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	table := stem
	if raw.TableName != "" {
		table = models.NormalizeTableName(raw.TableName)
	}
	detail := &models.TableDetailConfig{
		TableName:   table,
		DisplayName: raw.DisplayName,
		Category:    raw.Category,
	}

	if detail.Importance, err = models.ParseImportanceTier(raw.BusinessImportance); err != nil {
		return detail, err
	}
	if detail.KeyColumns, err = decodeKeyColumns(raw.KeyColumns); err != nil {
		return detail, fmt.Errorf("key_columns: %w", err)
	}
	if detail.Relationships, err = decodeRelationships(raw.Relationships); err != nil {
		return detail, fmt.Errorf("relationships: %w", err)
	}
	if detail.BusinessLogic, err = decodeBusinessLogic(raw.BusinessLogic); err != nil {
		return detail, fmt.Errorf("business_logic: %w", err)
	}
	return detail, nil
}

func decodeKeyColumns(raw json.RawMessage) ([]models.ColumnDescriptor, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	ordered := orderedmap.New[string, keyColumn]()
	if err := json.Unmarshal(raw, ordered); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, ordered.Len())
	columns := make([]models.ColumnDescriptor, 0, ordered.Len())
	for pair := ordered.Oldest(); pair != nil; pair = pair.Next() {
		name := strings.TrimSpace(pair.Key)
		upper := strings.ToUpper(name)
		if name == "" {
			return nil, errors.New("empty column name")
		}
		if seen[upper] {
			return nil, fmt.Errorf("column %q listed more than once (names are case-insensitive)", name)
		}
		seen[upper] = true

		st, err := models.ParseSemanticType(pair.Value.SemanticType)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		enums, err := jsonutil.FlexibleStringMap(pair.Value.EnumValues)
		if err != nil {
			return nil, fmt.Errorf("column %q enum_values: %w", name, err)
		}
		columns = append(columns, models.ColumnDescriptor{
			Name:          name,
			SemanticType:  st,
			Description:   pair.Value.Description,
			EnumValues:    enums,
			AIHints:       pair.Value.AIHints,
			UsageNotes:    pair.Value.UsageNotes,
			TimezoneAware: pair.Value.TimezoneAware,
			Source:        models.ColumnSourceTableConfig,
		})
	}
	return columns, nil
}

func decodeRelationships(raw *relationshipsFile) (*models.Relationships, error) {
	if raw == nil {
		return nil, nil
	}
	pk, err := jsonutil.FlexibleStringList(raw.PrimaryKey)
	if err != nil {
		return nil, fmt.Errorf("primary_key: %w", err)
	}
	rel := &models.Relationships{PrimaryKey: pk}
	for i, fk := range raw.ForeignKeys {
		if fk.Column == "" || fk.References == "" {
			return nil, fmt.Errorf("foreign_keys[%d]: column and references are required", i)
		}
		rel.ForeignKeys = append(rel.ForeignKeys, models.ForeignKey{
			Column:      fk.Column,
			References:  fk.References,
			Description: fk.Description,
		})
	}
	if rel.ParentTables, err = decodeJoins("parent_tables", raw.ParentTables); err != nil {
		return nil, err
	}
	if rel.ChildTables, err = decodeJoins("child_tables", raw.ChildTables); err != nil {
		return nil, err
	}
	return rel, nil
}

func decodeJoins(field string, raw []joinFile) ([]models.JoinDescriptor, error) {
	var out []models.JoinDescriptor
	for i, j := range raw {
		if j.Table == "" {
			return nil, fmt.Errorf("%s[%d]: table is required", field, i)
		}
		if j.JoinCondition != "" {
			if err := sql.ValidateTemplate(j.JoinCondition); err != nil {
				return nil, fmt.Errorf("%s[%d] join_condition: %w", field, i, err)
			}
		}
		cardinality := j.Cardinality
		if cardinality == "" {
			cardinality = j.Relationship
		}
		out = append(out, models.JoinDescriptor{
			Table:         j.Table,
			JoinCondition: j.JoinCondition,
			Cardinality:   cardinality,
			Description:   j.Description,
		})
	}
	return out, nil
}

func decodeBusinessLogic(raw *businessLogicFile) (*models.BusinessLogic, error) {
	if raw == nil {
		return nil, nil
	}
	statusValues, err := jsonutil.FlexibleStringMap(raw.StatusValues)
	if err != nil {
		return nil, fmt.Errorf("status_values: %w", err)
	}
	if raw.ActiveRecordsFilter != "" {
		if err := sql.ValidateTemplate(raw.ActiveRecordsFilter); err != nil {
			return nil, fmt.Errorf("active_records_filter: %w", err)
		}
	}
	bl := &models.BusinessLogic{
		PrimaryDateField:    raw.PrimaryDateField,
		PrimaryAmountField:  raw.PrimaryAmountField,
		StatusField:         raw.StatusField,
		StatusValues:        statusValues,
		ActiveRecordsFilter: raw.ActiveRecordsFilter,
	}

	names := make([]string, 0, len(raw.CalculatedFields))
	for name := range raw.CalculatedFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := raw.CalculatedFields[name]
		if len(f.SQL) == 0 {
			return nil, fmt.Errorf("calculated field %q: no sql templates", name)
		}
		templates := make(map[models.Dialect]string, len(f.SQL))
		for d, tmpl := range f.SQL {
			dialect, err := models.ParseDialect(d)
			if err != nil {
				return nil, fmt.Errorf("calculated field %q: %w", name, err)
			}
			if err := sql.ValidateTemplate(tmpl); err != nil {
				return nil, fmt.Errorf("calculated field %q (%s): %w", name, dialect, err)
			}
			templates[dialect] = tmpl
		}
		bl.CalculatedFields = append(bl.CalculatedFields, models.CalculatedField{
			Name:        name,
			Description: f.Description,
			SQL:         templates,
		})
	}
	return bl, nil
}

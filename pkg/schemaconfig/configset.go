// Package schemaconfig loads the three static schema configuration layers
// (whitelist, per-table detail files, global patterns) into an immutable
// ConfigSet and merges them into column descriptors.
package schemaconfig

import (
	"sort"
	"time"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/patterns"
)

// ConfigSet is one parsed snapshot of the configuration directory.
// It is never mutated after Load returns; Store swaps whole snapshots.
type ConfigSet struct {
	dir          string
	loadedAt     time.Time
	whitelist    map[string]models.WhitelistEntry
	details      map[string]*models.TableDetailConfig
	degraded     map[string]string // table -> reason its detail file was ignored
	matcher      *patterns.Matcher
	timePatterns *patterns.TimePatterns
}

// Dir returns the directory the set was loaded from.
func (c *ConfigSet) Dir() string { return c.dir }

// LoadedAt returns when the set was parsed.
func (c *ConfigSet) LoadedAt() time.Time { return c.loadedAt }

// Whitelisted returns the whitelist entry for table.
func (c *ConfigSet) Whitelisted(table string) (models.WhitelistEntry, bool) {
	e, ok := c.whitelist[models.NormalizeTableName(table)]
	return e, ok
}

// Detail returns the detail config for table, or nil when none was loaded.
func (c *ConfigSet) Detail(table string) *models.TableDetailConfig {
	return c.details[models.NormalizeTableName(table)]
}

// Tables returns whitelisted table names sorted alphabetically.
func (c *ConfigSet) Tables() []string {
	names := make([]string, 0, len(c.whitelist))
	for n := range c.whitelist {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TablesByImportance returns whitelisted tables in the given tiers, sorted.
func (c *ConfigSet) TablesByImportance(tiers ...models.ImportanceTier) []string {
	want := make(map[models.ImportanceTier]bool, len(tiers))
	for _, t := range tiers {
		want[t] = true
	}
	var names []string
	for _, n := range c.Tables() {
		if want[c.whitelist[n].Importance] {
			names = append(names, n)
		}
	}
	return names
}

// DocumentedTables returns the number of tables with a detail file.
func (c *ConfigSet) DocumentedTables() int { return len(c.details) }

// KeyColumnCount returns the number of key_columns across all detail files.
func (c *ConfigSet) KeyColumnCount() int {
	n := 0
	for _, d := range c.details {
		n += len(d.KeyColumns)
	}
	return n
}

// Degraded returns tables whose detail file was ignored, with the reason.
func (c *ConfigSet) Degraded() map[string]string {
	out := make(map[string]string, len(c.degraded))
	for k, v := range c.degraded {
		out[k] = v
	}
	return out
}

// Matcher returns the compiled global column patterns.
func (c *ConfigSet) Matcher() *patterns.Matcher { return c.matcher }

// TimePatterns returns the dialect time templates.
func (c *ConfigSet) TimePatterns() *patterns.TimePatterns { return c.timePatterns }

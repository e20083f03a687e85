package schemaconfig

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store holds the current ConfigSet and replaces it atomically on Reload.
// Readers that took a snapshot with Current keep seeing it for the rest of
// their request even if a reload lands meanwhile.
type Store struct {
	dir     string
	logger  *zap.Logger
	current atomic.Pointer[ConfigSet]

	reloadMu sync.Mutex // serializes reloads; readers never take it
	onReload []func(*ConfigSet)
}

// NewStore loads dir and returns a Store serving it.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cs, err := Load(dir, logger)
	if err != nil {
		return nil, err
	}
	s := &Store{dir: dir, logger: logger.Named("schema-config-store")}
	s.current.Store(cs)
	return s, nil
}

// NewStaticStore wraps an already loaded ConfigSet. Reload re-reads cs.Dir().
func NewStaticStore(cs *ConfigSet, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{dir: cs.Dir(), logger: logger.Named("schema-config-store")}
	s.current.Store(cs)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *ConfigSet {
	return s.current.Load()
}

// OnReload registers fn to run after each successful swap.
func (s *Store) OnReload(fn func(*ConfigSet)) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Reload re-parses every layer and swaps the snapshot. On failure the previous
// snapshot stays active and the error is returned.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cs, err := Load(s.dir, s.logger)
	if err != nil {
		s.logger.Error("Schema configuration reload failed; keeping previous configuration",
			zap.String("dir", s.dir),
			zap.Error(err))
		return err
	}
	s.current.Store(cs)
	for _, fn := range s.onReload {
		fn(cs)
	}
	return nil
}

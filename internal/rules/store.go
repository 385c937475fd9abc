package rules

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/lifecycle"
)

// Store holds the current RuleSet snapshot and reloads it from a directory
// of YAML rule documents. Reload builds a complete new RuleSet and swaps an
// atomic reference, so in-flight classification calls keep the snapshot they
// started with and new calls pick up the newest one.
type Store struct {
	dir     string
	logger  *slog.Logger
	current atomic.Pointer[RuleSet]
	version atomic.Uint64

	// serializes reloads; snapshot reads never block
	reloadMu sync.Mutex
}

// NewStore creates a Store for the given rules directory. The store holds an
// empty RuleSet until the first Reload.
func NewStore(dir string, logger *slog.Logger) *Store {
	s := &Store{
		dir:    dir,
		logger: logger.With("system", "rules"),
	}
	s.current.Store(&RuleSet{byTaxonomy: make(map[Taxonomy][]*CompiledRule)})
	return s
}

// Snapshot returns the current immutable RuleSet. Never nil.
func (s *Store) Snapshot() *RuleSet {
	return s.current.Load()
}

// Reload reads all rule documents, compiles them, and atomically publishes
// the new RuleSet. Compile diagnostics (skipped rules, duplicates, malformed
// documents) are returned; they do not prevent the swap.
func (s *Store) Reload() (*RuleSet, []CompileError, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	defs, loadDiags, err := LoadDir(s.dir)
	if err != nil {
		return nil, nil, err
	}

	set, compileDiags := Compile(defs)
	diags := append(loadDiags, compileDiags...)

	set.version = s.version.Add(1)
	s.current.Store(set)

	s.logger.Info(
		"rule set reloaded",
		"version", set.version,
		"rules", set.Len(),
		"diagnostics", len(diags),
	)
	for _, diag := range diags {
		s.logger.Warn("rule diagnostic", "detail", diag.Error())
	}

	return set, diags, nil
}

// Watch reloads the rule set whenever a document in the rules directory
// changes. Events are debounced so editors that write multiple times per
// save trigger a single reload. The watcher stops on lifecycle shutdown.
func (s *Store) Watch(lc *lifecycle.Coordinator) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}

	const debounce = 250 * time.Millisecond

	go func() {
		var timer *time.Timer
		var pending <-chan time.Time

		for {
			select {
			case <-lc.Context().Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				pending = timer.C
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("rules watcher error", "error", err)
			case <-pending:
				pending = nil
				if _, _, err := s.Reload(); err != nil {
					s.logger.Error("rules reload failed", "error", err)
				}
			}
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := watcher.Close(); err != nil {
			s.logger.Error("rules watcher close failed", "error", err)
		}
	})

	s.logger.Info("watching rules directory", "dir", s.dir)
	return nil
}

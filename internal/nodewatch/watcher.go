// Package nodewatch implements the node-info file watcher collaborator:
// a directory of peer descriptor files the updater treats as locally
// discovered entries that remote reconciliation must never evict.
package nodewatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/nodecache"
)

// Watcher is the file-watcher collaborator interface the updater consumes:
// Updates(), SaveToFile(), and the set of hashes it has admitted.
// The updater subscribes to Updates() once and treats every hash in
// ProcessedHashes() as locally owned, exempt from remote eviction.
type Watcher interface {
	Updates() <-chan *nodecache.SignedNodeInfo
	SaveToFile(info *nodecache.SignedNodeInfo) error
	ProcessedHashes() map[nodecache.Hash]struct{}
	Close() error
}

// DirWatcher watches dir for created/written files containing a single
// JSON-encoded SignedNodeInfo per file; SaveToFile names each file
// "<content-hash>.node" after the hash of its payload.
type DirWatcher struct {
	dir    string
	logger *zap.Logger

	fsw *fsnotify.Watcher

	mu        sync.Mutex
	processed map[nodecache.Hash]struct{}

	updates chan *nodecache.SignedNodeInfo
	done    chan struct{}
}

// NewDirWatcher starts watching dir, creating it if absent.
func NewDirWatcher(dir string, logger *zap.Logger) (*DirWatcher, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create node-info dir %q: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, fmt.Errorf("watch node-info dir %q: %w", dir, err)
	}

	w := &DirWatcher{
		dir:       dir,
		logger:    logger,
		fsw:       fsw,
		processed: make(map[nodecache.Hash]struct{}),
		updates:   make(chan *nodecache.SignedNodeInfo, 16),
		done:      make(chan struct{}),
	}

	if err := w.loadExisting(); err != nil {
		logger.Warn("node-info dir: initial scan failed", zap.Error(err))
	}

	go w.loop()
	return w, nil
}

func (w *DirWatcher) loadExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read node-info dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.ingest(filepath.Join(w.dir, e.Name()))
	}
	return nil
}

func (w *DirWatcher) loop() {
	defer close(w.updates)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.ingest(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("node-info watcher error", zap.Error(err))
		}
	}
}

func (w *DirWatcher) ingest(path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("node-info file unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	var info nodecache.SignedNodeInfo
	if err := json.Unmarshal(b, &info); err != nil {
		w.logger.Warn("node-info file malformed", zap.String("path", path), zap.Error(err))
		return
	}
	h := nodecache.HashOf(info.Payload)

	w.mu.Lock()
	w.processed[h] = struct{}{}
	w.mu.Unlock()

	select {
	case w.updates <- &info:
	case <-w.done:
	}
}

func (w *DirWatcher) Updates() <-chan *nodecache.SignedNodeInfo { return w.updates }

// SaveToFile persists info to dir, named by its content hash so repeated
// saves of the same descriptor overwrite rather than accumulate.
func (w *DirWatcher) SaveToFile(info *nodecache.SignedNodeInfo) error {
	h := nodecache.HashOf(info.Payload)
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal node-info: %w", err)
	}
	path := filepath.Join(w.dir, h.String()+".node")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write node-info file: %w", err)
	}
	w.mu.Lock()
	w.processed[h] = struct{}{}
	w.mu.Unlock()
	return nil
}

func (w *DirWatcher) ProcessedHashes() map[nodecache.Hash]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[nodecache.Hash]struct{}, len(w.processed))
	for h := range w.processed {
		out[h] = struct{}{}
	}
	return out
}

func (w *DirWatcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

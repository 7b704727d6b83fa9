// Package cache implements the MetadataCache design note from spec §9:
// replace the teacher/original's scattered module-level mutable caches
// (_RAG_STORE_HAS_DOCS, _LOCAL_DOC_CACHE, _COLUMN_VALUE_CACHE, the schema
// table set) with one component owning a single mutex and an mtime map,
// lazily reloading any kind whose backing file changed on disk, and
// optionally pushed to by an fsnotify watcher instead of polled.
package cache

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Loader produces the in-memory value for one cache kind by reading its
// backing file(s). It is called at most once per invalidation.
type Loader func() (any, error)

type entry struct {
	loader  Loader
	paths   []string
	mtimes  map[string]time.Time
	value   any
	loaded  bool
	loadErr error
}

// MetadataCache is the single owner of every lazily-reloaded, file-backed
// in-memory structure in the system (schema catalog, join graph, doc
// corpora, column-value dictionary, postprocess/chart rule files, ...).
type MetadataCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	watcher *fsnotify.Watcher
}

func New() *MetadataCache {
	return &MetadataCache{entries: make(map[string]*entry)}
}

// Register associates kind with the files it depends on and the loader that
// rebuilds its value. Call before the first Get.
func (c *MetadataCache) Register(kind string, paths []string, loader Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = &entry{loader: loader, paths: paths, mtimes: make(map[string]time.Time)}
}

// Get returns the cached value for kind, reloading it first if any of its
// backing files changed mtime since the last load (or it has never loaded).
func (c *MetadataCache) Get(kind string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[kind]
	if !ok {
		return nil, fmt.Errorf("cache: unknown kind %q", kind)
	}

	if e.loaded && !c.stale(e) {
		return e.value, e.loadErr
	}

	v, err := e.loader()
	e.value, e.loadErr, e.loaded = v, err, true
	for _, p := range e.paths {
		if fi, statErr := os.Stat(p); statErr == nil {
			e.mtimes[p] = fi.ModTime()
		}
	}
	return e.value, e.loadErr
}

// Invalidate forces the next Get(kind) to reload regardless of mtime.
func (c *MetadataCache) Invalidate(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[kind]; ok {
		e.loaded = false
	}
}

func (c *MetadataCache) stale(e *entry) bool {
	for _, p := range e.paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		last, seen := e.mtimes[p]
		if !seen || fi.ModTime().After(last) {
			return true
		}
	}
	return false
}

// WatchDir wires fsnotify so that a write, create, remove or rename event in
// dir invalidates every registered kind with a path equal to the event's file
// path, instead of relying solely on the mtime check on the next Get. A kind
// registered with a directory path is not matched by events on files inside
// it. Errors from the watcher are swallowed; the mtime fallback still applies.
func (c *MetadataCache) WatchDir(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	c.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					c.invalidateByPath(ev.Name)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (c *MetadataCache) invalidateByPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		for _, p := range e.paths {
			if p == path {
				e.loaded = false
			}
		}
	}
}

func (c *MetadataCache) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

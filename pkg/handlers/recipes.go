package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Recipe is a named patch transformation. Built-in recipes are registered
// at compile time; custom recipes are discovered by scanning a directory
// of recipe files, one recipe per file, named after the file's stem
// (spec §4.5, §4 "custom recipe discovery"). Neither path ever loads or
// executes code found on disk -- a custom recipe file is a name and a
// declaration of intent; the worker must already have a matching
// handler_name registered (or reject the request) so no dynamic code
// loading is ever reintroduced (spec Non-goals).
type Recipe struct {
	Name   string
	Custom bool
}

// RecipeRegistry tracks built-in and custom recipes and keeps the custom
// set current by watching a directory for file create/remove events.
type RecipeRegistry struct {
	mu       sync.RWMutex
	builtin  []Recipe
	custom   map[string]Recipe
	watchDir string
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
}

// NewRecipeRegistry seeds builtin recipes and records watchDir. The
// custom set stays empty until Start scans and watches that directory.
func NewRecipeRegistry(builtin []string, watchDir string, logger zerolog.Logger) *RecipeRegistry {
	reg := &RecipeRegistry{
		custom:   make(map[string]Recipe),
		watchDir: watchDir,
		logger:   logger,
	}
	for _, name := range builtin {
		reg.builtin = append(reg.builtin, Recipe{Name: name})
	}
	return reg
}

// Start scans watchDir once and begins watching it for changes. It is a
// no-op if no watch directory was configured. ctx cancellation stops the
// watch goroutine.
func (r *RecipeRegistry) Start(ctx context.Context) error {
	if r.watchDir == "" {
		return nil
	}

	if err := r.rescan(); err != nil {
		r.logger.Warn().Err(err).Str("dir", r.watchDir).Msg("initial recipe scan failed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.watchDir); err != nil {
		watcher.Close()
		return err
	}
	r.watcher = watcher

	go r.watchLoop(ctx)
	return nil
}

func (r *RecipeRegistry) watchLoop(ctx context.Context) {
	defer r.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := r.rescan(); err != nil {
					r.logger.Warn().Err(err).Msg("recipe rescan failed")
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn().Err(err).Msg("recipe watcher error")
		}
	}
}

func (r *RecipeRegistry) rescan() error {
	entries, err := os.ReadDir(r.watchDir)
	if err != nil {
		return err
	}

	found := make(map[string]Recipe, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stem == "" {
			continue
		}
		found[stem] = Recipe{Name: stem, Custom: true}
	}

	r.mu.Lock()
	r.custom = found
	r.mu.Unlock()
	return nil
}

// List returns builtin and custom recipes filtered by the include flags.
func (r *RecipeRegistry) List(includeBuiltin, includeCustom bool) []Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Recipe
	if includeBuiltin {
		out = append(out, r.builtin...)
	}
	if includeCustom {
		for _, rec := range r.custom {
			out = append(out, rec)
		}
	}
	return out
}

// Counts returns (builtinCount, customCount) regardless of the filters
// passed to List.
func (r *RecipeRegistry) Counts() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builtin), len(r.custom)
}

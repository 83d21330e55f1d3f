package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadFunc receives each successfully reloaded configuration.
type ReloadFunc func(*Config)

// Watcher reloads the configuration when the YAML or .env file changes.
type Watcher struct {
	configPath string
	envPath    string
	onReload   ReloadFunc

	debounce     time.Duration
	pollInterval time.Duration
	newWatcher   func() (*fsnotify.Watcher, error)

	mu       sync.Mutex
	modTimes map[string]time.Time
}

// NewWatcher returns a Watcher for the files cfg was loaded from.
func NewWatcher(cfg *Config, onReload ReloadFunc) *Watcher {
	w := &Watcher{
		configPath:   cleanPath(cfg.ConfigPath),
		envPath:      cleanPath(cfg.EnvPath),
		onReload:     onReload,
		debounce:     100 * time.Millisecond,
		pollInterval: 5 * time.Second,
		newWatcher:   fsnotify.NewWatcher,
		modTimes:     make(map[string]time.Time),
	}
	for _, p := range w.paths() {
		if stat, err := os.Stat(p); err == nil {
			w.modTimes[p] = stat.ModTime()
		}
	}
	return w
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (w *Watcher) paths() []string {
	var out []string
	for _, p := range []string{w.configPath, w.envPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (w *Watcher) watches(name string) bool {
	name = cleanPath(name)
	return name != "" && (name == w.configPath || name == w.envPath)
}

// Run watches until ctx is done. It falls back to polling modification
// times when fsnotify is unavailable.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.paths()) == 0 {
		<-ctx.Done()
		return nil
	}

	fw, err := w.newWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to polling for config changes")
		w.poll(ctx)
		return nil
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for _, p := range w.paths() {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to watch config directory; polling instead")
			w.poll(ctx)
			return nil
		}
	}

	log.Info().
		Str("config_path", w.configPath).
		Str("env_path", w.envPath).
		Msg("Started watching config files for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.watches(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Let the writer finish before reading.
			time.Sleep(w.debounce)
			log.Info().Str("file", event.Name).Str("event", event.Op.String()).Msg("Detected config file change")
			w.Reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.changed() {
				log.Info().Msg("Detected config file change via polling")
				w.Reload()
			}
		}
	}
}

func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false
	for _, p := range w.paths() {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		if stat.ModTime().After(w.modTimes[p]) {
			w.modTimes[p] = stat.ModTime()
			changed = true
		}
	}
	return changed
}

// Reload re-reads both files and hands the result to the callback. A file
// that fails to parse leaves the running configuration untouched.
func (w *Watcher) Reload() {
	cfg, err := Load(w.configPath, w.envPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reload configuration; keeping previous settings")
		return
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcherReloadInvokesCallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cataspark.yaml", "logging:\n  level: info\n")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got *Config
	w := NewWatcher(cfg, func(c *Config) { got = c })

	writeFile(t, dir, "cataspark.yaml", "logging:\n  level: warn\n")
	w.Reload()

	if got == nil || got.Logging.Level != "warn" {
		t.Fatalf("expected reloaded level warn, got %+v", got)
	}
}

func TestWatcherReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cataspark.yaml", "logging:\n  level: info\n")
	cfg, _ := Load(path, "")

	called := false
	w := NewWatcher(cfg, func(*Config) { called = true })

	writeFile(t, dir, "cataspark.yaml", "logging: [broken")
	w.Reload()

	if called {
		t.Fatal("callback must not run for an unparseable file")
	}
}

func TestWatcherDetectsEnvWrite(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "CATASPARK_LOG_LEVEL=info\n")
	cfg, err := Load("", envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w := NewWatcher(cfg, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give fsnotify a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(envPath, []byte("CATASPARK_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	select {
	case c := <-reloaded:
		if c.Logging.Level != "debug" {
			t.Fatalf("level = %q, want debug", c.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWatcherPollingFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cataspark.yaml", "bot:\n  asn: \"1\"\n")
	cfg, _ := Load(path, "")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(cfg, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	w.pollInterval = 20 * time.Millisecond
	w.newWatcher = func() (*fsnotify.Watcher, error) { return nil, errors.New("inotify exhausted") }

	// Rewrite before polling starts; the later mtime marks the change.
	writeFile(t, dir, "cataspark.yaml", "bot:\n  asn: \"2\"\n")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case c := <-reloaded:
		if c.Bot.ASN != "2" {
			t.Fatalf("asn = %q, want 2", c.Bot.ASN)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for polled reload")
	}
}

func TestWatcherWithoutFilesBlocksUntilCancel(t *testing.T) {
	w := NewWatcher(&Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("Run returned before the context ended")
	}
}

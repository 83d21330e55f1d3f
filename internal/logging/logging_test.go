package logging

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func resetLoggingState() {
	Shutdown()

	mu.Lock()
	defer mu.Unlock()

	baseWriter = os.Stderr
	baseComponent = ""
	baseLogger = zerolog.New(baseWriter).With().Timestamp().Logger()
	log.Logger = baseLogger
	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestInitJSONFormatSetsLevelAndComponent(t *testing.T) {
	t.Cleanup(resetLoggingState)

	Init(Config{
		Format:    "json",
		Level:     "debug",
		Component: "cataspark",
	})

	mu.RLock()
	defer mu.RUnlock()

	if baseWriter != os.Stderr {
		t.Fatalf("expected base writer to be os.Stderr, got %#v", baseWriter)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected global level debug, got %s", zerolog.GlobalLevel())
	}
	if baseComponent != "cataspark" {
		t.Fatalf("expected base component cataspark, got %s", baseComponent)
	}
	if !reflect.DeepEqual(log.Logger, baseLogger) {
		t.Fatal("expected global log.Logger to match baseLogger")
	}
}

func TestInitConsoleFormatUsesConsoleWriter(t *testing.T) {
	t.Cleanup(resetLoggingState)

	Init(Config{Format: "console", Level: "info"})

	mu.RLock()
	defer mu.RUnlock()

	if _, ok := baseWriter.(zerolog.ConsoleWriter); !ok {
		t.Fatalf("expected console writer, got %T", baseWriter)
	}
}

func TestSelectWriterAutoChecksTerminal(t *testing.T) {
	orig := isTerminalFn
	t.Cleanup(func() { isTerminalFn = orig })

	isTerminalFn = func(int) bool { return true }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); !ok {
		t.Fatal("expected console writer on a terminal")
	}

	isTerminalFn = func(int) bool { return false }
	if selectWriter("auto") != os.Stderr {
		t.Fatal("expected raw stderr when not a terminal")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(resetLoggingState)

	SetLevel("error")
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Fatalf("expected error level, got %s", zerolog.GlobalLevel())
	}
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	if id == "" {
		t.Fatal("expected generated request id")
	}
	if got := RequestID(ctx); got != id {
		t.Fatalf("RequestID() = %q, want %q", got, id)
	}

	ctx, id = WithRequestID(context.Background(), "  fixed  ")
	if id != "fixed" || RequestID(ctx) != "fixed" {
		t.Fatalf("expected trimmed explicit id, got %q", id)
	}

	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty id on bare context")
	}
}

func TestInitWritesToFile(t *testing.T) {
	t.Cleanup(resetLoggingState)

	path := filepath.Join(t.TempDir(), "logs", "cataspark.log")
	logger := Init(Config{Format: "json", Level: "info", FilePath: path})
	logger.Info().Msg("hello file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("expected message in log file, got %q", string(data))
	}
}

func TestFileSinkRotatesToSingleBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	w, err := openFileSink(path, 1)
	if err != nil {
		t.Fatalf("openFileSink: %v", err)
	}
	defer w.Close()
	w.limit = 10

	for _, chunk := range []string{"12345678", "abcdefgh", "ABCDEFGH"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write %q: %v", chunk, err)
		}
	}

	old, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(old) != "abcdefgh" {
		t.Fatalf("backup content = %q", string(old))
	}
	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if string(current) != "ABCDEFGH" {
		t.Fatalf("current content = %q", string(current))
	}
}

func TestFileSinkOversizedFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	w, err := openFileSink(path, 1)
	if err != nil {
		t.Fatalf("openFileSink: %v", err)
	}
	w.limit = 4

	if _, err := w.Write([]byte("longer than the limit")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("empty file must not be rotated, stat err = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatal("expected error writing to a closed sink")
	}
}

func TestOpenFileSinkDisabledWithoutPath(t *testing.T) {
	w, err := openFileSink("  ", 0)
	if err != nil || w != nil {
		t.Fatalf("expected nil sink and error, got %v, %v", w, err)
	}
}

package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"archivist/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "empty level defaults to info", cfg: &config.LoggingConfig{}},
		{name: "invalid log level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{
			name: "file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "archivist.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewWithWriter(tt.cfg, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("NewWithWriter() returned nil logger")
			}
		})
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "debug", NoColor: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	log.WithField("creator", "mofu").Info("Syncing creator")

	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "| Syncing creator") {
		t.Errorf("unexpected console line: %q", out)
	}
	if !strings.Contains(out, "creator:mofu") {
		t.Errorf("field missing from console line: %q", out)
	}
	if strings.Contains(out, "app:") {
		t.Errorf("default fields should be hidden on the console: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "warn", NoColor: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("field1", "value1").
		WithFields(map[string]interface{}{
			"field2": 2,
			"field3": true,
		}).
		Info("chained fields")

	output := buf.String()
	for _, want := range []string{`"field1":"value1"`, `"field2":2`, `"field3":true`, "chained fields"} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not found in %s", want, output)
		}
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)
	_ = parent.WithField("creator", "mofu")

	parent.Info("plain")
	if strings.Contains(buf.String(), "mofu") {
		t.Error("child field leaked into parent logger")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("connection reset")).Error("request failed")
	if !strings.Contains(buf.String(), "connection reset") {
		t.Error("error text not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("typed", map[string]interface{}{
		"fee":      uint32(500),
		"int64":    int64(456),
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"tags":     []string{"a", "b"},
		"cause":    errors.New("nope"),
		"custom":   struct{ Name string }{Name: "x"},
	})

	output := buf.String()
	if !strings.Contains(output, `"fee":500`) {
		t.Errorf("uint32 field missing: %s", output)
	}
	if !strings.Contains(output, `"cause":"nope"`) {
		t.Errorf("error field missing: %s", output)
	}
}

func TestTestLoggerCapturesContext(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("creator", "mofu").WithError(errors.New("boom"))
	child.Warn("listing failed")
	LogPostFailure(tl, "https://mofu.fanbox.cc/posts/1", "resolve", errors.New("bad embed"))

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Field("creator") != "mofu" || msgs[0].Error == nil {
		t.Errorf("child context lost: %+v", msgs[0])
	}
	if !tl.HasError() || !tl.HasMessage("Post failed") {
		t.Errorf("post failure not captured: %s", tl.String())
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() left messages behind")
	}
}

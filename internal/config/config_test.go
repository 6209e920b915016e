package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults %+v, got %+v", Default(), cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCSEG_WORKER_COUNT", "7")
	t.Setenv("DOCSEG_JOB_TTL", "15m")
	t.Setenv("DOCSEG_SEGMENT_MAX_CHAPTER_LENGTH", "2500")
	t.Setenv("PORT", "9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 7 {
		t.Errorf("expected worker count 7, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 15*time.Minute {
		t.Errorf("expected job ttl 15m, got %s", cfg.JobTTL)
	}
	if cfg.Segment.MaxChapterLength != 2500 {
		t.Errorf("expected max chapter length 2500, got %d", cfg.Segment.MaxChapterLength)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port from PORT, got %q", cfg.Port)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docseg.yaml")
	body := "log_level: debug\nsegment:\n  include_sub_chapters: false\n  min_chapter_length: 50\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %q", cfg.LogLevel)
	}
	if cfg.Segment.IncludeSubChapters || cfg.Segment.MinChapterLength != 50 {
		t.Errorf("unexpected segment config %+v", cfg.Segment)
	}
	if cfg.Segment.MaxChapterLength != 5000 {
		t.Errorf("expected default max chapter length, got %d", cfg.Segment.MaxChapterLength)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }, "WorkerCount"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"non-numeric port", func(c *Config) { c.Port = "http" }, "Port"},
		{"short ttl", func(c *Config) { c.JobTTL = time.Millisecond }, "JobTTL"},
		{"tiny min", func(c *Config) { c.Segment.MinChapterLength = 5 }, "MinChapterLength"},
		{"max below overlap", func(c *Config) { c.Segment.MaxChapterLength = 150 }, "MaxChapterLength"},
		{"max too close to min", func(c *Config) {
			c.Segment.MinChapterLength = 400
			c.Segment.MaxChapterLength = 450
		}, "min_chapter_length+100"},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

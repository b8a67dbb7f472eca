package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 5000\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Library.Dir != DefaultLibraryDir {
		t.Errorf("library.dir: got %q, want %q", cfg.Library.Dir, DefaultLibraryDir)
	}
	if cfg.Library.MinSizeBytes != DefaultMinSizeBytes {
		t.Errorf("library.min_size_bytes: got %d, want %d", cfg.Library.MinSizeBytes, DefaultMinSizeBytes)
	}
	if !cfg.Library.SerializeCalls {
		t.Error("library.serialize_calls: got false, want true")
	}
	if cfg.Calculation.DefaultD1Log != DefaultD1Log {
		t.Errorf("calculation.default_d1_log: got %v, want %v", cfg.Calculation.DefaultD1Log, DefaultD1Log)
	}
	if cfg.Calculation.DefaultUVT215 != DefaultUVT215 {
		t.Errorf("calculation.default_uvt215: got %v, want %v", cfg.Calculation.DefaultUVT215, DefaultUVT215)
	}
	if cfg.Server.FeedInterval != DefaultFeedInterval {
		t.Errorf("server.feed_interval: got %v, want %v", cfg.Server.FeedInterval, DefaultFeedInterval)
	}
	if cfg.History.Backend != "memory" || cfg.History.TTL != time.Hour || cfg.History.Limit != 500 {
		t.Errorf("history: got %+v", cfg.History)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `library:
  dir: /opt/red
  min_size_bytes: 2048
  serialize_calls: false
specification:
  source: s3://uv-specs/prod/supported_systems.json
  cache_dir: /var/cache/uvdose
  s3:
    region: eu-west-1
    endpoint: http://minio:9000
    path_style: true
calculation:
  default_drive: 90
  default_efficiency: 80
  default_d1_log: 16.5
  native_validation: true
server:
  http_port: 8088
  log_level: debug
  feed_interval: 2s
history:
  backend: sqlite
  path: /var/lib/uvdose/history.db
  ttl: 30m
  limit: 50
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Library.Dir != "/opt/red" || cfg.Library.MinSizeBytes != 2048 || cfg.Library.SerializeCalls {
		t.Errorf("library: got %+v", cfg.Library)
	}
	if cfg.Specification.S3.Region != "eu-west-1" || !cfg.Specification.S3.PathStyle {
		t.Errorf("specification.s3: got %+v", cfg.Specification.S3)
	}
	if cfg.Calculation.DefaultDrive != 90 || !cfg.Calculation.NativeValidation {
		t.Errorf("calculation: got %+v", cfg.Calculation)
	}
	if cfg.Server.Level() != slog.LevelDebug {
		t.Errorf("server.log_level: got %v, want DEBUG", cfg.Server.Level())
	}
	if cfg.Server.FeedInterval != 2*time.Second {
		t.Errorf("server.feed_interval: got %v, want 2s", cfg.Server.FeedInterval)
	}
	if cfg.History.Backend != "sqlite" || cfg.History.TTL != 30*time.Minute || cfg.History.Limit != 50 {
		t.Errorf("history: got %+v", cfg.History)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"port":            "server:\n  http_port: 70000\n",
		"log level":       "server:\n  log_level: loud\n",
		"feed interval":   "server:\n  feed_interval: 0s\n",
		"drive":           "calculation:\n  default_drive: 120\n",
		"d1 log":          "calculation:\n  default_d1_log: 0\n",
		"backend":         "history:\n  backend: redis\n",
		"sqlite no path":  "history:\n  backend: sqlite\n  path: \"\"\n",
		"limit":           "history:\n  limit: 0\n",
		"empty source":    "specification:\n  source: \"\"\n",
		"s3 no region":    "specification:\n  source: s3://b/k.json\n  s3:\n    region: \"\"\n",
		"negative size":   "library:\n  min_size_bytes: -1\n",
		"yaml syntax":     "server: [\n",
		"negative ttl":    "history:\n  ttl: -1m\n",
		"empty directory": "library:\n  dir: \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "absent.yaml") {
		t.Errorf("got %v, want read error naming the file", err)
	}
}

func TestServerConfig_LevelFallsBackToInfo(t *testing.T) {
	if got := (ServerConfig{LogLevel: "bogus"}).Level(); got != slog.LevelInfo {
		t.Errorf("got %v, want INFO", got)
	}
	if got := (ServerConfig{LogLevel: "WARN"}).Level(); got != slog.LevelWarn {
		t.Errorf("got %v, want WARN", got)
	}
}

func TestWatch_Reloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := writeConfig(t, "server:\n  log_level: info\n")
	ctx, cancel := context.WithCancel(context.Background())

	changed := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) {
			select {
			case changed <- c:
			default:
			}
		})
	}()

	// Rewrite until the watcher is registered and reports the change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got *Config
	for got == nil {
		select {
		case got = <-changed:
		case <-tick.C:
			if err := os.WriteFile(p, []byte("server:\n  log_level: debug\n"), 0o600); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
		case <-deadline:
			cancel()
			t.Fatal("no reload within 5s")
		}
	}
	if got.Server.Level() != slog.LevelDebug {
		t.Errorf("log level: got %v, want DEBUG", got.Server.Level())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch: %v", err)
	}
}

func TestWatch_InvalidReloadIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := writeConfig(t, "server:\n  log_level: info\n")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	calls := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(*Config) { calls <- struct{}{} })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  http_port: -1\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch: %v", err)
	}
	if n := len(calls); n != 0 {
		t.Errorf("onChange calls: got %d, want 0", n)
	}
}

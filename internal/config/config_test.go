package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"barcoder/internal/blob"
	"barcoder/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "barcoder.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Storage.Driver != core.StorageSQLite || !cfg.UsesMemoryRegistry() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
log:
  format: json
storage:
  driver: postgres
  postgres_dsn: postgres://db/barcodes
blob:
  driver: s3
  s3:
    bucket: labels
paths:
  scripts: /opt/scripts
  command_timeout: 45s
registry:
  url: https://registry.example.org
  timeout: 5s
`)
	t.Setenv(EnvConfig, path)
	t.Setenv("BARCODER_DEBUG", "true")
	t.Setenv("BARCODER_RESULTS", "/data/results")
	t.Setenv("BARCODER_BLOB_S3_PREFIX", "barcoder/")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Log.Format != "json" || !cfg.Log.Debug {
		t.Fatalf("unexpected server settings %+v", cfg)
	}
	if cfg.Storage.Driver != core.StoragePostgres || cfg.Storage.PostgresDSN != "postgres://db/barcodes" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "labels" || cfg.Blob.S3.Prefix != "barcoder/" {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.Paths.Scripts != "/opt/scripts" || cfg.Paths.Results != "/data/results" || cfg.Paths.Tmp != "./tmp" {
		t.Fatalf("unexpected paths %+v", cfg.Paths)
	}
	if cfg.Paths.CommandTimeout != 45*time.Second || cfg.Registry.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %+v %+v", cfg.Paths, cfg.Registry)
	}
	if cfg.UsesMemoryRegistry() {
		t.Fatal("registry url configured")
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
blob:
  driver: s3
metrics: statsd
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"postgres_dsn", "bucket", "statsd"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("BARCODER_COMMAND_TIMEOUT", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADDR", "")

	loader, err := Load(Options{})
	require.NoError(t, err)
	cfg := loader.Config()

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "./db/migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, "advisory", cfg.Generation.CompliancePolicy)
	assert.Equal(t, 10*time.Second, cfg.Generation.PersistTimeout)
	assert.Equal(t, "SGD", cfg.Generation.Currency)
	assert.Equal(t, 30*time.Second, cfg.PDF.Timeout)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
addr: ":9000"
database:
  url: postgres://file/legalhelp
generation:
  compliance_policy: strict
  persist_timeout: 3s
pdf:
  timeout: 45s
logging:
  format: console
`)
	t.Setenv("DATABASE_URL", "postgres://env/legalhelp")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")

	loader, err := Load(Options{File: path})
	require.NoError(t, err)
	cfg := loader.Config()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "postgres://env/legalhelp", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, "strict", cfg.Generation.CompliancePolicy)
	assert.Equal(t, 3*time.Second, cfg.Generation.PersistTimeout)
	assert.Equal(t, 45*time.Second, cfg.PDF.Timeout)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "STORAGE_ENDPOINT=localhost:9000\nSTORAGE_BUCKET=templates\n")
	t.Setenv("STORAGE_ENDPOINT", "")
	t.Setenv("STORAGE_BUCKET", "")
	// godotenv never overrides variables that are already set.
	require.NoError(t, os.Unsetenv("STORAGE_ENDPOINT"))
	require.NoError(t, os.Unsetenv("STORAGE_BUCKET"))

	loader, err := Load(Options{EnvFile: envPath})
	require.NoError(t, err)
	cfg := loader.Config()
	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "templates", cfg.Storage.Bucket)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	assert.NoError(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"policy", "generation:\n  compliance_policy: lenient\n", "generation.compliance_policy"},
		{"currency", "generation:\n  currency: ZZZZ\n", "generation.currency"},
		{"persist timeout", "generation:\n  persist_timeout: 0s\n", "persist_timeout"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"bucket", "storage:\n  endpoint: localhost:9000\n  bucket: \"\"\n", "storage.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.body)
			_, err := Load(Options{File: path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestWatchReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "generation:\n  compliance_policy: advisory\n")

	loader, err := Load(Options{File: path})
	require.NoError(t, err)

	reloaded := make(chan Config, 4)
	loader.Watch(func(cfg Config) { reloaded <- cfg }, nil)

	writeFile(t, dir, "config.yaml", "generation:\n  compliance_policy: strict\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "strict", cfg.Generation.CompliancePolicy)
		assert.Equal(t, "strict", loader.Config().Generation.CompliancePolicy)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}

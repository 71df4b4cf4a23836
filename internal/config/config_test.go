package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_JSON(t *testing.T) {
	t.Chdir(t.TempDir())

	p := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"server":{"port":"9090"},"data":{"dir":"/srv/data"},"quotes":{"max_requests_per_minute":30,"burst":5}}`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 10, cfg.Server.RequestTimeoutSec)
	require.Equal(t, "/srv/data", cfg.Data.Dir)
	require.Equal(t, 30, cfg.Quotes.MaxRequestsPerMinute)
	require.Equal(t, 5, cfg.Quotes.Burst)
	require.Equal(t, DriverFile, cfg.Storage.Driver)
}

func TestLoad_YAML(t *testing.T) {
	t.Chdir(t.TempDir())

	p := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "storage:\n  driver: memory\nyahoo:\n  range: 1y\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.Equal(t, "1y", cfg.Yahoo.Range)
	require.Equal(t, 15, cfg.Yahoo.TimeoutSec)
}

func TestLoad_FindsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: \"7000\"\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "7000", cfg.Server.Port)
}

func TestLoad_BadFile(t *testing.T) {
	t.Chdir(t.TempDir())

	p := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(p, []byte("{"), 0o644))

	_, err := Load(p)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "1234")
	t.Setenv("STORAGE_DRIVER", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("QUOTES_MIN_INTERVAL_MS", "250")
	t.Setenv("QUOTES_BURST", "0")
	t.Setenv("REQUEST_TIMEOUT_SEC", "abc")
	t.Setenv("YAHOO_BASE_URL", "http://localhost:9999/")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "1234", cfg.Server.Port)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.Equal(t, "postgres://u:p@localhost/db", cfg.Storage.DSN)
	require.Equal(t, 250, cfg.Quotes.MinRequestIntervalMS)
	require.Equal(t, 1, cfg.Quotes.Burst, "below minimum is ignored")
	require.Equal(t, 10, cfg.Server.RequestTimeoutSec, "unparsable is ignored")
	require.Equal(t, "http://localhost:9999", cfg.Yahoo.BaseURL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// register restore, then clear so .env does not lose to the process env
	t.Setenv("DATA_DIR", "unused")
	require.NoError(t, os.Unsetenv("DATA_DIR"))
	t.Cleanup(func() { os.Unsetenv("DATA_DIR") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATA_DIR=from-dotenv\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Data.Dir)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Storage.Driver = "redis"
	require.ErrorContains(t, cfg.Validate(), "unknown storage driver")

	cfg = Default()
	cfg.Storage.Driver = DriverPostgres
	require.ErrorContains(t, cfg.Validate(), "dsn")
}

func TestSplitCSV(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"AAPL", "MSFT"}, SplitCSV(" AAPL, ,MSFT,"))
	require.Empty(t, SplitCSV(""))
}

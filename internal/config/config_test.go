package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const friends = "0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(9903816), cfg.StartBlock)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, uint64(1000), cfg.BatchSize)
	assert.Equal(t, 3, cfg.RPCMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RPCRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.ErrorBackoff)
	assert.Equal(t, []Contract{{Name: "friends", Address: friends, Type: "friends"}}, cfg.Contracts)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "kafka:29092", cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Kafka.SendMaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Kafka.DeliveryTimeout)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Empty(t, cfg.ArchiveLogs)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvAndFlags(t *testing.T) {
	chdirTemp(t)
	t.Setenv("INDEXER_RPC", "https://rpc.example.org")
	t.Setenv("INDEXER_BATCH_SIZE", "250")
	t.Setenv("INDEXER_KAFKA_ENABLED", "false")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("contracts", "", "")
	flags.String("checkpoint-driver", "", "")
	require.NoError(t, flags.Parse([]string{
		"--contracts", "social=0x00000000000000000000000000000000000000aa:art,friends=" + friends,
		"--checkpoint-driver", "SQLITE",
	}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.org", cfg.RPCURL)
	assert.Equal(t, uint64(250), cfg.BatchSize)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	require.Len(t, cfg.Contracts, 2)
	assert.Equal(t, Contract{Name: "social", Address: "0x00000000000000000000000000000000000000aa", Type: "art"}, cfg.Contracts[0])
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc: wss://node.example.org\npoll-interval: 10s\ncontracts:\n  - friends="+friends+"\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://node.example.org", cfg.RPCURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	require.Len(t, cfg.Contracts, 1)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INDEXER_TEST_ENV_FILE_KEY=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("INDEXER_TEST_ENV_FILE_KEY") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("INDEXER_TEST_ENV_FILE_KEY"))

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
	require.NoError(t, LoadEnvFile(""))
}

func validConfig() Config {
	return Config{
		RPCURL:       "https://rpc.example.org",
		PollInterval: time.Second,
		BatchSize:    100,
		Contracts:    []Contract{{Name: "friends", Address: friends, Type: "friends"}},
		Store:        StoreConfig{Driver: DriverFile, File: "./cp.json"},
		Kafka:        KafkaConfig{Enabled: true, Brokers: "localhost:9092"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing rpc", func(c *Config) { c.RPCURL = "" }},
		{"bad scheme", func(c *Config) { c.RPCURL = "ftp://rpc.example.org" }},
		{"no host", func(c *Config) { c.RPCURL = "http://" }},
		{"no contracts", func(c *Config) { c.Contracts = nil }},
		{"bad address", func(c *Config) { c.Contracts[0].Address = "0x1234" }},
		{"duplicate names", func(c *Config) { c.Contracts = append(c.Contracts, c.Contracts[0]) }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store = StoreConfig{Driver: DriverPostgres} }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Brokers = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseContracts(t *testing.T) {
	got, err := ParseContracts([]string{" friends = " + friends + " ", "", "snap=" + friends + ":snap"})
	require.NoError(t, err)
	assert.Equal(t, []Contract{
		{Name: "friends", Address: friends, Type: "friends"},
		{Name: "snap", Address: friends, Type: "snap"},
	}, got)

	for _, bad := range []string{friends, "=" + friends, "x=0xzz", "x=280b971f9405aD604a4EaE50F3AD65Aa092F9f35"} {
		_, err := ParseContracts([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "postgres://indexer:xxxxx@db:5432/thera", MaskURL("postgres://indexer:secret@db:5432/thera?sslmode=disable"))
	assert.Equal(t, "https://rpc.example.org/v1", MaskURL("https://rpc.example.org/v1?apikey=abc"))
	assert.Equal(t, "not a url", MaskURL("not a url"))
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "0x280b97...9f35", FormatAddress("0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"))
	assert.Equal(t, "0x1234", FormatAddress("0x1234"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const govKey = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Load config from file", func(t *testing.T) {
		path := writeConfig(t, `
server:
  grpc_addr: 127.0.0.1:9443
database:
  type: sqlite
  sqlite_path: /tmp/registry.db
registry:
  inspection_pass_threshold: 7
  inspection_validity: 720h
  government_keys: [`+govKey+`]
kafka:
  brokers: [localhost:9092]
logging:
  level: debug
  format: console
`)
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9443", cfg.Server.GRPCAddr)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.EqualValues(t, 7, cfg.Registry.InspectionPassThreshold)
		assert.Equal(t, 720*time.Hour, cfg.Registry.InspectionValidity)
		assert.Equal(t, "registry.transitions", cfg.Kafka.Topic, "unset keys keep defaults")

		keys, err := cfg.Registry.GovernmentPubkeys()
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, govKey, keys[0].String())
	})

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cfg, err := Load("/non/existent/path.yaml", nil)
		require.NoError(t, err)
		assert.Equal(t, ":8443", cfg.Server.GRPCAddr)
		assert.Equal(t, "postgres", cfg.Database.Type)
		assert.EqualValues(t, 5, cfg.Registry.InspectionPassThreshold)
	})

	t.Run("Malformed file", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unclosed"), nil)
		require.Error(t, err)
	})
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "database:\n  type: sqlite\nlogging:\n  level: warn\n")
	t.Setenv("VR_DB_TYPE", "memory")
	t.Setenv("VR_LOG_LEVEL", "error")
	t.Setenv("VR_KAFKA_BROKERS", "k1:9092, k2:9092")

	fs := flag.NewFlagSet("registry-server", flag.ContinueOnError)
	flags := NewFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log.level", "debug"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Type, "env beats file")
	assert.Equal(t, "debug", cfg.Logging.Level, "flag beats env")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"db type", func(c *Config) { c.Database.Type = "mysql" }},
		{"sqlite path", func(c *Config) { c.Database.Type, c.Database.SQLitePath = "sqlite", "" }},
		{"tls half set", func(c *Config) { c.Server.TLSCert = "cert.pem" }},
		{"threshold", func(c *Config) { c.Registry.InspectionPassThreshold = 11 }},
		{"government key", func(c *Config) { c.Registry.GovernmentKeys = []string{"not-base58-0OIl"} }},
		{"proof age", func(c *Config) { c.Registry.ProofMaxAge = 0 }},
		{"limiter", func(c *Config) { c.Limiter.MaxFailures = 0 }},
		{"kafka topic", func(c *Config) { c.Kafka.Brokers, c.Kafka.Topic = []string{"k:9092"}, "" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	require.NoError(t, Default().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

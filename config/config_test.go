package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-message-bus/config"
)

func TestParse_DefaultsAndOverrides(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
name: orders
variant: async
event_retrying: 3
backoff:
  base: 50ms
  cap: 2s
max_in_flight: 8
relay:
  kind: kafka
  brokers: [localhost:9092]
`))
	require.NoError(t, err)

	require.Equal(t, "orders", cfg.Name)
	require.Equal(t, config.VariantAsync, cfg.Variant)
	require.Equal(t, 3, cfg.EventRetrying)
	require.Equal(t, 50*time.Millisecond, cfg.Backoff.Base)
	require.Equal(t, 2*time.Second, cfg.Backoff.Cap)
	require.Equal(t, int64(8), cfg.MaxInFlight)
	require.Equal(t, []string{"localhost:9092"}, cfg.Relay.Brokers)
	// untouched fields keep defaults
	require.Equal(t, 100*time.Millisecond, cfg.PollInterval)
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := config.Parse(strings.NewReader("retries: 3\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*config.Bus)
	}{
		{"variant", func(b *config.Bus) { b.Variant = "threads" }},
		{"retrying", func(b *config.Bus) { b.EventRetrying = 0 }},
		{"backoff", func(b *config.Bus) { b.Backoff.Base = -time.Second }},
		{"poll", func(b *config.Bus) { b.PollInterval = -1 }},
		{"inflight", func(b *config.Bus) { b.MaxInFlight = -1 }},
		{"relay kind", func(b *config.Bus) { b.Relay.Kind = "sqs" }},
		{"relay url", func(b *config.Bus) { b.Relay.Kind = config.RelayNATS }},
		{"kafka brokers", func(b *config.Bus) { b.Relay.Kind = config.RelayKafka }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mut(&cfg)
			require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}

	require.NoError(t, config.Default().Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nevent_retrying: 2\n"), 0o600))

	t.Setenv("SCGBUS_EVENT_RETRYING", "7")
	t.Setenv("SCGBUS_BACKOFF_CAP", "3s")
	t.Setenv("SCGBUS_RELAY_KIND", "redis")
	t.Setenv("SCGBUS_RELAY_URL", "redis://localhost:6379/0")
	t.Setenv("SCGBUS_RELAY_BROKERS", "a:1, b:2")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "file", cfg.Name)
	require.Equal(t, 7, cfg.EventRetrying)
	require.Equal(t, 3*time.Second, cfg.Backoff.Cap)
	require.Equal(t, config.RelayRedis, cfg.Relay.Kind)
	require.Equal(t, "redis://localhost:6379/0", cfg.Relay.URL)
	require.Equal(t, []string{"a:1", "b:2"}, cfg.Relay.Brokers)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SCGBUS_POLL_INTERVAL", "soon")

	_, err := config.Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SCGBUS_POLL_INTERVAL")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

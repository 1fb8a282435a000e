package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, _, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 10*time.Second, cfg.NegotiationTimeout)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
}

func TestFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
server_url: https://meet.example.org
negotiation_timeout: 3s
ice_servers: stun:a.example.org,turn:b.example.org
log_level: debug
`), 0o600))
	t.Setenv("MEETCLIENT_DISPLAY_NAME", "Kim")

	cfg, _, err := Load(flags(t, "--config", path, "--port", "9100"))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "https://meet.example.org", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.NegotiationTimeout)
	assert.Equal(t, []string{"stun:a.example.org", "turn:b.example.org"}, cfg.ICEServers)
	assert.Equal(t, "Kim", cfg.DisplayName)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.ICE(), 1)
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ApplyLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	ApplyLogLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

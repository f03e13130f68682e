package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test in a fresh directory so Load picks up exactly the
// config file the test writes.
func chdirTemp(t *testing.T) string {
	t.Helper()
	viper.Reset()
	for _, key := range []string{
		"MEMO_PORT", "MEMO_HOST",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"MEMO_AGENT_WS_URL", "MEMO_AGENT_SUMMARY_URL", "MEMO_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(prev)
		viper.Reset()
	})
	return dir
}

func TestLoad_ConfigFileRoundTrip(t *testing.T) {
	dir := chdirTemp(t)

	raw := `{
		"server": {"host": "0.0.0.0", "port": 9090},
		"database": {"host": "db", "port": 5433, "user": "memo", "password": "pw", "database": "memo", "sslmode": "require"},
		"agent": {
			"mode": "remote",
			"ws_url": "ws://agent:9001/ws",
			"summary_url": "http://agent:9001/summary/daily",
			"chat_timeout_seconds": 120,
			"fallback_reply": "sorry, try again"
		},
		"summarize": {"timezone": "UTC", "cron_spec": "10 0 * * *", "workers": 2, "enabled": false},
		"auth": {"jwt_secret": "s3cret"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "require", cfg.Database.SSLMode)

	// Multi-word keys must survive decoding; losing chat_timeout_seconds
	// or fallback_reply silently breaks every chat turn.
	assert.Equal(t, "ws://agent:9001/ws", cfg.Agent.WSURL)
	assert.Equal(t, "http://agent:9001/summary/daily", cfg.Agent.SummaryURL)
	assert.Equal(t, 120, cfg.Agent.ChatTimeoutSec)
	assert.Equal(t, "sorry, try again", cfg.Agent.FallbackReply)

	assert.Equal(t, "UTC", cfg.Summarize.Timezone)
	assert.Equal(t, "10 0 * * *", cfg.Summarize.CronSpec)
	assert.Equal(t, 2, cfg.Summarize.Workers)
	assert.False(t, cfg.Summarize.Enabled)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := chdirTemp(t)

	raw := `{"server": {"port": 9090}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Agent.ChatTimeoutSec)
	assert.NotEmpty(t, cfg.Agent.FallbackReply)
	assert.Equal(t, "Asia/Shanghai", cfg.Summarize.Timezone)
	assert.Equal(t, "5 0 * * *", cfg.Summarize.CronSpec)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Agent.ChatTimeoutSec)
	assert.NotEmpty(t, cfg.Agent.FallbackReply)
}

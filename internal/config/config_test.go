package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"GOSSIPVIEW_NODE_ADDR", "GOSSIPVIEW_NODE_NAME", "ETCD_ENDPOINTS",
		"GOSSIPVIEW_POLL_INTERVAL", "GOSSIPVIEW_REQUEST_TIMEOUT", "GOSSIPVIEW_SEARCH_BUDGET",
		"GOSSIPVIEW_MERGE_PRIVATE_SENDS", "GOSSIPVIEW_METRICS_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", cfg.NodeAddr)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.EqualValues(t, 2, cfg.SearchBudget)
	require.False(t, cfg.MergePrivateSends)
	require.Empty(t, cfg.EtcdEndpoints)
	require.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOSSIPVIEW_NODE_ADDR", "http://10.0.0.1:8081")
	t.Setenv("GOSSIPVIEW_NODE_NAME", "alice")
	t.Setenv("ETCD_ENDPOINTS", "http://etcd:2379, http://etcd2:2379")
	t.Setenv("GOSSIPVIEW_POLL_INTERVAL", "250ms")
	t.Setenv("GOSSIPVIEW_SEARCH_BUDGET", "16")
	t.Setenv("GOSSIPVIEW_MERGE_PRIVATE_SENDS", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.1:8081", cfg.NodeAddr)
	require.Equal(t, []string{"http://etcd:2379", "http://etcd2:2379"}, cfg.EtcdEndpoints)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.EqualValues(t, 16, cfg.SearchBudget)
	require.True(t, cfg.MergePrivateSends)
	require.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"GOSSIPVIEW_POLL_INTERVAL":       "soon",
		"GOSSIPVIEW_REQUEST_TIMEOUT":     "-1s",
		"GOSSIPVIEW_SEARCH_BUDGET":       "0",
		"GOSSIPVIEW_MERGE_PRIVATE_SENDS": "maybe",
		"LOG_LEVEL":                      "loud",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadEtcdNeedsNodeName(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "http://etcd:2379")
	t.Setenv("GOSSIPVIEW_NODE_NAME", "")
	_, err := Load()
	require.Error(t, err)
}

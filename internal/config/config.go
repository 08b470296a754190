package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	// NodeAddr is the web address of the Peerster node, scheme optional.
	NodeAddr string
	// NodeName is resolved through etcd when EtcdEndpoints is set.
	NodeName string
	// EtcdEndpoints enables discovery of NodeAddr when non-empty.
	EtcdEndpoints []string

	PollInterval   time.Duration
	RequestTimeout time.Duration
	SearchBudget   uint64
	// MergePrivateSends shows sent private messages before the node lists them.
	MergePrivateSends bool

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
	LogLevel    zapcore.Level
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		NodeAddr:       getenv("GOSSIPVIEW_NODE_ADDR", "127.0.0.1:8080"),
		NodeName:       os.Getenv("GOSSIPVIEW_NODE_NAME"),
		PollInterval:   time.Second,
		RequestTimeout: 5 * time.Second,
		SearchBudget:   2,
		MetricsAddr:    os.Getenv("GOSSIPVIEW_METRICS_ADDR"),
		LogLevel:       zapcore.InfoLevel,
	}

	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				cfg.EtcdEndpoints = append(cfg.EtcdEndpoints, ep)
			}
		}
	}
	if len(cfg.EtcdEndpoints) > 0 && cfg.NodeName == "" {
		return nil, fmt.Errorf("GOSSIPVIEW_NODE_NAME is required when ETCD_ENDPOINTS is set")
	}

	var err error
	if cfg.PollInterval, err = duration("GOSSIPVIEW_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = duration("GOSSIPVIEW_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if v := os.Getenv("GOSSIPVIEW_SEARCH_BUDGET"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid GOSSIPVIEW_SEARCH_BUDGET %q", v)
		}
		cfg.SearchBudget = n
	}
	if v := os.Getenv("GOSSIPVIEW_MERGE_PRIVATE_SENDS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GOSSIPVIEW_MERGE_PRIVATE_SENDS %q", v)
		}
		cfg.MergePrivateSends = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := zapcore.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q (expected a positive duration like 1s)", key, v)
	}
	return d, nil
}

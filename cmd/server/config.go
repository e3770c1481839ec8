package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/wall"
)

// ServerConfig is read from the environment at startup.
type ServerConfig struct {
	Port             string
	WallConfig       string
	XScale           float64
	YScale           float64
	HandshakeTimeout time.Duration
	MaxPeers         int
	EnableMonitoring bool
	MetricsInterval  time.Duration
	Modules          []string
}

// GetServerConfigFromEnv reads the server configuration. Malformed values
// are config errors.
func GetServerConfigFromEnv() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:             envString("APP_PORT", "8080"),
		WallConfig:       envString("WALL_CONFIG", "config/wall.json"),
		EnableMonitoring: os.Getenv("ENABLE_MONITORING") == "true",
	}
	for _, id := range strings.Split(os.Getenv("MODULES"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Modules = append(cfg.Modules, id)
		}
	}

	var err error
	if cfg.XScale, err = envFloat("WALL_XSCALE", wall.DefaultXScale); err != nil {
		return cfg, err
	}
	if cfg.YScale, err = envFloat("WALL_YSCALE", wall.DefaultYScale); err != nil {
		return cfg, err
	}
	if cfg.HandshakeTimeout, err = envDuration("HANDSHAKE_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	if cfg.MetricsInterval, err = envDuration("METRICS_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.MaxPeers, err = envInt("MAX_PEERS", 0); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, protocol.NewError(protocol.KindConfig, key+"="+v, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, protocol.NewError(protocol.KindConfig, key+"="+v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, protocol.NewError(protocol.KindConfig, key+"="+v, err)
	}
	return d, nil
}

package config

import (
	"net/url"

	"github.com/spf13/pflag"

	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/logging"
)

// Client настройки CLI клиента
type Client struct {
	Log          logging.Config
	ServerURL    string
	DBPath       string
	Connectivity connectivity.Config
	Policy       queue.Policy
	Sync         sync.Config
	MaxBytes     int64
}

var clientDefaults = map[string]any{
	"server":                      "http://localhost:8080",
	"db":                          "shoetrack.db",
	"log.level":                   "warn",
	"log.file":                    "",
	"sync.replay_timeout":         sync.DefaultConfig().ReplayTimeout,
	"sync.interval":               sync.DefaultConfig().Interval,
	"sync.max_retries":            queue.DefaultPolicy().MaxRetries,
	"sync.backoff_base":           queue.DefaultPolicy().BackoffBase,
	"sync.backoff_max":            queue.DefaultPolicy().BackoffMax,
	"sync.auto":                   connectivity.DefaultConfig().AutoSync,
	"connectivity.probe_interval": connectivity.DefaultConfig().ProbeInterval,
	"connectivity.window":         connectivity.DefaultConfig().Window,
	"connectivity.threshold":      connectivity.DefaultConfig().Threshold,
	"storage.max_bytes":           int64(64 << 20),
}

// RegisterClientFlags объявляет глобальные флаги клиента
func RegisterClientFlags(fs *pflag.FlagSet) {
	fs.String("server", clientDefaults["server"].(string), "server URL")
	fs.String("db", clientDefaults["db"].(string), "path to local database")
	fs.String("log-level", clientDefaults["log.level"].(string), "log level: debug, info, warn, error")
	fs.String("log-file", "", "log file path (stderr if empty)")
	fs.Bool("auto-sync", clientDefaults["sync.auto"].(bool), "sync automatically when connectivity returns")
}

var clientBindings = []flagBinding{
	{key: "server", flag: "server"},
	{key: "db", flag: "db"},
	{key: "log.level", flag: "log-level"},
	{key: "log.file", flag: "log-file"},
	{key: "sync.auto", flag: "auto-sync"},
}

// LoadClient собирает настройки клиента из всех источников
func LoadClient(configFile string, fs *pflag.FlagSet) (*Client, error) {
	v, err := newViper(configFile, clientDefaults)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, fs, clientBindings); err != nil {
		return nil, err
	}

	cfg := &Client{
		ServerURL: v.GetString("server"),
		DBPath:    v.GetString("db"),
		MaxBytes:  v.GetInt64("storage.max_bytes"),
		Log: logging.Config{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		Sync: sync.Config{
			ReplayTimeout: v.GetDuration("sync.replay_timeout"),
			Interval:      v.GetDuration("sync.interval"),
		},
		Policy: queue.Policy{
			MaxRetries:  v.GetInt("sync.max_retries"),
			BackoffBase: v.GetDuration("sync.backoff_base"),
			BackoffMax:  v.GetDuration("sync.backoff_max"),
		},
		Connectivity: connectivity.Config{
			Window:        v.GetInt("connectivity.window"),
			Threshold:     v.GetFloat64("connectivity.threshold"),
			ProbeInterval: v.GetDuration("connectivity.probe_interval"),
			AutoSync:      v.GetBool("sync.auto"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения
func (c *Client) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("server", "must be an http(s) URL, got %q", c.ServerURL)
	}

	switch {
	case c.DBPath == "":
		return invalid("db", "cannot be empty")
	case c.MaxBytes < 0:
		return invalid("storage.max_bytes", "must not be negative")
	case c.Sync.ReplayTimeout <= 0:
		return invalid("sync.replay_timeout", "must be positive, got %s", c.Sync.ReplayTimeout)
	case c.Sync.Interval < 0:
		return invalid("sync.interval", "must not be negative")
	case c.Policy.MaxRetries < 1:
		return invalid("sync.max_retries", "must be at least 1, got %d", c.Policy.MaxRetries)
	case c.Policy.BackoffBase < 0:
		return invalid("sync.backoff_base", "must not be negative")
	case c.Connectivity.Window < 1:
		return invalid("connectivity.window", "must be at least 1, got %d", c.Connectivity.Window)
	case c.Connectivity.Threshold <= 0 || c.Connectivity.Threshold > 1:
		return invalid("connectivity.threshold", "must be in (0, 1], got %v", c.Connectivity.Threshold)
	case c.Connectivity.ProbeInterval <= 0:
		return invalid("connectivity.probe_interval", "must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

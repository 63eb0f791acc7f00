package config

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/iudanet/shoetrack/internal/logging"
)

// Server настройки сервера
type Server struct {
	Log             logging.Config
	Addr            string
	DBPath          string
	JWTSecret       string
	JWTTTL          time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

var serverDefaults = map[string]any{
	"addr":             ":8080",
	"db":               "shoetrack-server.db",
	"jwt.secret":       "",
	"jwt.ttl":          24 * time.Hour,
	"log.level":        "info",
	"log.file":         "",
	"ratelimit.rps":    20.0,
	"ratelimit.burst":  40,
	"shutdown_timeout": 10 * time.Second,
}

// RegisterServerFlags объявляет флаги сервера
func RegisterServerFlags(fs *pflag.FlagSet) {
	fs.String("addr", serverDefaults["addr"].(string), "listen address")
	fs.String("db", serverDefaults["db"].(string), "path to SQLite database")
	fs.String("jwt-secret", "", "JWT signing secret (random per start if empty)")
	fs.Duration("jwt-ttl", serverDefaults["jwt.ttl"].(time.Duration), "access token lifetime")
	fs.String("log-level", serverDefaults["log.level"].(string), "log level: debug, info, warn, error")
	fs.String("log-file", "", "log file path (stderr if empty)")
	fs.Float64("ratelimit-rps", serverDefaults["ratelimit.rps"].(float64), "requests per second per client IP")
	fs.Int("ratelimit-burst", serverDefaults["ratelimit.burst"].(int), "request burst per client IP")
}

var serverBindings = []flagBinding{
	{key: "addr", flag: "addr"},
	{key: "db", flag: "db"},
	{key: "jwt.secret", flag: "jwt-secret"},
	{key: "jwt.ttl", flag: "jwt-ttl"},
	{key: "log.level", flag: "log-level"},
	{key: "log.file", flag: "log-file"},
	{key: "ratelimit.rps", flag: "ratelimit-rps"},
	{key: "ratelimit.burst", flag: "ratelimit-burst"},
}

// LoadServer собирает настройки сервера из всех источников
func LoadServer(configFile string, fs *pflag.FlagSet) (*Server, error) {
	v, err := newViper(configFile, serverDefaults)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, fs, serverBindings); err != nil {
		return nil, err
	}

	cfg := &Server{
		Addr:            v.GetString("addr"),
		DBPath:          v.GetString("db"),
		JWTSecret:       v.GetString("jwt.secret"),
		JWTTTL:          v.GetDuration("jwt.ttl"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		RateLimitRPS:    v.GetFloat64("ratelimit.rps"),
		RateLimitBurst:  v.GetInt("ratelimit.burst"),
		Log: logging.Config{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения
func (c *Server) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr", "cannot be empty")
	case c.DBPath == "":
		return invalid("db", "cannot be empty")
	case c.JWTTTL <= 0:
		return invalid("jwt.ttl", "must be positive, got %s", c.JWTTTL)
	case c.RateLimitRPS <= 0:
		return invalid("ratelimit.rps", "must be positive, got %v", c.RateLimitRPS)
	case c.RateLimitBurst < 1:
		return invalid("ratelimit.burst", "must be at least 1, got %d", c.RateLimitBurst)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

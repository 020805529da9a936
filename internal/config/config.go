package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		// DSN may be empty: the event journal is then disabled and the
		// marketplace runs purely in-memory.
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Auth struct {
		Issuer     string `yaml:"issuer"`
		Audience   string `yaml:"audience"`
		SigningKey string `yaml:"signing_key"`
		TTLMinutes int    `yaml:"ttl_minutes"`
	} `yaml:"auth"`
	Market struct {
		MaxTermMonths int   `yaml:"max_term_months"`
		MaxAPRBps     int64 `yaml:"max_apr_bps"`
	} `yaml:"market"`
	Worker struct {
		IntervalSeconds int64 `yaml:"interval_seconds"`
		BatchSize       int   `yaml:"batch_size"`
	} `yaml:"worker"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Auth.SigningKey == "" {
		return nil, errors.New("auth.signing_key is required")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("AUTH_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("AUTH_SIGNING_KEY"); v != "" {
		cfg.Auth.SigningKey = v
	}
	if v := os.Getenv("AUTH_TTL_MINUTES"); v != "" {
		cfg.Auth.TTLMinutes = atoiOr(cfg.Auth.TTLMinutes, v)
	}
	if v := os.Getenv("MARKET_MAX_TERM_MONTHS"); v != "" {
		cfg.Market.MaxTermMonths = atoiOr(cfg.Market.MaxTermMonths, v)
	}
	if v := os.Getenv("MARKET_MAX_APR_BPS"); v != "" {
		cfg.Market.MaxAPRBps = atoi64Or(cfg.Market.MaxAPRBps, v)
	}
	if v := os.Getenv("WORKER_INTERVAL_SECONDS"); v != "" {
		cfg.Worker.IntervalSeconds = atoi64Or(cfg.Worker.IntervalSeconds, v)
	}
	if v := os.Getenv("WORKER_BATCH_SIZE"); v != "" {
		cfg.Worker.BatchSize = atoiOr(cfg.Worker.BatchSize, v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "cipher-trust-connect"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "marketplace"
	}
	if cfg.Auth.TTLMinutes <= 0 {
		cfg.Auth.TTLMinutes = 60
	}
	if cfg.Market.MaxTermMonths <= 0 {
		cfg.Market.MaxTermMonths = 120
	}
	if cfg.Market.MaxAPRBps <= 0 {
		cfg.Market.MaxAPRBps = 10000
	}
	if cfg.Worker.IntervalSeconds <= 0 {
		cfg.Worker.IntervalSeconds = 2
	}
	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = 100
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the netlog service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Rules      RulesConfig      `yaml:"rules"`
	Explain    ExplainConfig    `yaml:"explain"`
	Cache      CacheConfig      `yaml:"cache"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	ScatterLimit    int           `yaml:"scatterLimit"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatasetConfig selects the labeled reference dataset.
type DatasetConfig struct {
	Source    string `yaml:"source"`
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
}

// ClassifierConfig selects the row classifier adapter.
type ClassifierConfig struct {
	Kind     string        `yaml:"kind"`
	Label    string        `yaml:"label"`
	Seed     int64         `yaml:"seed"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RulesConfig points at the threshold rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// ExplainConfig tunes the explanation engine.
type ExplainConfig struct {
	Merge      string  `yaml:"merge"`
	ZThreshold float64 `yaml:"zThreshold"`
}

// CacheConfig controls caching of dashboard statistics.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// AlertsConfig controls publication of abnormal rows to NATS.
type AlertsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"natsURL"`
	Subject string `yaml:"subject"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("NETLOG_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  60 * time.Second,
			CORSOrigins:     []string{"*"},
			MaxUploadBytes:  32 << 20,
			ScatterLimit:    500,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Dataset: DatasetConfig{
			Source:    "csv",
			Path:      "data/reference.csv",
			Delimiter: ",",
		},
		Classifier: ClassifierConfig{Kind: "random", Timeout: 5 * time.Second},
		Explain:    ExplainConfig{Merge: "overwrite", ZThreshold: 2},
		Cache:      CacheConfig{Enabled: true, TTL: 10 * time.Minute},
		Alerts:     AlertsConfig{Subject: "netlog.abnormal"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NETLOG_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("NETLOG_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("NETLOG_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("NETLOG_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("NETLOG_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("NETLOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NETLOG_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("NETLOG_DATASET_SOURCE"); v != "" {
		cfg.Dataset.Source = v
	}
	if v := os.Getenv("NETLOG_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("NETLOG_DATASET_DELIMITER"); v != "" {
		cfg.Dataset.Delimiter = v
	}
	if v := os.Getenv("NETLOG_DATASET_DSN"); v != "" {
		cfg.Dataset.DSN = v
	}
	if v := os.Getenv("NETLOG_DATASET_TABLE"); v != "" {
		cfg.Dataset.Table = v
	}
	if v := os.Getenv("NETLOG_CLASSIFIER_KIND"); v != "" {
		cfg.Classifier.Kind = v
	}
	if v := os.Getenv("NETLOG_CLASSIFIER_LABEL"); v != "" {
		cfg.Classifier.Label = v
	}
	if v := os.Getenv("NETLOG_CLASSIFIER_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Classifier.Seed = seed
		}
	}
	if v := os.Getenv("NETLOG_CLASSIFIER_ENDPOINT"); v != "" {
		cfg.Classifier.Endpoint = v
	}
	if v := os.Getenv("NETLOG_CLASSIFIER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Classifier.Timeout = d
		}
	}
	if v := os.Getenv("NETLOG_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("NETLOG_EXPLAIN_MERGE"); v != "" {
		cfg.Explain.Merge = v
	}
	if v := os.Getenv("NETLOG_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("NETLOG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("NETLOG_ALERTS_ENABLED"); v != "" {
		cfg.Alerts.Enabled = parseBool(v)
	}
	if v := os.Getenv("NETLOG_NATS_URL"); v != "" {
		cfg.Alerts.NATSURL = v
	}
	if v := os.Getenv("NETLOG_ALERTS_SUBJECT"); v != "" {
		cfg.Alerts.Subject = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

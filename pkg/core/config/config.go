// Package config loads runtime settings from config/valuation.yaml (or .hjson)
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"peer_valuation/pkg/core/agent"
	"peer_valuation/pkg/core/utils"
	"peer_valuation/pkg/core/valuation"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "config/valuation.yaml"

// Config is the root configuration.
type Config struct {
	Valuation ValuationConfig `yaml:"valuation" json:"valuation"`
	Peers     PeersConfig     `yaml:"peers" json:"peers"`
	Embedding agent.Config    `yaml:"embedding" json:"embedding"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Market    MarketConfig    `yaml:"market" json:"market"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ValuationConfig holds default run assumptions.
type ValuationConfig struct {
	WACC            float64         `yaml:"wacc" json:"wacc"`
	TerminalGrowth  float64         `yaml:"terminal_growth" json:"terminal_growth"`
	DCFWeight       float64         `yaml:"dcf_weight" json:"dcf_weight"`
	MultipleType    string          `yaml:"multiple_type" json:"multiple_type"`
	SensitivityStep float64         `yaml:"sensitivity_step" json:"sensitivity_step"`
	SanityBand      *valuation.Band `yaml:"sanity_band" json:"sanity_band"`
}

// PeersConfig controls the universe and vector construction.
type PeersConfig struct {
	UniversePath      string  `yaml:"universe_path" json:"universe_path"`
	TopN              int     `yaml:"top_n" json:"top_n"`
	MinSimilarity     float64 `yaml:"min_similarity" json:"min_similarity"`
	DescriptionWeight float64 `yaml:"description_weight" json:"description_weight"`
	UseNumerics       bool    `yaml:"use_numerics" json:"use_numerics"`
	Workers           int     `yaml:"workers" json:"workers"`
	EmbedTimeoutSec   int     `yaml:"embed_timeout_seconds" json:"embed_timeout_seconds"`
}

// Cache backends.
const (
	CacheFile     = "file"
	CacheBadger   = "badger"
	CachePostgres = "postgres"
)

// CacheConfig selects where vectors are persisted.
type CacheConfig struct {
	Backend     string `yaml:"backend" json:"backend"`
	Path        string `yaml:"path" json:"path"`
	BadgerDir   string `yaml:"badger_dir" json:"badger_dir"`
	DatabaseURL string `yaml:"database_url" json:"database_url"`
}

// MarketConfig configures external market data.
type MarketConfig struct {
	EODHDAPIKey     string `yaml:"eodhd_api_key" json:"eodhd_api_key"`
	EODHDBaseURL    string `yaml:"eodhd_base_url" json:"eodhd_base_url"`
	Exchange        string `yaml:"exchange" json:"exchange"`
	RateLimit       int    `yaml:"rate_limit" json:"rate_limit"`
	ProfileURL      string `yaml:"profile_url" json:"profile_url"`
	ProfileSelector string `yaml:"profile_selector" json:"profile_selector"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Valuation: ValuationConfig{
			WACC:            0.10,
			TerminalGrowth:  0.03,
			DCFWeight:       0.5,
			MultipleType:    "ev_ebitda",
			SensitivityStep: valuation.DefaultSensitivityStep,
		},
		Peers: PeersConfig{
			UniversePath:      "data/universe.csv",
			TopN:              5,
			MinSimilarity:     0.0,
			DescriptionWeight: 0.85,
			UseNumerics:       true,
			Workers:           8,
			EmbedTimeoutSec:   30,
		},
		Embedding: agent.Config{ActiveProvider: agent.ProviderHash},
		Cache: CacheConfig{
			Backend:   CacheFile,
			Path:      "data/vector_cache.json",
			BadgerDir: "data/badger",
		},
		Market: MarketConfig{
			Exchange:  "US",
			RateLimit: 10,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hjson", ".json":
		if err := utils.ParseHJSONToStruct(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		cfg.Market.EODHDAPIKey = key
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Cache.DatabaseURL = dsn
	}
	if level := os.Getenv("VALUATION_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if provider := os.Getenv("VALUATION_EMBEDDING_PROVIDER"); provider != "" {
		cfg.Embedding.ActiveProvider = provider
	}
	if path := os.Getenv("VALUATION_UNIVERSE"); path != "" {
		cfg.Peers.UniversePath = path
	}
	if backend := os.Getenv("VALUATION_CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if workers := os.Getenv("VALUATION_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Peers.Workers = n
		}
	}
	if addr := os.Getenv("VALUATION_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
}

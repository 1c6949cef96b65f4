// Package config provides a reusable loader for the indexer's TOML
// configuration file and environment variable overrides.
//
// Version: v0.2.0
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"rune-indexer/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// APIConfig controls the read-path HTTP server (C9).
type APIConfig struct {
	ListenAddr    string `mapstructure:"listen_addr" json:"listen_addr" toml:"listen_addr"`
	MaxDBConns    int    `mapstructure:"max_db_conns" json:"max_db_conns" toml:"max_db_conns"`
	FirehoseKey   string `mapstructure:"firehose_api_key" json:"firehose_api_key" toml:"firehose_api_key"`
	MinFeeRate    int64  `mapstructure:"min_fee_rate" json:"min_fee_rate" toml:"min_fee_rate"`
	FeeAdjustment int64  `mapstructure:"fee_adjustment" json:"fee_adjustment" toml:"fee_adjustment"`
}

// BTCConfig describes how to reach the Bitcoin node and which network to use.
type BTCConfig struct {
	Network          string `mapstructure:"network" json:"network" toml:"network"`
	RPCAddress       string `mapstructure:"rpc_address" json:"rpc_address" toml:"rpc_address"`
	RPCUser          string `mapstructure:"rpc_user" json:"rpc_user" toml:"rpc_user"`
	RPCPassword      string `mapstructure:"rpc_password" json:"rpc_password" toml:"rpc_password"`
	UseFirehose      bool   `mapstructure:"use_firehose" json:"use_firehose" toml:"use_firehose"`
	FirehoseAddr     string `mapstructure:"firehose_addr" json:"firehose_addr" toml:"firehose_addr"`
	OrdAddress       string `mapstructure:"ord_address" json:"ord_address" toml:"ord_address"`
	StartingHeight   uint64 `mapstructure:"starting_height" json:"starting_height" toml:"starting_height"`
	RetryOnFail      bool   `mapstructure:"retry_on_fail" json:"retry_on_fail" toml:"retry_on_fail"`
	WaitIntervalSecs int    `mapstructure:"wait_interval_secs" json:"wait_interval_secs" toml:"wait_interval_secs"`
}

// DBConfig is the DSN for the relational store (a non-goal to implement,
// but the core needs a connection string to hand to a concrete adapter).
type DBConfig struct {
	DSN            string `mapstructure:"dsn" json:"dsn" toml:"dsn"`
	MaxConns       int    `mapstructure:"max_conns" json:"max_conns" toml:"max_conns"`
	MinConns       int    `mapstructure:"min_conns" json:"min_conns" toml:"min_conns"`
	ForceMigration bool   `mapstructure:"force_migration" json:"force_migration" toml:"force_migration"`
}

// CacheConfig is the optional reservation cache (Redis-compatible KV).
type CacheConfig struct {
	Enable  bool   `mapstructure:"enable" json:"enable" toml:"enable"`
	Addr    string `mapstructure:"addr" json:"addr" toml:"addr"`
	LockTTL int    `mapstructure:"lock_ttl" json:"lock_ttl" toml:"lock_ttl"`
}

// MetricsConfig controls the (out-of-scope) scrape endpoint's bind address;
// only the registry wiring itself is part of the core.
type MetricsConfig struct {
	Enable     bool   `mapstructure:"enable" json:"enable" toml:"enable"`
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr" toml:"listen_addr"`
}

// Config is the unified configuration for every binary in this repository.
// It mirrors the TOML file's sections.
type Config struct {
	API     APIConfig     `mapstructure:"api" json:"api" toml:"api"`
	BTC     BTCConfig     `mapstructure:"btc" json:"btc" toml:"btc"`
	DB      DBConfig      `mapstructure:"db" json:"db" toml:"db"`
	Cache   CacheConfig   `mapstructure:"cache" json:"cache" toml:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics" toml:"metrics"`

	FeeAdjustment  int64  `mapstructure:"fee_adjustment" json:"fee_adjustment" toml:"fee_adjustment"`
	MinFeeRate     int64  `mapstructure:"min_fee_rate" json:"min_fee_rate" toml:"min_fee_rate"`
	FirehoseAPIKey string `mapstructure:"firehose_api_key" json:"firehose_api_key" toml:"firehose_api_key"`
}

// WaitInterval returns the indexer's poll interval, defaulting to 5s.
func (c *BTCConfig) WaitInterval() time.Duration {
	if c.WaitIntervalSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.WaitIntervalSecs) * time.Second
}

// LockTTLDuration returns the reservation lock TTL, defaulting to 25s.
func (c *CacheConfig) LockTTLDuration() time.Duration {
	if c.LockTTL <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.LockTTL) * time.Second
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Default returns a Config populated with the same defaults the sample-config
// CLI subcommand emits.
func Default() Config {
	return Config{
		API: APIConfig{ListenAddr: "127.0.0.1:8080", MaxDBConns: 100},
		BTC: BTCConfig{
			Network:          "mainnet",
			RPCAddress:       "127.0.0.1:8332",
			WaitIntervalSecs: 5,
			RetryOnFail:      true,
		},
		DB:         DBConfig{MaxConns: 20, MinConns: 2},
		Cache:      CacheConfig{Enable: true, Addr: "127.0.0.1:6379", LockTTL: 25},
		Metrics:    MetricsConfig{Enable: true, ListenAddr: "127.0.0.1:9090"},
		MinFeeRate: 1,
	}
}

// Load reads the TOML configuration file and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// env selects an optional overlay file (e.g. "testnet") merged on top of the
// default file; an empty env loads only the default configuration.
func Load(env string) (*Config, error) {
	AppConfig = Default()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("toml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RUNE_INDEXER_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RUNE_INDEXER_ENV", ""))
}

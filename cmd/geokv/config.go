package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/kv"
)

// IndexConfig is a stored index definition. Index ids are case-insensitive.
type IndexConfig struct {
	Bits       int `mapstructure:"bits"`
	Partitions int `mapstructure:"partitions"`
}

// MinioConfig holds the credentials of a minio:// store.
type MinioConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
}

// Config is the CLI configuration, read from the config file, GEOKV_*
// environment variables and flags.
type Config struct {
	DataDir     string                 `mapstructure:"data_dir"`
	Store       string                 `mapstructure:"store"`
	DDBTable    string                 `mapstructure:"ddb_table"`
	Compression string                 `mapstructure:"compression"`
	BlockCache  string                 `mapstructure:"block_cache"`
	LogLevel    string                 `mapstructure:"log_level"`
	Index       string                 `mapstructure:"index"`
	Indexes     map[string]IndexConfig `mapstructure:"indexes"`
	Minio       MinioConfig            `mapstructure:"minio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./geokv-data")
	v.SetDefault("compression", "lz4")
	v.SetDefault("block_cache", "0")
	v.SetDefault("log_level", "warn")
	v.SetDefault("index", "spatial")
}

// loadConfig reads path, if set, on top of the defaults. A missing file is
// not an error.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("GEOKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Indexes == nil {
		cfg.Indexes = make(map[string]IndexConfig)
	}
	return &cfg, nil
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// saveConfig writes cfg to path through a fresh viper instance so that
// removed keys do not survive from the file that was read.
func saveConfig(cfg *Config, path string) error {
	if path == "" {
		return errors.New("no config file: use --config")
	}
	w := viper.New()
	w.Set("data_dir", cfg.DataDir)
	if cfg.Store != "" {
		w.Set("store", cfg.Store)
	}
	if cfg.DDBTable != "" {
		w.Set("ddb_table", cfg.DDBTable)
	}
	w.Set("compression", cfg.Compression)
	w.Set("block_cache", cfg.BlockCache)
	w.Set("log_level", cfg.LogLevel)
	w.Set("index", cfg.Index)
	indexes := make(map[string]any, len(cfg.Indexes))
	for name, ic := range cfg.Indexes {
		indexes[name] = map[string]any{"bits": ic.Bits, "partitions": ic.Partitions}
	}
	w.Set("indexes", indexes)
	if cfg.Minio != (MinioConfig{}) {
		w.Set("minio", map[string]any{
			"access_key": cfg.Minio.AccessKey,
			"secret_key": cfg.Minio.SecretKey,
			"secure":     cfg.Minio.Secure,
		})
	}
	return w.WriteConfigAs(path)
}

// IndexNames returns the configured index ids in order.
func (c *Config) IndexNames() []string {
	names := make([]string, 0, len(c.Indexes))
	for name := range c.Indexes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IndexModel returns the index model named name. The built-in "spatial"
// definition is used when the config has none.
func (c *Config) IndexModel(name string) (*index.Model, error) {
	name = strings.ToLower(name)
	ic, ok := c.Indexes[name]
	if !ok {
		if name != "spatial" {
			return nil, fmt.Errorf("unknown index %q", name)
		}
		ic = IndexConfig{Bits: 20}
	}
	m, err := index.Spatial(name, ic.Bits)
	if err != nil {
		return nil, err
	}
	m.Partitions = ic.Partitions
	return m, m.Validate()
}

func (c *Config) compression() (kv.Compression, error) {
	return kv.ParseCompression(c.Compression)
}

func (c *Config) blockCacheBytes() (int64, error) {
	if c.BlockCache == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.BlockCache)
	if err != nil {
		return 0, fmt.Errorf("block_cache: %w", err)
	}
	return int64(n), nil
}

func (c *Config) logLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

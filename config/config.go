// Package config loads the engine's tunables: the parallelism of the two aggregation stages, the optional
// bound on distinct sets and the log level.
package config

import (
	"strings"

	"github.com/pingcap/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config keys.
const (
	KeyPartialConcurrency = "aggregation.partial_concurrency"
	KeyFinalConcurrency   = "aggregation.final_concurrency"
	KeyDistinctLimit      = "aggregation.distinct_limit"
	KeyLogLevel           = "log.level"
)

// EnvPrefix prefixes environment overrides, e.g. AGGENGINE_AGGREGATION_FINAL_CONCURRENCY.
const EnvPrefix = "AGGENGINE"

type Config struct {
	Aggregation Aggregation `mapstructure:"aggregation"`
	Log         Log         `mapstructure:"log"`
}

type Aggregation struct {
	// PartialConcurrency bounds the number of partitions aggregated at the same time.
	PartialConcurrency int `mapstructure:"partial_concurrency"`
	// FinalConcurrency is the number of final-stage workers groups are hashed to.
	FinalConcurrency int `mapstructure:"final_concurrency"`
	// DistinctLimit bounds every distinct set; 0 means unbounded.
	DistinctLimit int `mapstructure:"distinct_limit"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPartialConcurrency, 4)
	v.SetDefault(KeyFinalConcurrency, 4)
	v.SetDefault(KeyDistinctLimit, 0)
	v.SetDefault(KeyLogLevel, "info")
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration file at path (any format viper understands, chosen by extension) on top
// of the defaults, then applies environment overrides. An empty path only applies the environment.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Annotatef(err, "read config %s", path)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Aggregation.PartialConcurrency < 1 {
		return errors.Errorf("%s must be positive, got %d", KeyPartialConcurrency, c.Aggregation.PartialConcurrency)
	}
	if c.Aggregation.FinalConcurrency < 1 {
		return errors.Errorf("%s must be positive, got %d", KeyFinalConcurrency, c.Aggregation.FinalConcurrency)
	}
	if c.Aggregation.DistinctLimit < 0 {
		return errors.Errorf("%s must not be negative, got %d", KeyDistinctLimit, c.Aggregation.DistinctLimit)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Annotatef(err, "%s", KeyLogLevel)
	}
	return nil
}

// NewLogger builds a production zap logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Trace(err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	return logger, errors.Trace(err)
}

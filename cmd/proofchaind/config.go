package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/logging"
	"github.com/ahwlsqja/proofchain/types"
)

// appConfig is assembled from defaults, an optional config file, PROOFCHAIN_* env vars and flags.
type appConfig struct {
	Log       logging.Config    `mapstructure:"log"`
	SinkDir   string            `mapstructure:"sink_dir"`
	Algorithm string            `mapstructure:"algorithm"`
	Params    map[string]string `mapstructure:"params"`

	GRPCAddr         string `mapstructure:"grpc_addr"`
	MetricsAddr      string `mapstructure:"metrics_addr"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
	v.SetDefault("log.compress", logDefaults.Compress)

	v.SetDefault("sink_dir", "")
	v.SetDefault("algorithm", consensus.DefaultKind().Key())
	v.SetDefault("params", map[string]string{})
	v.SetDefault("grpc_addr", ":26657")
	v.SetDefault("metrics_addr", ":26660")
	v.SetDefault("metrics_namespace", "proofchain")
}

// loadConfig reads the configuration. flags may hold any subset of the bound flags.
func loadConfig(v *viper.Viper, configFile string, flags *pflag.FlagSet) (*appConfig, error) {
	setDefaults(v)

	v.SetEnvPrefix("PROOFCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"log.file":     "log-file",
		"sink_dir":     "sink-dir",
		"algorithm":    "algorithm",
		"params":       "param",
		"grpc_addr":    "grpc-addr",
		"metrics_addr": "metrics-addr",
	}
	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	cfg := &appConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// kind resolves the configured algorithm.
func (c *appConfig) kind() (consensus.Kind, error) {
	return consensus.ParseKind(c.Algorithm, types.Params(c.Params))
}

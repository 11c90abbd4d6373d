package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-poker/globals"
)

const (
	defaultHistorySize = 20
)

// Config is the global configuration object which is filled via the configuration file
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	LogLevel          string            `mapstructure:"log_level"`
	AllowedOrigins    []string          `mapstructure:"allowed_origins"`
	AllowEmptyReveal  bool              `mapstructure:"allow_empty_reveal"`
}

// HistoryConfig configures the number of completed rounds that are kept
// in memory per room in a ring buffer.
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "sqlite", "postgres" or "buntdb", the DSN is passed to the selected
// driver. An empty type disables persistence.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.Bool("allow-empty-reveal", false, "allow revealing a round without any votes")
	flagSet.StringSlice("allowed-origins", nil, "origins allowed to open the event channel (empty: allow all)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("history.history_size", defaultHistorySize)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSPOKER")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}
	if cfg.HistoryConfig.HistorySize <= 0 {
		cfg.HistoryConfig.HistorySize = defaultHistorySize
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}

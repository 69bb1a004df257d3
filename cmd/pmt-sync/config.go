package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/commandgrid/pmt/internal/offline"
)

// syncConfig is the resolved client configuration.
type syncConfig struct {
	APIURL           string        `mapstructure:"api_url"`
	Token            string        `mapstructure:"token"`
	QueueFile        string        `mapstructure:"queue_file"`
	Language         string        `mapstructure:"language"`
	TranslationsFile string        `mapstructure:"translations_file"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	LogLevel         string        `mapstructure:"log_level"`
}

// loadConfig merges defaults, the optional YAML file, PMT_SYNC_* variables
// and flags, in increasing precedence.
func loadConfig(configFile string, cmd *cobra.Command) (*syncConfig, error) {
	v := viper.New()

	dataDir := defaultDataDir()
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("queue_file", filepath.Join(dataDir, "queue.json"))
	v.SetDefault("language", offline.DefaultLanguage)
	v.SetDefault("translations_file", filepath.Join(dataDir, "translations.yaml"))
	v.SetDefault("check_interval", offline.DefaultCheckInterval)
	v.SetDefault("log_level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".pmt-sync")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("PMT_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"api_url":           "api-url",
		"token":             "token",
		"queue_file":        "queue-file",
		"language":          "language",
		"translations_file": "translations-file",
		"check_interval":    "check-interval",
		"log_level":         "log-level",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	var cfg syncConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api_url must be set")
	}
	return &cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pmt-sync")
	}
	return ".pmt-sync"
}

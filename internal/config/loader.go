package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load decodes the merged viper state (defaults, config file, environment)
// into a typed Config. Safe to call multiple times, e.g. on SIGHUP reload.
func Load() (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "./iocgate.db"
	}

	if err := cfg.Quota.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate rejects non-positive quota ceilings.
func (q QuotaConfig) Validate() error {
	if q.PerClientDaily <= 0 {
		return fmt.Errorf("quota.per_client_daily must be positive, got %d", q.PerClientDaily)
	}
	if q.GlobalDaily <= 0 {
		return fmt.Errorf("quota.global_daily must be positive, got %d", q.GlobalDaily)
	}
	if q.GlobalMonthly <= 0 {
		return fmt.Errorf("quota.global_monthly must be positive, got %d", q.GlobalMonthly)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

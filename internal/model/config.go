package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EngineConfig holds recommendation engine tuning.
type EngineConfig struct {
	// MinIntervalSec is the minimum spacing between generation cycles.
	MinIntervalSec int `mapstructure:"min_interval_sec" yaml:"min_interval_sec" validate:"min=0"`
}

// StoreConfig selects and locates the recommendation persister.
type StoreConfig struct {
	// Driver is "sqlite" or "file".
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite file"`

	// Path is the SQLite database file or the JSON state directory.
	Path string `mapstructure:"path" yaml:"path" validate:"required"`

	// Key is the fixed storage identifier of the recommendation list.
	Key string `mapstructure:"key" yaml:"key" validate:"required"`
}

// CropsConfig locates the crop registry file.
type CropsConfig struct {
	Path  string `mapstructure:"path" yaml:"path" validate:"required"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// AlertsConfig tunes the alert feed.
type AlertsConfig struct {
	PollIntervalSec int   `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"min=1"`
	Seed            int64 `mapstructure:"seed" yaml:"seed"`
}

// WeatherConfig selects and tunes the weather provider.
type WeatherConfig struct {
	// Provider is "simulated" or "open-meteo".
	Provider        string  `mapstructure:"provider" yaml:"provider" validate:"oneof=simulated open-meteo"`
	PollIntervalSec int     `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"min=1"`
	Latitude        float64 `mapstructure:"latitude" yaml:"latitude" validate:"min=-90,max=90"`
	Longitude       float64 `mapstructure:"longitude" yaml:"longitude" validate:"min=-180,max=180"`
	Location        string  `mapstructure:"location" yaml:"location"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Seed            int64   `mapstructure:"seed" yaml:"seed"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	File   string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Crops   CropsConfig   `mapstructure:"crops" yaml:"crops"`
	Alerts  AlertsConfig  `mapstructure:"alerts" yaml:"alerts"`
	Weather WeatherConfig `mapstructure:"weather" yaml:"weather"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// envPrefix namespaces environment overrides, e.g. CLIMALERT_ENGINE_MIN_INTERVAL_SEC.
const envPrefix = "CLIMALERT"

// configDir returns ~/.config/climalert, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "climalert")
}

// stateDir returns ~/.local/state/climalert, falling back to the working directory.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "climalert")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/climalert/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Engine: EngineConfig{MinIntervalSec: 30},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(stateDir(), "climalert.db"),
			Key:    "recommendations",
		},
		Crops: CropsConfig{
			Path:  filepath.Join(configDir(), "crops.yaml"),
			Watch: true,
		},
		Alerts: AlertsConfig{PollIntervalSec: 300},
		Weather: WeatherConfig{
			Provider:        "simulated",
			PollIntervalSec: 900,
			Latitude:        -12.7826,
			Longitude:       -74.9727,
			Location:        "Huancavelica Centro",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(stateDir(), "climalert.log"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into viper so missing keys resolve
// and environment overrides are discoverable by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("engine.min_interval_sec", d.Engine.MinIntervalSec)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.key", d.Store.Key)
	v.SetDefault("crops.path", d.Crops.Path)
	v.SetDefault("crops.watch", d.Crops.Watch)
	v.SetDefault("alerts.poll_interval_sec", d.Alerts.PollIntervalSec)
	v.SetDefault("alerts.seed", d.Alerts.Seed)
	v.SetDefault("weather.provider", d.Weather.Provider)
	v.SetDefault("weather.poll_interval_sec", d.Weather.PollIntervalSec)
	v.SetDefault("weather.latitude", d.Weather.Latitude)
	v.SetDefault("weather.longitude", d.Weather.Longitude)
	v.SetDefault("weather.location", d.Weather.Location)
	v.SetDefault("weather.base_url", d.Weather.BaseURL)
	v.SetDefault("weather.seed", d.Weather.Seed)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first; CLIMALERT_* variables
// override file values. If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// loadDotEnv sets variables from the dotenv file at path. A missing file
// is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints declared in struct tags.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("engine", cfg.Engine)
	v.Set("store", cfg.Store)
	v.Set("crops", cfg.Crops)
	v.Set("alerts", cfg.Alerts)
	v.Set("weather", cfg.Weather)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Package config loads the suite settings from .env files, OEB_ environment
// variables and an optional YAML file, in increasing precedence of the latter
// two over the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"oeb_automation/infrastructure/browser"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the suite reads
const EnvPrefix = "OEB"

// Config holds the settings of one automation run
type Config struct {
	// URL is the frontend under test
	URL string `mapstructure:"url"`
	// BackendURL is the REST API used for fixtures
	BackendURL string `mapstructure:"backend_url"`

	// DefaultWait bounds ordinary conditions, ExtendedWait slow ones such as
	// REST calls and PDF exports
	DefaultWait  time.Duration `mapstructure:"default_wait"`
	ExtendedWait time.Duration `mapstructure:"extended_wait"`

	Backend      string `mapstructure:"backend"`
	Headless     bool   `mapstructure:"headless"`
	DriverPath   string `mapstructure:"driver_path"`
	StorageState string `mapstructure:"storage_state"`

	DownloadDir     string        `mapstructure:"download_dir"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PartialSuffixes []string      `mapstructure:"partial_suffixes"`

	StaleAttempts int `mapstructure:"stale_attempts"`

	ScreenshotDir string `mapstructure:"screenshot_dir"`
	Pdftoppm      string `mapstructure:"pdftoppm"`

	LogLevel string `mapstructure:"log_level"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "https://develop.openbadges.education")
	v.SetDefault("backend_url", "https://api.develop.openbadges.education")
	v.SetDefault("default_wait", 12*time.Second)
	v.SetDefault("extended_wait", 25*time.Second)
	v.SetDefault("backend", browser.BackendPlaywright)
	v.SetDefault("headless", true)
	v.SetDefault("driver_path", "")
	v.SetDefault("storage_state", "")
	v.SetDefault("download_dir", "/tmp")
	v.SetDefault("poll_interval", 100*time.Millisecond)
	v.SetDefault("partial_suffixes", []string{".crdownload", ".part", ".download"})
	v.SetDefault("stale_attempts", 5)
	v.SetDefault("screenshot_dir", "screenshots")
	v.SetDefault("pdftoppm", "pdftoppm")
	v.SetDefault("log_level", "info")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
}

// Load - reads the configuration. envFiles are loaded into the process
// environment first (".env" when none are given, missing files are
// ignored), configFile is optional.
func Load(configFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate - rejects settings no component can work with
func (c *Config) Validate() error {
	switch c.Backend {
	case browser.BackendPlaywright, browser.BackendSelenium, browser.BackendRod, browser.BackendChromedp:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.DefaultWait <= 0 || c.ExtendedWait <= 0 {
		return fmt.Errorf("waits must be positive, got %s and %s", c.DefaultWait, c.ExtendedWait)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.StaleAttempts < 1 {
		return fmt.Errorf("stale attempts must be at least 1, got %d", c.StaleAttempts)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level, info for unparsable values
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// BrowserOptions maps the configuration onto session options
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Backend:           c.Backend,
		Headless:          c.Headless,
		DownloadDir:       c.DownloadDir,
		StorageState:      c.StorageState,
		DriverPath:        c.DriverPath,
		NavigationTimeout: c.ExtendedWait,
	}
}

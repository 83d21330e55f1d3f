// Package config loads cataspark settings from defaults, an optional YAML
// file, an optional .env file, and CATASPARK_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultNetconfPort   = 830
	DefaultSSHPort       = 22
	DefaultPollInterval  = 5 * time.Second
	DefaultASN           = "100"
	DefaultWebexBaseURL  = "https://webexapis.com/v1"
	DefaultDropboxDir    = "/cataspark/"
	DefaultDeviceTimeout = 30 * time.Second
	DefaultHTTPTimeout   = 30 * time.Second
)

// Config is the complete runtime configuration.
type Config struct {
	Device      DeviceConfig  `yaml:"device"`
	Webex       WebexConfig   `yaml:"webex"`
	Dropbox     DropboxConfig `yaml:"dropbox"`
	Bot         BotConfig     `yaml:"bot"`
	Logging     LoggingConfig `yaml:"logging"`
	MetricsAddr string        `yaml:"metrics_addr"`

	// Where the settings came from; used by the watcher.
	ConfigPath string `yaml:"-"`
	EnvPath    string `yaml:"-"`
}

// DeviceConfig describes the single managed switch.
type DeviceConfig struct {
	Host           string        `yaml:"host"`
	NetconfPort    int           `yaml:"netconf_port"`
	SSHPort        int           `yaml:"ssh_port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KnownHostsPath string        `yaml:"known_hosts"`
	Timeout        time.Duration `yaml:"timeout"`
	// ShellTimeout bounds each prompt wait in the interactive shell.
	// Zero keeps the expect library default.
	ShellTimeout time.Duration `yaml:"shell_timeout"`
}

// WebexConfig holds the two chat identities and the room they share. The
// user token reads the room; the bot token posts to it.
type WebexConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Room               string        `yaml:"room"`
	UserToken          string        `yaml:"user_token"`
	BotToken           string        `yaml:"bot_token"`
	Fingerprint        string        `yaml:"fingerprint"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// DropboxConfig configures diagram uploads.
type DropboxConfig struct {
	Token  string `yaml:"token"`
	Prefix string `yaml:"prefix"`
}

// BotConfig tunes the poll loop and its commands.
type BotConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ASN          string        `yaml:"asn"`
	GraphDir     string        `yaml:"graph_dir"`
	DotPath      string        `yaml:"dot_path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			NetconfPort: DefaultNetconfPort,
			SSHPort:     DefaultSSHPort,
			Timeout:     DefaultDeviceTimeout,
		},
		Webex: WebexConfig{
			BaseURL: DefaultWebexBaseURL,
			Timeout: DefaultHTTPTimeout,
		},
		Dropbox: DropboxConfig{Prefix: DefaultDropboxDir},
		Bot: BotConfig{
			PollInterval: DefaultPollInterval,
			ASN:          DefaultASN,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the configuration. configPath and envPath may be empty or name
// files that do not exist; both are then skipped. An empty envPath defaults
// to ".env" next to configPath, or in the working directory.
func Load(configPath, envPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
			cfg.ConfigPath = configPath
			log.Debug().Str("config_file", configPath).Msg("Loaded configuration from file")
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("config_file", configPath).Msg("Config file not found; using defaults")
		default:
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	if envPath == "" {
		envPath = ".env"
		if configPath != "" {
			envPath = filepath.Join(filepath.Dir(configPath), ".env")
		}
	}
	cfg.EnvPath = envPath

	// godotenv.Read keeps .env values out of the process environment.
	dotenv, err := godotenv.Read(envPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", envPath, err)
		}
		dotenv = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Device.NetconfPort <= 0 {
		c.Device.NetconfPort = DefaultNetconfPort
	}
	if c.Device.SSHPort <= 0 {
		c.Device.SSHPort = DefaultSSHPort
	}
	if c.Bot.PollInterval <= 0 {
		c.Bot.PollInterval = DefaultPollInterval
	}
	if strings.TrimSpace(c.Bot.ASN) == "" {
		c.Bot.ASN = DefaultASN
	}
	if c.Webex.BaseURL == "" {
		c.Webex.BaseURL = DefaultWebexBaseURL
	}
	if c.Dropbox.Prefix == "" {
		c.Dropbox.Prefix = DefaultDropboxDir
	}
}

// Validate reports every missing setting the poll loop needs.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(c.Device.Host, "device.host")
	require(c.Device.Username, "device.username")
	require(c.Webex.Room, "webex.room")
	require(c.Webex.UserToken, "webex.user_token")
	require(c.Webex.BotToken, "webex.bot_token")
	require(c.Dropbox.Token, "dropbox.token")

	if c.Device.NetconfPort > 65535 || c.Device.SSHPort > 65535 {
		errs = append(errs, fmt.Errorf("device ports must be at most 65535"))
	}
	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("logging.max_size_mb must not be negative"))
	}
	return errors.Join(errs...)
}

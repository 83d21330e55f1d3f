package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATASPARK_"

type lookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

func str(target func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*target(cfg) = v
		return nil
	}
}

func integer(target func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target(cfg) = n
		return nil
	}
}

func duration(target func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			// Bare numbers are seconds.
			secs, nerr := strconv.Atoi(v)
			if nerr != nil {
				return err
			}
			d = time.Duration(secs) * time.Second
		}
		*target(cfg) = d
		return nil
	}
}

func boolean(target func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*target(cfg) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"DEVICE_HOST", str(func(c *Config) *string { return &c.Device.Host })},
	{"DEVICE_USERNAME", str(func(c *Config) *string { return &c.Device.Username })},
	{"DEVICE_PASSWORD", str(func(c *Config) *string { return &c.Device.Password })},
	{"NETCONF_PORT", integer(func(c *Config) *int { return &c.Device.NetconfPort })},
	{"SSH_PORT", integer(func(c *Config) *int { return &c.Device.SSHPort })},
	{"KNOWN_HOSTS", str(func(c *Config) *string { return &c.Device.KnownHostsPath })},
	{"DEVICE_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Device.Timeout })},
	{"SHELL_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Device.ShellTimeout })},

	{"WEBEX_BASE_URL", str(func(c *Config) *string { return &c.Webex.BaseURL })},
	{"WEBEX_ROOM", str(func(c *Config) *string { return &c.Webex.Room })},
	{"WEBEX_USER_TOKEN", str(func(c *Config) *string { return &c.Webex.UserToken })},
	{"WEBEX_BOT_TOKEN", str(func(c *Config) *string { return &c.Webex.BotToken })},
	{"WEBEX_FINGERPRINT", str(func(c *Config) *string { return &c.Webex.Fingerprint })},
	{"WEBEX_INSECURE_SKIP_VERIFY", boolean(func(c *Config) *bool { return &c.Webex.InsecureSkipVerify })},
	{"WEBEX_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Webex.Timeout })},

	{"DROPBOX_TOKEN", str(func(c *Config) *string { return &c.Dropbox.Token })},
	{"DROPBOX_PREFIX", str(func(c *Config) *string { return &c.Dropbox.Prefix })},

	{"POLL_INTERVAL", duration(func(c *Config) *time.Duration { return &c.Bot.PollInterval })},
	{"BGP_ASN", str(func(c *Config) *string { return &c.Bot.ASN })},
	{"GRAPH_DIR", str(func(c *Config) *string { return &c.Bot.GraphDir })},
	{"DOT_PATH", str(func(c *Config) *string { return &c.Bot.DotPath })},

	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.Logging.File })},
	{"LOG_MAX_SIZE_MB", integer(func(c *Config) *int { return &c.Logging.MaxSizeMB })},

	{"METRICS_ADDR", str(func(c *Config) *string { return &c.MetricsAddr })},
}

// applyEnv overrides cfg with every CATASPARK_* value lookup finds. Values are
// trimmed of whitespace and surrounding quotes.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	for _, b := range envBindings {
		key := EnvPrefix + b.key
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		value := strings.Trim(strings.TrimSpace(raw), `'"`)
		if err := b.apply(cfg, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Package config loads smtp-send settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shineum/smtp-send-lite/sendmail"
)

const defaultTimeout = 30 * time.Second

// Transport names accepted in the transport setting.
const (
	TransportSMTP   = "smtp"
	TransportSES    = "ses"
	TransportGraph  = "graph"
	TransportStdout = "stdout"
)

// Config holds the complete CLI configuration.
type Config struct {
	Sender    SenderConfig  `yaml:"sender"`
	Transport string        `yaml:"transport"`
	TLS       TLSConfig     `yaml:"tls"`
	SES       SESConfig     `yaml:"ses"`
	Graph     GraphConfig   `yaml:"graph"`
	Logging   LoggingConfig `yaml:"logging"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SenderConfig describes the account messages are sent from.
type SenderConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	From         string `yaml:"from"`
	DisplayName  string `yaml:"display_name"`
	ReplyTo      string `yaml:"reply_to"`
	Provider     string `yaml:"provider"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
}

// TLSConfig controls STARTTLS verification.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SESConfig holds AWS SES v2 configuration.
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	cfg.finalize()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// file does not exist or does not parse.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvVars()
	cfg.finalize()

	return cfg, nil
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// SenderProvider resolves the provider name and host into a sendmail.Provider.
func (c *Config) SenderProvider() (sendmail.Provider, error) {
	return sendmail.ParseProvider(c.Sender.Provider, c.Sender.Host)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Sender.Username == "" {
		errs = append(errs, errors.New("sender.username is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	switch c.Transport {
	case TransportSMTP:
		if c.Sender.Password == "" && c.Sender.PasswordFile == "" {
			errs = append(errs, errors.New("smtp transport requires sender.password or sender.password_file"))
		}
		if c.Sender.Password != "" && c.Sender.PasswordFile != "" {
			errs = append(errs, errors.New("sender.password and sender.password_file are mutually exclusive"))
		}
		if _, err := c.SenderProvider(); err != nil {
			errs = append(errs, err)
		}
		if c.Sender.Port < 1 || c.Sender.Port > 65535 {
			errs = append(errs, fmt.Errorf("sender.port out of range: %d", c.Sender.Port))
		}
	case TransportGraph:
		if !c.GraphConfigured() {
			errs = append(errs, errors.New("graph transport requires tenant_id, client_id and client_secret"))
		}
	case TransportSES, TransportStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}

	return errors.Join(errs...)
}

// applyDefaults sets default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Transport = TransportSMTP
	c.Sender.Port = sendmail.DefaultPort
	c.Logging.Level = "info"
	c.Timeout = defaultTimeout
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; values
// that do not parse are ignored.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("SENDER_USERNAME"); v != "" {
		c.Sender.Username = v
	}
	if v := os.Getenv("SENDER_PASSWORD"); v != "" {
		c.Sender.Password = v
	}
	if v := os.Getenv("SENDER_PASSWORD_FILE"); v != "" {
		c.Sender.PasswordFile = v
	}
	if v := os.Getenv("SENDER_FROM"); v != "" {
		c.Sender.From = v
	}
	if v := os.Getenv("SENDER_NAME"); v != "" {
		c.Sender.DisplayName = v
	}
	if v := os.Getenv("SENDER_REPLY_TO"); v != "" {
		c.Sender.ReplyTo = v
	}
	if v := os.Getenv("SMTP_PROVIDER"); v != "" {
		c.Sender.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Sender.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Sender.Port = port
		}
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Transport = strings.ToLower(v)
	}

	if v := os.Getenv("TLS_CA_FILE"); v != "" {
		c.TLS.CAFile = v
	}
	if v := os.Getenv("TLS_SERVER_NAME"); v != "" {
		c.TLS.ServerName = v
	}
	if v := os.Getenv("TLS_INSECURE_SKIP_VERIFY"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.TLS.InsecureSkipVerify = skip
		}
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_CONFIGURATION_SET"); v != "" {
		c.SES.ConfigurationSet = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
}

// finalize fills values derived from other settings.
func (c *Config) finalize() {
	c.Transport = strings.ToLower(c.Transport)
	if c.Sender.ReplyTo == "" {
		c.Sender.ReplyTo = c.Sender.Username
		if c.Sender.From != "" {
			c.Sender.ReplyTo = c.Sender.From
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration
type Config struct {
	System  SystemConfig     `yaml:"System"`
	Syslog  SyslogConfig     `yaml:"Syslog"`
	Outputs []map[string]any `yaml:"Outputs"`
}

// SystemConfig holds agent wide settings
type SystemConfig struct {
	LogLevel      string        `yaml:"logLevel"`
	LogFile       string        `yaml:"logFile"`
	LogMaxSizeMB  int           `yaml:"logMaxSizeMB"`
	LogMaxBackups int           `yaml:"logMaxBackups"`
	DBFile        string        `yaml:"dbFile"`
	StatsInterval time.Duration `yaml:"statsInterval"`
}

// SyslogConfig is the file based alternative to the registry values.
type SyslogConfig struct {
	Host string `yaml:"Host"`
	Port string `yaml:"Port"`
}

func (c *SystemConfig) GetLogLevel() logrus.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "TRACE":
		return logrus.TraceLevel
	case "DEBUG":
		return logrus.DebugLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		// Default LogLevel Info
		return logrus.InfoLevel
	}
}

// Store returns the Syslog section as a value store.
func (c *SyslogConfig) Store() MapStore {
	store := MapStore{}
	if c.Host != "" {
		store[ValueSyslogHost] = c.Host
	}
	if c.Port != "" {
		store[ValueSyslogPort] = c.Port
	}
	return store
}

// Load reads the YAML config file at path. A missing file yields the
// defaults, environment variables are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithField("path", path).Debug("No config file found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

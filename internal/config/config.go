// Package config loads the settings of the command line tool.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sphero "github.com/basilfx/go-sphero"
	"github.com/spf13/viper"
)

// PortConfig selects the serial port of the device.
type PortConfig struct {
	Path     string `mapstructure:"path"`
	BaudRate int    `mapstructure:"baudRate"`
}

// RequestConfig bounds how long a command waits for its reply.
type RequestConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig exposes Prometheus metrics over HTTP when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the top level configuration.
type Config struct {
	Port    PortConfig    `mapstructure:"port"`
	Request RequestConfig `mapstructure:"request"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads the configuration from the given file, if any, and from
// environment variables prefixed with SPHERO_. A missing file is not an
// error when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sphero")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("SPHERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port.path", "/dev/tty.Sphero")
	v.SetDefault("port.baudRate", 115200)
	v.SetDefault("request.timeout", sphero.DefaultRequestTimeout)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
}

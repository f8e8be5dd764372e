package config

import (
	"fmt"
	"time"

	"garo-monitor/internal/auth"
	"garo-monitor/internal/garo"

	"github.com/spf13/viper"
)

type Config struct {
	Auth     AuthConfig     `mapstructure:"auth"`
	API      APIConfig      `mapstructure:"api"`
	Poller   PollerConfig   `mapstructure:"poller"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Region   string `mapstructure:"region"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Discovery   bool   `mapstructure:"discovery"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

// MinPollInterval protects the vendor API's per-account rate budget.
const MinPollInterval = 5 * time.Minute

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/garo-monitor")
	}

	viper.SetDefault("auth.client_id", auth.DefaultClientID)
	viper.SetDefault("auth.region", auth.DefaultRegion)
	viper.SetDefault("api.base_url", garo.DefaultBaseURL)
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("poller.interval", "15m")
	viper.SetDefault("poller.enabled", true)
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic_prefix", "garo")
	viper.SetDefault("mqtt.client_id", "garo-monitor")
	viper.SetDefault("mqtt.discovery", true)
	viper.SetDefault("database.path", "./garo.db")
	viper.SetDefault("server.port", 8046)
	viper.SetDefault("server.enabled", true)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("auth.username and auth.password are required")
	}
	if c.Poller.Interval < MinPollInterval {
		return fmt.Errorf("poller.interval %s is below the minimum of %s", c.Poller.Interval, MinPollInterval)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

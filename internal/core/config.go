package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the port the server listens on and the client connects to when
// nothing else has been configured.
const DefaultPort = 5555

// Config contains all of the configuration options available to the chat server
// and client.
type Config struct {
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`

	Server struct {
		// Hostname or IP address on which the server will listen for connections.
		Hostname string `mapstructure:"hostname"`
		// Port on which the line-oriented TCP frontend listens.
		Port int `mapstructure:"port"`
		// Port for the WebSocket frontend. Zero disables it.
		WebSocketPort int `mapstructure:"websocket_port"`
		// Number of outbound messages buffered per connection before new ones are dropped.
		QueueSize int `mapstructure:"queue_size"`
		// Upper bound on a single write to a client.
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		// How long the server remembers when an identity was last seen.
		SeenTTL time.Duration `mapstructure:"seen_ttl"`
	} `mapstructure:"server"`

	Metrics struct {
		// Port on which /metrics is served. Zero disables it.
		Port int `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Client struct {
		// Host of the chat server to connect to.
		Host string `mapstructure:"host"`
		// Port of the chat server to connect to.
		Port int `mapstructure:"port"`
		// Upper bound on a single write to the server.
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"client"`
}

const envVarPrefix = "CHAT"

// NewViper returns a viper instance with every default registered and the
// environment bound, ready for flags and a config file to be layered on.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file_path", "")
	v.SetDefault("server.hostname", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.websocket_port", 0)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.seen_ttl", time.Hour)
	v.SetDefault("metrics.port", 0)
	v.SetDefault("client.host", "localhost")
	v.SetDefault("client.port", DefaultPort)
	v.SetDefault("client.write_timeout", 10*time.Second)

	v.SetEnvPrefix(envVarPrefix)
	// This allows nested options to be set through environment variables. For
	// example, server.port can be set using: CHAT_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads config.yaml from configPath (if there is one) into v and
// unmarshals the result. A missing config file is not an error.
func LoadConfig(v *viper.Viper, configPath string) (*Config, error) {
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

// ParsePort converts s into a port number, rejecting anything that isn't an
// integer in the range [0, 65535].
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: out of range", port)
	}
	return port, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".aiodb"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "AIODB"
)

// Runtime defaults.
const (
	DefaultPoolSize  = 64
	DefaultPageSize  = 500
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Load reads the configuration from path, or from ~/.aiodb/config.yaml when
// path is empty. A missing file yields the defaults. AIODB_RUNTIME_* variables
// override the runtime section.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i := range cfg.Connections {
		if cfg.Connections[i].Port == 0 {
			cfg.Connections[i].Port = cfg.Connections[i].DefaultPort()
		}
	}

	return cfg, nil
}

// Save writes the configuration to path, or to ~/.aiodb/config.yaml when
// path is empty. Passwords are never written.
func Save(path string, cfg *Config) error {
	if path == "" {
		dir, err := configDirPath()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("connections", connectionMaps(cfg.Connections))
	v.Set("preferences", map[string]any{
		"theme":              cfg.Preferences.Theme,
		"default_connection": cfg.Preferences.DefaultConnection,
	})
	v.Set("runtime", map[string]any{
		"pool_size":    cfg.Runtime.PoolSize,
		"page_size":    cfg.Runtime.PageSize,
		"log_level":    cfg.Runtime.LogLevel,
		"log_format":   cfg.Runtime.LogFormat,
		"log_file":     cfg.Runtime.LogFile,
		"metrics_addr": cfg.Runtime.MetricsAddr,
	})

	return v.WriteConfigAs(path)
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		for i := range cfg.Connections {
			if cfg.Connections[i].Name == cfg.Preferences.DefaultConnection {
				return &cfg.Connections[i]
			}
		}
	}

	return &cfg.Connections[0]
}

// DefaultLogFile returns ~/.aiodb/aiodb.log.
func DefaultLogFile() string {
	dir, err := configDirPath()
	if err != nil {
		return filepath.Join(os.TempDir(), "aiodb.log")
	}
	return filepath.Join(dir, "aiodb.log")
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := configDirPath()
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		v.SetConfigName(configFile)
		v.AddConfigPath(dir)
	}

	// Defaults
	v.SetDefault("preferences.theme", "default")
	v.SetDefault("runtime.pool_size", DefaultPoolSize)
	v.SetDefault("runtime.page_size", DefaultPageSize)
	v.SetDefault("runtime.log_level", DefaultLogLevel)
	v.SetDefault("runtime.log_format", DefaultLogFormat)
	v.SetDefault("runtime.log_file", "")
	v.SetDefault("runtime.metrics_addr", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func connectionMaps(conns []Connection) []map[string]any {
	out := make([]map[string]any, 0, len(conns))
	for _, c := range conns {
		m := map[string]any{
			"name":     c.Name,
			"driver":   c.Driver,
			"hosts":    c.Hosts,
			"port":     c.Port,
			"database": c.Database,
			"username": c.Username,
		}
		if c.SSLMode != "" {
			m["sslmode"] = c.SSLMode
		}
		if c.Consistency != "" {
			m["consistency"] = c.Consistency
		}
		out = append(out, m)
	}
	return out
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Supported driver names.
const (
	DriverPostgres  = "postgres"
	DriverCassandra = "cassandra"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
	Runtime     Runtime      `mapstructure:"runtime" yaml:"runtime"`
}

// Connection represents a saved connection profile.
type Connection struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Driver      string   `mapstructure:"driver" yaml:"driver"`
	Hosts       []string `mapstructure:"hosts" yaml:"hosts"`
	Port        int      `mapstructure:"port" yaml:"port"`
	Database    string   `mapstructure:"database" yaml:"database"` // keyspace for cassandra
	Username    string   `mapstructure:"username" yaml:"username"`
	Password    string   `mapstructure:"-" yaml:"-"`               // kept in the OS keyring
	SSLMode     string   `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
	Consistency string   `mapstructure:"consistency" yaml:"consistency,omitempty"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
}

// Runtime tunes the loop, the worker pool and logging.
type Runtime struct {
	PoolSize    int    `mapstructure:"pool_size" yaml:"pool_size"`
	PageSize    int    `mapstructure:"page_size" yaml:"page_size"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
}

// DefaultPort returns the conventional port of the connection's driver.
func (c Connection) DefaultPort() int {
	if c.Driver == DriverCassandra {
		return 9042
	}
	return 5432
}

// Host returns the first configured host.
func (c Connection) Host() string {
	if len(c.Hosts) == 0 {
		return ""
	}
	return c.Hosts[0]
}

// DSN builds a connection URL from the profile.
func (c Connection) DSN() string {
	scheme := "postgresql"
	if c.Driver == DriverCassandra {
		scheme = "cassandra"
	}

	var b strings.Builder
	b.WriteString(scheme + "://")
	if c.Username != "" {
		b.WriteString(url.PathEscape(c.Username))
		if c.Password != "" {
			b.WriteString(":" + url.PathEscape(c.Password))
		}
		b.WriteString("@")
	}
	hosts := make([]string, len(c.Hosts))
	for i, h := range c.Hosts {
		hosts[i] = h
		if c.Port > 0 && !strings.Contains(h, ":") {
			hosts[i] += ":" + strconv.Itoa(c.Port)
		}
	}
	b.WriteString(strings.Join(hosts, ","))
	b.WriteString("/" + c.Database)

	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.Consistency != "" {
		q.Set("consistency", c.Consistency)
	}
	if len(q) > 0 {
		b.WriteString("?" + q.Encode())
	}
	return b.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := strings.Join(c.Hosts, ",")
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return c.Driver + " " + s
}

// ParseDSN parses a postgresql:// or cassandra:// URL into a Connection.
// Cassandra URLs may list several comma-separated hosts.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}

	var conn Connection
	switch u.Scheme {
	case "postgres", "postgresql":
		conn.Driver = DriverPostgres
	case "cassandra", "cql":
		conn.Driver = DriverCassandra
	default:
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn.Database = strings.TrimPrefix(u.Path, "/")
	conn.SSLMode = u.Query().Get("sslmode")
	conn.Consistency = u.Query().Get("consistency")

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	for _, hp := range strings.Split(u.Host, ",") {
		if hp == "" {
			continue
		}
		host, port := splitHostPort(hp)
		conn.Hosts = append(conn.Hosts, host)
		if port != 0 && conn.Port == 0 {
			conn.Port = port
		}
	}
	if len(conn.Hosts) == 0 {
		return Connection{}, fmt.Errorf("invalid DSN: no host")
	}
	if conn.Port == 0 {
		conn.Port = conn.DefaultPort()
	}

	// Auto-generate a name
	conn.Name = fmt.Sprintf("%s-%s-%d-%s", conn.Driver, conn.Host(), conn.Port, conn.Database)

	return conn, nil
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	for _, c := range cfg.Connections {
		if c.Name == name {
			return true
		}
	}
	return false
}

// AddConnection appends a connection if it doesn't already exist.
func (cfg *Config) AddConnection(conn Connection) {
	if !cfg.HasConnection(conn.Name) {
		cfg.Connections = append(cfg.Connections, conn)
	}
}

func splitHostPort(hp string) (string, int) {
	i := strings.LastIndex(hp, ":")
	if i < 0 || strings.HasSuffix(hp, "]") {
		return hp, 0
	}
	port, err := strconv.Atoi(hp[i+1:])
	if err != nil {
		return hp, 0
	}
	return hp[:i], port
}

// Package imapconfig loads account and connection settings from a YAML (or
// JSON/TOML) file via viper, turning them into the Options structs the
// imapclient, imappool and imapidle packages expect. Credentials (password,
// OAuth2 token) are deliberately not modeled here; callers plug those in
// after loading, the same way the imapclient.Dialer is plugged in after
// imapproxy builds one.
package imapconfig

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/hkdb/imapkit/imapclient"
	"github.com/hkdb/imapkit/imapclient/imapidle"
	"github.com/hkdb/imapkit/imapclient/imappool"
)

// AccountConfig describes one IMAP account's connection settings.
type AccountConfig struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects how the initial connection is secured: "tls" (implicit,
	// the default), "starttls", or "none".
	TLS string `mapstructure:"tls" yaml:"tls"`

	ConnectTimeoutSec  int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
	GreetingTimeoutSec int `mapstructure:"greeting_timeout_sec" yaml:"greeting_timeout_sec"`
	SocketTimeoutSec   int `mapstructure:"socket_timeout_sec" yaml:"socket_timeout_sec"`

	DisableCompress bool `mapstructure:"disable_compress" yaml:"disable_compress"`
}

// PoolConfig mirrors imappool.Config in viper-friendly form.
type PoolConfig struct {
	MaxConnections    int `mapstructure:"max_connections" yaml:"max_connections"`
	IdleTimeoutSec    int `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
	WaiterTimeoutSec  int `mapstructure:"waiter_timeout_sec" yaml:"waiter_timeout_sec"`
}

// IdleConfig mirrors imapidle.Config in viper-friendly form.
type IdleConfig struct {
	MaxWaitSec               int `mapstructure:"max_wait_sec" yaml:"max_wait_sec"`
	ReconnectBackoffSec      int `mapstructure:"reconnect_backoff_sec" yaml:"reconnect_backoff_sec"`
	MaxReconnectBackoffSec   int `mapstructure:"max_reconnect_backoff_sec" yaml:"max_reconnect_backoff_sec"`
	MaxReconnectAttempts     int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
}

// Config is the top-level file shape: one or more accounts plus shared pool
// and idle tuning.
type Config struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
	Pool     PoolConfig      `mapstructure:"pool" yaml:"pool"`
	Idle     IdleConfig      `mapstructure:"idle" yaml:"idle"`
}

// DefaultConfigPath returns ~/.config/imapkit/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "imapkit", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxConnections:    3,
			IdleTimeoutSec:    300,
			ConnectTimeoutSec: 30,
			WaiterTimeoutSec:  120,
		},
		Idle: IdleConfig{
			MaxWaitSec:             600,
			ReconnectBackoffSec:    1,
			MaxReconnectBackoffSec: 300,
			MaxReconnectAttempts:   0,
		},
	}
}

// Load reads configuration from path using viper. A missing file yields
// defaults rather than an error, matching how a first-run client should
// behave.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("pool.max_connections", 3)
	v.SetDefault("pool.idle_timeout_sec", 300)
	v.SetDefault("pool.connect_timeout_sec", 30)
	v.SetDefault("pool.waiter_timeout_sec", 120)
	v.SetDefault("idle.max_wait_sec", 600)
	v.SetDefault("idle.reconnect_backoff_sec", 1)
	v.SetDefault("idle.max_reconnect_backoff_sec", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("imapconfig: reading %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("imapconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("imapconfig: creating directory for %s: %w", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("accounts", cfg.Accounts)
	v.Set("pool", cfg.Pool)
	v.Set("idle", cfg.Idle)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("imapconfig: writing %s: %w", path, err)
	}
	return nil
}

// Account looks up one account by ID, or reports ok=false.
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// Addr formats the account's dial target as "host:port".
func (a AccountConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ClientOptions turns an AccountConfig into imapclient.Options: the address,
// the TLS mode, DisableCompress and the timeouts. The caller still supplies a
// Dialer (for proxying) and any TLS client-certificate material the
// deployment needs.
func (a AccountConfig) ClientOptions() imapclient.Options {
	opts := imapclient.Options{
		Addr:            a.Addr(),
		DisableCompress: a.DisableCompress,
	}
	// "starttls" leaves TLSConfig nil here; the caller negotiates TLS
	// itself via Client.StartTLS after Dial, once in StateNotAuthenticated.
	if a.TLS != "none" && a.TLS != "starttls" {
		opts.TLSConfig = &tls.Config{ServerName: a.Host}
	}
	if a.ConnectTimeoutSec > 0 {
		opts.ConnectTimeout = time.Duration(a.ConnectTimeoutSec) * time.Second
	}
	if a.GreetingTimeoutSec > 0 {
		opts.GreetingTimeout = time.Duration(a.GreetingTimeoutSec) * time.Second
	}
	if a.SocketTimeoutSec > 0 {
		opts.SocketTimeout = time.Duration(a.SocketTimeoutSec) * time.Second
	}
	return opts
}

// PoolOptions turns the viper-friendly PoolConfig into imappool.Config.
func (c *Config) PoolOptions() imappool.Config {
	p := c.Pool
	return imappool.Config{
		MaxConnections: p.MaxConnections,
		IdleTimeout:    time.Duration(p.IdleTimeoutSec) * time.Second,
		ConnectTimeout: time.Duration(p.ConnectTimeoutSec) * time.Second,
		WaiterTimeout:  time.Duration(p.WaiterTimeoutSec) * time.Second,
	}
}

// IdleOptions turns the viper-friendly IdleConfig into imapidle.Config.
func (c *Config) IdleOptions() imapidle.Config {
	i := c.Idle
	return imapidle.Config{
		MaxWait:              time.Duration(i.MaxWaitSec) * time.Second,
		ReconnectBackoff:     time.Duration(i.ReconnectBackoffSec) * time.Second,
		MaxReconnectBackoff:  time.Duration(i.MaxReconnectBackoffSec) * time.Second,
		MaxReconnectAttempts: i.MaxReconnectAttempts,
	}
}

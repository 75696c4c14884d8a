package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"poolhttpd/internal/logger"
)

// Duration は "10s" のような文字列で表記する時間
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config は設定ファイルの構造
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Site   SiteConfig   `yaml:"site" json:"site"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig は待ち受けとワーカープールの設定
type ServerConfig struct {
	Addr           string  `yaml:"addr" json:"addr"`
	PoolSize       int     `yaml:"pool_size" json:"pool_size"`
	MaxConnections int     `yaml:"max_connections" json:"max_connections"` // 0で無制限
	AcceptRate     float64 `yaml:"accept_rate" json:"accept_rate"`         // 毎秒の受付数。0で無制限
	ReadBuffer     int     `yaml:"read_buffer" json:"read_buffer"`
}

// SiteConfig は配信するファイルの設定
type SiteConfig struct {
	Root         string   `yaml:"root" json:"root"`
	Index        string   `yaml:"index" json:"index"`
	NotFound     string   `yaml:"not_found" json:"not_found"`
	HandlerDelay Duration `yaml:"handler_delay" json:"handler_delay"`
	Cache        bool     `yaml:"cache" json:"cache"`
}

// AdminConfig は管理APIの設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			PoolSize:   5,
			ReadBuffer: 512,
		},
		Site: SiteConfig{
			Root:     ".",
			Index:    "main.html",
			NotFound: "404.html",
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadFile は設定ファイルを読み込む。書かれていない項目はデフォルト値のまま
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if c.Server.PoolSize <= 0 {
		return fmt.Errorf("server.pool_size must be positive")
	}

	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be non-negative")
	}

	if c.Server.AcceptRate < 0 {
		return fmt.Errorf("server.accept_rate must be non-negative")
	}

	if c.Server.ReadBuffer <= 0 {
		return fmt.Errorf("server.read_buffer must be positive")
	}

	if c.Site.Index == "" || c.Site.NotFound == "" {
		return fmt.Errorf("site.index and site.not_found must not be empty")
	}

	if c.Site.HandlerDelay < 0 {
		return fmt.Errorf("site.handler_delay must be non-negative")
	}

	if c.Admin.Enabled && c.Admin.Addr == "" {
		return fmt.Errorf("admin.addr must not be empty when admin is enabled")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}

	return nil
}

// LoggerOptions はログ設定を logger.Options に変換する
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

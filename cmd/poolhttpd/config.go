package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"poolhttpd/internal/config"
)

const envPrefix = "POOLHTTPD"

// フラグ名。環境変数は POOLHTTPD_ + 大文字化して "-" を "_" にしたもの
const (
	flagConfig         = "config"
	flagAddr           = "addr"
	flagPoolSize       = "pool-size"
	flagMaxConnections = "max-connections"
	flagAcceptRate     = "accept-rate"
	flagReadBuffer     = "read-buffer"
	flagRoot           = "root"
	flagIndex          = "index"
	flagNotFound       = "not-found"
	flagHandlerDelay   = "handler-delay"
	flagCache          = "cache"
	flagAdmin          = "admin"
	flagAdminAddr      = "admin-addr"
	flagLogLevel       = "log-level"
	flagLogFormat      = "log-format"
	flagLogFile        = "log-file"
)

// addServeFlags は serve のフラグを定義する
// デフォルト値は表示用で、実際の既定値は config.Default() が持つ
func addServeFlags(fs *flag.FlagSet) {
	d := config.Default()

	fs.StringP(flagConfig, "c", "", "config file (YAML/JSON)")
	fs.String(flagAddr, d.Server.Addr, "listen address")
	fs.IntP(flagPoolSize, "n", d.Server.PoolSize, "number of workers")
	fs.Int(flagMaxConnections, d.Server.MaxConnections, "stop after this many connections (0 = unlimited)")
	fs.Float64(flagAcceptRate, d.Server.AcceptRate, "accepted connections per second (0 = unlimited)")
	fs.Int(flagReadBuffer, d.Server.ReadBuffer, "request read buffer in bytes")
	fs.String(flagRoot, d.Site.Root, "directory holding the pages")
	fs.String(flagIndex, d.Site.Index, "page served for GET /")
	fs.String(flagNotFound, d.Site.NotFound, "page served for any other request")
	fs.Duration(flagHandlerDelay, 0, "hold each connection this long after responding")
	fs.Bool(flagCache, d.Site.Cache, "cache pages in memory and watch the root for changes")
	fs.Bool(flagAdmin, d.Admin.Enabled, "enable the admin API")
	fs.String(flagAdminAddr, d.Admin.Addr, "admin API listen address")
	fs.String(flagLogLevel, d.Log.Level, "log level (debug, info, warn, error)")
	fs.String(flagLogFormat, d.Log.Format, "log format (text, json)")
	fs.String(flagLogFile, d.Log.File, "log file path; rotated by size (default stdout)")
}

// newViper はフラグと環境変数を束ねる viper を作成する
func newViper(fs *flag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error while binding flags: %w", err)
	}
	return v, nil
}

// buildConfig は設定を構築する
// 優先順位: フラグ > 環境変数 > 設定ファイル > デフォルト
func buildConfig(v *viper.Viper) (config.Config, error) {
	cfg := config.Default()

	if path := v.GetString(flagConfig); path != "" {
		fileConfig, err := config.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *fileConfig
	}

	// 明示的に指定されたものだけ上書き
	if v.IsSet(flagAddr) {
		cfg.Server.Addr = v.GetString(flagAddr)
	}
	if v.IsSet(flagPoolSize) {
		cfg.Server.PoolSize = v.GetInt(flagPoolSize)
	}
	if v.IsSet(flagMaxConnections) {
		cfg.Server.MaxConnections = v.GetInt(flagMaxConnections)
	}
	if v.IsSet(flagAcceptRate) {
		cfg.Server.AcceptRate = v.GetFloat64(flagAcceptRate)
	}
	if v.IsSet(flagReadBuffer) {
		cfg.Server.ReadBuffer = v.GetInt(flagReadBuffer)
	}
	if v.IsSet(flagRoot) {
		cfg.Site.Root = v.GetString(flagRoot)
	}
	if v.IsSet(flagIndex) {
		cfg.Site.Index = v.GetString(flagIndex)
	}
	if v.IsSet(flagNotFound) {
		cfg.Site.NotFound = v.GetString(flagNotFound)
	}
	if v.IsSet(flagHandlerDelay) {
		cfg.Site.HandlerDelay = config.Duration(v.GetDuration(flagHandlerDelay))
	}
	if v.IsSet(flagCache) {
		cfg.Site.Cache = v.GetBool(flagCache)
	}
	if v.IsSet(flagAdmin) {
		cfg.Admin.Enabled = v.GetBool(flagAdmin)
	}
	if v.IsSet(flagAdminAddr) {
		cfg.Admin.Addr = v.GetString(flagAdminAddr)
	}
	if v.IsSet(flagLogLevel) {
		cfg.Log.Level = v.GetString(flagLogLevel)
	}
	if v.IsSet(flagLogFormat) {
		cfg.Log.Format = v.GetString(flagLogFormat)
	}
	if v.IsSet(flagLogFile) {
		cfg.Log.File = v.GetString(flagLogFile)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// StrategyConfig holds the defaults applied to analysis requests that omit a field.
type StrategyConfig struct {
	InitialBalance   float64 `mapstructure:"initial_balance"`
	TradeAmount      float64 `mapstructure:"trade_amount"`
	ThresholdPercent float64 `mapstructure:"threshold_percent"`
	CommissionRate   float64 `mapstructure:"commission_rate"`
	Symbol           string  `mapstructure:"symbol"`
	Interval         string  `mapstructure:"interval"`
}

// BinanceConfig defines the market data source settings.
type BinanceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	StreamURL         string        `mapstructure:"stream_url"`
	APIKey            string        `mapstructure:"api_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	StreamEnabled     bool          `mapstructure:"stream_enabled"`
	ChunkSize         int           `mapstructure:"chunk_size"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig defines the candle cache connection settings.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LogConfig defines logger output. An empty File logs to stdout.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("strategy.initial_balance", 10000.0)
	v.SetDefault("strategy.trade_amount", 1000.0)
	v.SetDefault("strategy.threshold_percent", 0.05)
	v.SetDefault("strategy.commission_rate", 0.00075)
	v.SetDefault("strategy.symbol", "ETHUSDT")
	v.SetDefault("strategy.interval", "1h")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.secret_key", "")
	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.stream_url", "wss://stream.binance.com:9443/ws/!miniTicker@arr")
	v.SetDefault("binance.stream_enabled", true)
	v.SetDefault("binance.chunk_size", 1000)
	v.SetDefault("binance.max_concurrency", 10)
	v.SetDefault("binance.requests_per_second", 10.0)
	v.SetDefault("binance.burst", 20)
	v.SetDefault("binance.max_retries", 3)
	v.SetDefault("binance.retry_backoff", time.Second)
	v.SetDefault("binance.request_timeout", 10*time.Second)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.compress", false)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

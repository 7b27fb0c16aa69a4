// Package config loads serialx settings from defaults, an optional config
// file, SERIALX_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	serial "github.com/allbin/go-serial-exchange"
)

// EnvPrefix is the prefix of environment overrides, e.g. SERIALX_PORT_SPEED.
const EnvPrefix = "SERIALX"

// Config is the root application configuration.
type Config struct {
	Port     PortConfig     `mapstructure:"port"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// PortConfig holds line settings applied when a port is opened.
type PortConfig struct {
	Speed       int           `mapstructure:"speed"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Exclusive   bool          `mapstructure:"exclusive"`
	SyncWrite   bool          `mapstructure:"sync_write"`
}

// ExchangeConfig holds the request/response settings.
type ExchangeConfig struct {
	Attempts   int           `mapstructure:"attempts"`
	Delay      time.Duration `mapstructure:"delay"`
	BufferSize int           `mapstructure:"buffer_size"`
	// MaxResponseSize caps an unterminated response in bytes.
	MaxResponseSize int `mapstructure:"max_response_size"`
	// Terminator is a single byte; escapes like \n and hex like 0x0d are accepted.
	Terminator string `mapstructure:"terminator"`
	Strategy   string `mapstructure:"strategy"`
	Encoding   string `mapstructure:"encoding"`
	FlushInput bool   `mapstructure:"flush_input"`
	// LineEnding is appended to text payloads typed on the command line.
	LineEnding string `mapstructure:"line_ending"`
}

// PoolConfig sizes the port pool used for multi-device runs.
type PoolConfig struct {
	Size        int `mapstructure:"size"`
	Concurrency int `mapstructure:"concurrency"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with the library defaults.
func Default() *Config {
	port := serial.DefaultConfig()
	ex := serial.DefaultExchangeConfig()
	return &Config{
		Port: PortConfig{
			Speed:       port.BaudRate,
			DataBits:    port.DataBits,
			StopBits:    port.StopBits,
			Parity:      "none",
			ReadTimeout: port.ReadTimeout,
			Exclusive:   port.Exclusive,
		},
		Exchange: ExchangeConfig{
			Attempts:        ex.Retry.MaxAttempts,
			Delay:           ex.Retry.Delay,
			BufferSize:      ex.BufferSize,
			MaxResponseSize: ex.MaxResponseSize,
			Terminator:      `\n`,
			Strategy:        ex.Strategy.String(),
			Encoding:        "utf-8",
			LineEnding:      `\r\n`,
		},
		Pool: PoolConfig{
			Size:        16,
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:   "warn",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"baud":         "port.speed",
	"data-bits":    "port.data_bits",
	"stop-bits":    "port.stop_bits",
	"parity":       "port.parity",
	"read-timeout": "port.read_timeout",
	"exclusive":    "port.exclusive",
	"sync":         "port.sync_write",
	"attempts":     "exchange.attempts",
	"delay":        "exchange.delay",
	"buffer-size":  "exchange.buffer_size",
	"max-response": "exchange.max_response_size",
	"terminator":   "exchange.terminator",
	"strategy":     "exchange.strategy",
	"encoding":     "exchange.encoding",
	"flush":        "exchange.flush_input",
	"line-ending":  "exchange.line_ending",
	"pool-size":    "pool.size",
	"concurrency":  "pool.concurrency",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-output":   "log.outputs",
}

// Load reads configuration from path (if non-empty), otherwise it searches
// ./serialx.* and ~/.config/serialx/serialx.*. Environment variables use the
// prefix SERIALX with `.` and `-` replaced by `_`, e.g. SERIALX_LOG_LEVEL.
// Flags in fs named in flagKeys override everything else when set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serialx")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "serialx"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("port.speed", cfg.Port.Speed)
	v.SetDefault("port.data_bits", cfg.Port.DataBits)
	v.SetDefault("port.stop_bits", cfg.Port.StopBits)
	v.SetDefault("port.parity", cfg.Port.Parity)
	v.SetDefault("port.read_timeout", cfg.Port.ReadTimeout)
	v.SetDefault("port.exclusive", cfg.Port.Exclusive)
	v.SetDefault("port.sync_write", cfg.Port.SyncWrite)
	v.SetDefault("exchange.attempts", cfg.Exchange.Attempts)
	v.SetDefault("exchange.delay", cfg.Exchange.Delay)
	v.SetDefault("exchange.buffer_size", cfg.Exchange.BufferSize)
	v.SetDefault("exchange.max_response_size", cfg.Exchange.MaxResponseSize)
	v.SetDefault("exchange.terminator", cfg.Exchange.Terminator)
	v.SetDefault("exchange.strategy", cfg.Exchange.Strategy)
	v.SetDefault("exchange.encoding", cfg.Exchange.Encoding)
	v.SetDefault("exchange.flush_input", cfg.Exchange.FlushInput)
	v.SetDefault("exchange.line_ending", cfg.Exchange.LineEnding)
	v.SetDefault("pool.size", cfg.Pool.Size)
	v.SetDefault("pool.concurrency", cfg.Pool.Concurrency)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if c.Pool.Size < 1 {
		return fmt.Errorf("invalid pool.size: %d", c.Pool.Size)
	}

	// Resolve everything the library will need so errors surface at load time.
	if _, err := c.PortOptions(); err != nil {
		return err
	}
	if _, err := c.ExchangeOptions(nil, nil); err != nil {
		return err
	}
	if _, err := Unescape(c.Exchange.LineEnding); err != nil {
		return fmt.Errorf("invalid exchange.line_ending: %w", err)
	}
	return nil
}

// PortOptions converts the port section to serial options.
func (c *Config) PortOptions() ([]serial.Option, error) {
	parity, err := serial.ParseParity(c.Port.Parity)
	if err != nil {
		return nil, fmt.Errorf("port.parity: %w", err)
	}
	opts := []serial.Option{
		serial.WithBaudRate(c.Port.Speed),
		serial.WithDataBits(c.Port.DataBits),
		serial.WithStopBits(c.Port.StopBits),
		serial.WithParity(parity),
		serial.WithReadTimeout(c.Port.ReadTimeout),
		serial.WithExclusive(c.Port.Exclusive),
	}
	if c.Port.SyncWrite {
		opts = append(opts, serial.WithSyncWrite())
	}
	// Apply once against a scratch config to validate the values.
	scratch := serial.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&scratch); err != nil {
			return nil, fmt.Errorf("port: %w", err)
		}
	}
	return opts, nil
}

// ExchangeOptions converts the exchange section to exchanger options. A nil
// log or m leaves the library default in place.
func (c *Config) ExchangeOptions(log *zap.Logger, m *serial.Metrics) ([]serial.ExchangeOption, error) {
	term, err := ParseTerminator(c.Exchange.Terminator)
	if err != nil {
		return nil, fmt.Errorf("exchange.terminator: %w", err)
	}
	strategy, err := serial.ParseWaitStrategy(c.Exchange.Strategy)
	if err != nil {
		return nil, fmt.Errorf("exchange.strategy: %w", err)
	}
	enc, err := Encoding(c.Exchange.Encoding)
	if err != nil {
		return nil, fmt.Errorf("exchange.encoding: %w", err)
	}
	opts := []serial.ExchangeOption{
		serial.WithRetry(c.Exchange.Attempts, c.Exchange.Delay),
		serial.WithBufferSize(c.Exchange.BufferSize),
		serial.WithMaxResponseSize(c.Exchange.MaxResponseSize),
		serial.WithTerminator(term),
		serial.WithWaitStrategy(strategy),
		serial.WithEncoding(enc),
		serial.WithFlushInput(c.Exchange.FlushInput),
	}
	if log != nil {
		opts = append(opts, serial.WithLogger(log))
	}
	if m != nil {
		opts = append(opts, serial.WithMetrics(m))
	}
	scratch := serial.DefaultExchangeConfig()
	for _, opt := range opts {
		if err := opt(&scratch); err != nil {
			return nil, fmt.Errorf("exchange: %w", err)
		}
	}
	return opts, nil
}

// NewExchanger builds an Exchanger from the exchange section.
func (c *Config) NewExchanger(log *zap.Logger, m *serial.Metrics) (*serial.Exchanger, error) {
	opts, err := c.ExchangeOptions(log, m)
	if err != nil {
		return nil, err
	}
	return serial.NewExchanger(opts...)
}

// LineEnding returns the unescaped line ending.
func (c *Config) LineEnding() string {
	s, err := Unescape(c.Exchange.LineEnding)
	if err != nil {
		return c.Exchange.LineEnding
	}
	return s
}

// Encoding resolves a WHATWG encoding name such as "utf-8" or "latin1".
func Encoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %q", serial.ErrInvalidConfig, name)
	}
	return enc, nil
}

// ParseTerminator accepts a single character, an escape such as \n or \r,
// or a hex byte such as 0x0d.
func ParseTerminator(s string) (byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: terminator %q", serial.ErrInvalidConfig, s)
		}
		return byte(b), nil
	}
	u, err := Unescape(s)
	if err != nil || len(u) != 1 {
		return 0, fmt.Errorf("%w: terminator %q must be one byte", serial.ErrInvalidConfig, s)
	}
	return u[0], nil
}

// Unescape interprets Go string escapes (\r, \n, \t, \x00) in s.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}

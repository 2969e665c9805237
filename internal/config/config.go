package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port      int   `mapstructure:"port" yaml:"port"`
	ReadLimit int64 `mapstructure:"read_limit" yaml:"read_limit"`
}

// CORSConfig controls which browser origins may call the API and open sockets.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
}

type RelayConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	MaxRoomSize  int           `mapstructure:"max_room_size" yaml:"max_room_size"`
	EchoSender   bool          `mapstructure:"echo_sender" yaml:"echo_sender"`
	Shards       int           `mapstructure:"shards" yaml:"shards"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
}

// LanguageConfig overrides or adds a sandbox language.
type LanguageConfig struct {
	File    string   `mapstructure:"file" yaml:"file"`
	Command []string `mapstructure:"command" yaml:"command"`
	Image   string   `mapstructure:"image" yaml:"image"`

	Env map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

type SandboxConfig struct {
	Backend        string                    `mapstructure:"backend" yaml:"backend"`
	Timeout        time.Duration             `mapstructure:"timeout" yaml:"timeout"`
	CPUSeconds     int                       `mapstructure:"cpu_seconds" yaml:"cpu_seconds"`
	MemoryMB       int                       `mapstructure:"memory_mb" yaml:"memory_mb"`
	MaxProcesses   int                       `mapstructure:"max_processes" yaml:"max_processes"`
	MaxOutputBytes int                       `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	Network        bool                      `mapstructure:"network" yaml:"network"`
	MaxConcurrent  int                       `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Languages      map[string]LanguageConfig `mapstructure:"languages" yaml:"languages,omitempty"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
}

type SuggestConfig struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	CORS    CORSConfig    `mapstructure:"cors" yaml:"cors"`
	Relay   RelayConfig   `mapstructure:"relay" yaml:"relay"`
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	Suggest SuggestConfig `mapstructure:"suggest" yaml:"suggest"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Load reads pairpad.yaml from the working directory or $HOME/.pairpad, or
// from path when it is non-empty. A missing default config file is not an
// error; every setting has a default.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pairpad")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pairpad")
	}

	v.SetEnvPrefix("pairpad")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in API keys
	cfg.Suggest.Provider.APIKey = expandEnv(cfg.Suggest.Provider.APIKey)
	cfg.CORS.AllowedMethods = expandMethods(cfg.CORS.AllowedMethods)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_limit", 1<<20)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.allowed_methods", []string{"*"})
	v.SetDefault("cors.allowed_headers", []string{"*"})

	v.SetDefault("relay.send_buffer", 64)
	v.SetDefault("relay.max_room_size", 0)
	v.SetDefault("relay.echo_sender", true)
	v.SetDefault("relay.shards", 32)
	v.SetDefault("relay.write_timeout", 10*time.Second)
	v.SetDefault("relay.ping_interval", 30*time.Second)

	v.SetDefault("sandbox.backend", "process")
	v.SetDefault("sandbox.timeout", 10*time.Second)
	v.SetDefault("sandbox.cpu_seconds", 10)
	v.SetDefault("sandbox.memory_mb", 1024)
	v.SetDefault("sandbox.max_processes", 256)
	v.SetDefault("sandbox.max_output_bytes", 64*1024)
	v.SetDefault("sandbox.network", false)
	v.SetDefault("sandbox.max_concurrent", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be positive, got %d", c.Relay.SendBuffer)
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox.timeout must be positive, got %s", c.Sandbox.Timeout)
	}
	switch c.Sandbox.Backend {
	case "process", "docker":
	default:
		return fmt.Errorf("unknown sandbox.backend: %s", c.Sandbox.Backend)
	}
	return nil
}

// HasProvider reports whether an LLM provider is configured for suggestions.
func (s SuggestConfig) HasProvider() bool {
	return s.Provider.BaseURL != "" && s.Provider.Model != ""
}

// AllowsAnyOrigin reports whether the origin list contains the "*" wildcard.
func (c CORSConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// expandEnv resolves "${VAR}" references.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

func expandMethods(methods []string) []string {
	var out []string
	for _, m := range methods {
		if m == "*" {
			return append([]string(nil), allMethods...)
		}
		out = append(out, strings.ToUpper(m))
	}
	return out
}

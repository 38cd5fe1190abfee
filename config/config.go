// Package config loads the server configuration.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// a .env file in the working directory, then the process environment.
// Later layers override earlier ones.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"

	"github.com/felixgeelhaar/unhcr-mcp/unhcr"
)

// ConfigFileEnv names the environment variable holding the YAML file path.
const ConfigFileEnv = "MCP_CONFIG_FILE"

// Transport selects the network binding.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "ws"
)

// UnmarshalText accepts sse, ws or websocket in any case.
func (t *Transport) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "sse":
		*t = TransportSSE
	case "ws", "websocket":
		*t = TransportWebSocket
	default:
		return fmt.Errorf("unknown transport %q", text)
	}
	return nil
}

// PortSource selects where the listen port comes from.
type PortSource string

const (
	// PortSourceLiteral always uses the configured port.
	PortSourceLiteral PortSource = "literal"
	// PortSourceEnvironment uses $PORT when set and the configured port otherwise.
	PortSourceEnvironment PortSource = "environment"
)

// UnmarshalText accepts literal or environment in any case.
func (p *PortSource) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "literal":
		*p = PortSourceLiteral
	case "environment", "env":
		*p = PortSourceEnvironment
	default:
		return fmt.Errorf("unknown port source %q", text)
	}
	return nil
}

// Config is the server configuration.
type Config struct {
	Transport       Transport  `json:"transport" env:"MCP_TRANSPORT"`
	Port            int        `json:"port" env:"MCP_PORT"`
	PortSource      PortSource `json:"portSource" env:"MCP_PORT_SOURCE"`
	CORSAllowOrigin string     `json:"corsAllowOrigin" env:"MCP_CORS_ALLOW_ORIGIN"`

	UpstreamURL    string     `json:"upstreamURL" env:"UNHCR_API_URL"`
	LogLevel       slog.Level `json:"logLevel" env:"MCP_LOG_LEVEL"`
	RateLimit      int        `json:"rateLimit" env:"MCP_RATE_LIMIT"`
	RateBurst      int        `json:"rateBurst" env:"MCP_RATE_BURST"`
	MaxMessageSize int64      `json:"maxMessageSize" env:"MCP_MAX_MESSAGE_SIZE"`

	// EnvPort is the platform-assigned $PORT. It is never read from a file.
	EnvPort int `json:"-" env:"PORT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport:       TransportSSE,
		Port:            1337,
		PortSource:      PortSourceEnvironment,
		CORSAllowOrigin: "*",
		UpstreamURL:     unhcr.DefaultBaseURL,
		LogLevel:        slog.LevelInfo,
		RateBurst:       10,
		MaxMessageSize:  4 << 20,
	}
}

// Load builds the configuration from all layers and validates it. When path
// is empty the file named by MCP_CONFIG_FILE is used, if any.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportSSE, TransportWebSocket:
	default:
		errs = append(errs, fmt.Errorf("transport: unknown value %q", c.Transport))
	}
	switch c.PortSource {
	case PortSourceLiteral, PortSourceEnvironment:
	default:
		errs = append(errs, fmt.Errorf("portSource: unknown value %q", c.PortSource))
	}
	if !validPort(c.Port) {
		errs = append(errs, fmt.Errorf("port: %d out of range 1-65535", c.Port))
	}
	if c.PortSource == PortSourceEnvironment && c.EnvPort != 0 && !validPort(c.EnvPort) {
		errs = append(errs, fmt.Errorf("PORT: %d out of range 1-65535", c.EnvPort))
	}
	if strings.TrimSpace(c.CORSAllowOrigin) == "" {
		errs = append(errs, errors.New("corsAllowOrigin: must not be empty"))
	}
	if c.UpstreamURL == "" {
		errs = append(errs, errors.New("upstreamURL: must not be empty"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rateLimit: %d must not be negative", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rateBurst: %d must be positive", c.RateBurst))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("maxMessageSize: %d must be positive", c.MaxMessageSize))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// ListenPort returns the port to listen on.
func (c Config) ListenPort() int {
	if c.PortSource == PortSourceEnvironment && c.EnvPort != 0 {
		return c.EnvPort
	}
	return c.Port
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.ListenPort())
}

// CORSOrigins splits CORSAllowOrigin on commas.
func (c Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

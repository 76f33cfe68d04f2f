package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joshp123/xiqsync/internal/rate"
)

const (
	DefaultServer        = "https://api.extremecloudiq.com"
	DefaultTokenFile     = "xiq_token.txt"
	DefaultRedisURL      = "redis://localhost:6379/3"
	DefaultPageSize      = 100
	MaxPageSize          = 100
	DefaultSSIDWorkers   = 1
	DefaultMirrorPrefix  = "xiqsync"
	DefaultMQTTTopic     = "xiqsync/status"
	DefaultServeInterval = 15 * time.Minute
	DefaultHTTPAddr      = ":8080"
	DefaultGRPCAddr      = ":9000"
	EnvPrefix            = "XIQSYNC"
	UsernameEnv          = "XIQ_USERNAME"
	PasswordEnv          = "XIQ_PASSWORD"
)

// Config is the full runtime configuration.
type Config struct {
	Server      string         `mapstructure:"server"`
	TokenFile   string         `mapstructure:"token_file"`
	RedisURL    string         `mapstructure:"redis_url"`
	PageSize    int            `mapstructure:"page_size"`
	ForceLogin  bool           `mapstructure:"force_login"`
	SSIDWorkers int            `mapstructure:"ssid_workers"`
	Policy      rate.Policy    `mapstructure:"policy"`
	TokenMirror MirrorConfig   `mapstructure:"token_mirror"`
	MQTT        MQTTConfig     `mapstructure:"mqtt"`
	Serve       ServeConfig    `mapstructure:"serve"`
	Locations   LocationConfig `mapstructure:"locations"`
}

// MirrorConfig points the credential mirror at an S3-compatible bucket.
type MirrorConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	Region        string `mapstructure:"region"`
	AccessKeyFile string `mapstructure:"access_key_file"`
	SecretKeyFile string `mapstructure:"secret_key_file"`
}

// Enabled reports whether a mirror endpoint is configured.
func (c MirrorConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
}

func (c MQTTConfig) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

type ServeConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	HTTPAddr string        `mapstructure:"http_addr"`
	GRPCAddr string        `mapstructure:"grpc_addr"`
	// AllowedOrigins feeds the CORS policy of the read API.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LocationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Credentials are the login username and password.
type Credentials struct {
	Username string
	Password string
}

// ConfigError reports missing or invalid configuration. It is always fatal.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	policy := rate.DefaultPolicy()

	v.SetDefault("server", DefaultServer)
	v.SetDefault("token_file", DefaultTokenFile)
	v.SetDefault("redis_url", DefaultRedisURL)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("force_login", false)
	v.SetDefault("ssid_workers", DefaultSSIDWorkers)

	v.SetDefault("policy.provider", policy.Provider)
	v.SetDefault("policy.page_delay", policy.PageDelay)
	v.SetDefault("policy.chunk_delay", policy.ChunkDelay)
	v.SetDefault("policy.record_ttl", policy.RecordTTL)
	v.SetDefault("policy.max_retries", policy.MaxRetries)
	v.SetDefault("policy.chunk_size", policy.ChunkSize)
	v.SetDefault("policy.default_retry_after", policy.DefaultRetryAfter)
	v.SetDefault("policy.request_timeout", policy.RequestTimeout)

	// Empty defaults make the keys visible to AutomaticEnv.
	for _, key := range []string{
		"token_mirror.endpoint", "token_mirror.bucket", "token_mirror.region",
		"token_mirror.access_key_file", "token_mirror.secret_key_file",
		"mqtt.broker", "mqtt.username", "mqtt.password", "mqtt.client_id",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("token_mirror.prefix", DefaultMirrorPrefix)
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("serve.allowed_origins", []string{"*"})
	v.SetDefault("serve.interval", DefaultServeInterval)
	v.SetDefault("serve.http_addr", DefaultHTTPAddr)
	v.SetDefault("serve.grpc_addr", DefaultGRPCAddr)
	v.SetDefault("locations.enabled", false)
}

// New returns a viper instance wired for xiqsync: defaults, XIQSYNC_* env
// overrides and an optional xiqsync.yml in the working directory.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("xiqsync")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces invariants the types cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ConfigError{Field: "config", Message: "is required"}
	}
	if cfg.Server == "" {
		return &ConfigError{Field: "server", Message: "is required"}
	}
	if u, err := url.Parse(cfg.Server); err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "server", Message: fmt.Sprintf("invalid url %q", cfg.Server)}
	}
	if strings.TrimSpace(cfg.TokenFile) == "" {
		return &ConfigError{Field: "token_file", Message: "is required"}
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return &ConfigError{Field: "redis_url", Message: "is required"}
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		return &ConfigError{Field: "page_size", Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if cfg.SSIDWorkers <= 0 {
		return &ConfigError{Field: "ssid_workers", Message: "must be positive"}
	}
	if err := cfg.Policy.Validate(); err != nil {
		return &ConfigError{Field: "policy", Message: err.Error()}
	}
	if cfg.TokenMirror.Enabled() {
		if cfg.TokenMirror.Bucket == "" {
			return &ConfigError{Field: "token_mirror.bucket", Message: "is required"}
		}
		if cfg.TokenMirror.AccessKeyFile == "" || cfg.TokenMirror.SecretKeyFile == "" {
			return &ConfigError{Field: "token_mirror", Message: "access_key_file and secret_key_file are required"}
		}
	}
	if cfg.MQTT.Enabled() && strings.TrimSpace(cfg.MQTT.Topic) == "" {
		return &ConfigError{Field: "mqtt.topic", Message: "is required"}
	}
	if cfg.Serve.Interval <= 0 {
		return &ConfigError{Field: "serve.interval", Message: "must be positive"}
	}
	return nil
}

// CredentialsFromEnv reads the login credentials. Both variables are required.
func CredentialsFromEnv() (Credentials, error) {
	return credentialsFrom(os.Getenv)
}

func credentialsFrom(getenv func(string) string) (Credentials, error) {
	creds := Credentials{
		Username: strings.TrimSpace(getenv(UsernameEnv)),
		Password: getenv(PasswordEnv),
	}
	if creds.Username == "" {
		return Credentials{}, &ConfigError{Field: UsernameEnv, Message: "environment variable is not set"}
	}
	if creds.Password == "" {
		return Credentials{}, &ConfigError{Field: PasswordEnv, Message: "environment variable is not set"}
	}
	return creds, nil
}

package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	Research  ResearchConfig  `yaml:"research"`
	Batch     BatchConfig     `yaml:"batch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Models    ModelsConfig    `yaml:"models"`
	Styles    StylesConfig    `yaml:"styles"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

// UpstreamConfig describes the single external chat-completions endpoint.
type UpstreamConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffMax    time.Duration `yaml:"backoff_max"`
}

type CacheConfig struct {
	KeyPrefix           string        `yaml:"key_prefix"`
	ResponseTTL         time.Duration `yaml:"response_ttl"`
	ResearchTTLBasic    time.Duration `yaml:"research_ttl_basic"`
	ResearchTTLMedium   time.Duration `yaml:"research_ttl_medium"`
	ResearchTTLHigh     time.Duration `yaml:"research_ttl_high"`
	LocalSize           int           `yaml:"local_size"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

type ResearchConfig struct {
	SearchEndpoint     string        `yaml:"search_endpoint"`
	SearchConcurrency  int           `yaml:"search_concurrency"`
	SearchTimeout      time.Duration `yaml:"search_timeout"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxSourcesPerTopic int           `yaml:"max_sources_per_topic"`
	MaxContentChars    int           `yaml:"max_content_chars"`
	MaxFetchBytes      int64         `yaml:"max_fetch_bytes"`
	SynthesisMaxTokens int           `yaml:"synthesis_max_tokens"`
}

type BatchConfig struct {
	// MaxParallel is the process-wide ceiling; a request may ask for less
	// but never gets more.
	MaxParallel int `yaml:"max_parallel"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// ModelsConfig maps the four model-selection tiers to upstream model names.
type ModelsConfig struct {
	Low    string `yaml:"low"`
	Medium string `yaml:"medium"`
	High   string `yaml:"high"`
	Ultra  string `yaml:"ultra"`
}

// ForLevel returns the upstream model for a tier, defaulting to the low tier
// for unknown values.
func (m ModelsConfig) ForLevel(level string) string {
	switch level {
	case "medium":
		return m.Medium
	case "high":
		return m.High
	case "ultra":
		return m.Ultra
	default:
		return m.Low
	}
}

// StylesConfig holds operator-defined custom reasoning styles registered at
// startup and on config reload, keyed by style tag.
type StylesConfig struct {
	Custom map[string]string `yaml:"custom"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "enchanter",
			User:            "enchanter",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Upstream: UpstreamConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Timeout:       120 * time.Second,
			MaxConcurrent: 50,
			MaxAttempts:   3,
			BackoffBase:   500 * time.Millisecond,
			BackoffMax:    10 * time.Second,
		},
		Cache: CacheConfig{
			KeyPrefix:           "enchanter",
			ResponseTTL:         time.Hour,
			ResearchTTLBasic:    6 * time.Hour,
			ResearchTTLMedium:   12 * time.Hour,
			ResearchTTLHigh:     24 * time.Hour,
			LocalSize:           1000,
			HealthCheckInterval: 30 * time.Second,
		},
		Research: ResearchConfig{
			SearchEndpoint:     "https://api.duckduckgo.com/",
			SearchConcurrency:  5,
			SearchTimeout:      30 * time.Second,
			FetchTimeout:       30 * time.Second,
			MaxSourcesPerTopic: 5,
			MaxContentChars:    5000,
			MaxFetchBytes:      1 << 20,
			SynthesisMaxTokens: 3000,
		},
		Batch: BatchConfig{
			MaxParallel: 10,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Models: ModelsConfig{
			Low:    "gpt-4o-mini",
			Medium: "gpt-4o",
			High:   "o3-mini",
			Ultra:  "gpt-5",
		},
	}
}

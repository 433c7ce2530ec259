package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderVertex    = "vertex"
)

// Supported text extraction backends.
const (
	ExtractorNative    = "native"
	ExtractorPdftotext = "pdftotext"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Extract ExtractConfig
	Cache   CacheConfig
	Events  EventsConfig
	RunLog  RunLogConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string // empty disables the gRPC health endpoint
	CORSOrigin     string
	MaxUploadBytes int64
	UploadDir      string
	RequestTimeout time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	Model           string // empty = provider default
	BaseURL         string // empty = provider default
	MaxTokens       int
	Temperature     float32
	Timeout         time.Duration // per attempt
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	VertexProject   string
	VertexRegion    string
	VertexCredsFile string
}

// ExtractConfig selects how PDF text is pulled out.
type ExtractConfig struct {
	Backend   string
	Pdftotext string
}

// CacheConfig enables the redis completion cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// EventsConfig enables Kafka analysis events when Brokers is non-empty.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// RunLogConfig enables the sqlite run log when DBPath is set.
type RunLogConfig struct {
	DBPath string
}

// LogConfig controls the slog handler built in cmd/.
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       httpAddr(),
			GRPCAddr:       getEnv("GRPC_ADDR", ""),
			CORSOrigin:     getEnv("CORS_ORIGIN", "http://localhost:5173"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
			UploadDir:      getEnv("UPLOAD_DIR", os.TempDir()),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 90*time.Second),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderAnthropic)),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", getEnv("CLAUDE_MODEL", "")),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 4096),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:      getEnvAsInt("LLM_MAX_RETRIES", 3),
			InitialBackoff:  getEnvAsDuration("LLM_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:      getEnvAsDuration("LLM_MAX_BACKOFF", 8*time.Second),
			VertexProject:   getEnv("VERTEX_PROJECT_ID", ""),
			VertexRegion:    getEnv("VERTEX_REGION", "europe-west1"),
			VertexCredsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Extract: ExtractConfig{
			Backend:   strings.ToLower(getEnv("PDF_EXTRACTOR", ExtractorNative)),
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			TTL:           getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Events: EventsConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "order-analyzer.analyses"),
		},
		RunLog: RunLogConfig{
			DBPath: getEnv("ANALYSIS_DB_PATH", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// APIKey returns the key belonging to the selected provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

func httpAddr() string {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		return v
	}
	port := getEnv("PORT", "3001")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderAnthropic, ProviderOpenAI, ProviderVertex)).
		Field("LLM_MAX_TOKENS", c.LLM.MaxTokens, Positive).
		Field("LLM_TIMEOUT", c.LLM.Timeout, Positive).
		Field("PDF_EXTRACTOR", c.Extract.Backend, OneOf(ExtractorNative, ExtractorPdftotext)).
		Field("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes, Positive).
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required)

	switch c.LLM.Provider {
	case ProviderAnthropic:
		v.Field("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey, Required)
	case ProviderOpenAI:
		v.Field("OPENAI_API_KEY", c.LLM.OpenAIAPIKey, Required)
	case ProviderVertex:
		v.Field("VERTEX_PROJECT_ID", c.LLM.VertexProject, Required)
		v.Field("VERTEX_REGION", c.LLM.VertexRegion, Required)
	}
	if len(c.Events.Brokers) > 0 {
		v.Field("KAFKA_TOPIC", c.Events.Topic, Required)
	}

	if v.HasErrors() {
		return NewAppErrorWithDetails(CodeConfig, "invalid configuration", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

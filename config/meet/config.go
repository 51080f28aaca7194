package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogJSON         bool          `yaml:"log_json" env:"LOG_JSON" env-default:"false"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"120s"`
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	OpenAIAPIKey    string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*" env-separator:","`

	Meeting  MeetingConfig  `yaml:"meeting" env-prefix:"MEETING_"`
	Ingest   IngestConfig   `yaml:"ingest" env-prefix:"INGEST_"`
	STT      STTConfig      `yaml:"stt" env-prefix:"STT_"`
	LLM      LLMConfig      `yaml:"llm" env-prefix:"LLM_"`
	Postgres PostgresConfig `yaml:"postgres" env-prefix:"POSTGRES_"`
	Redis    RedisConfig    `yaml:"redis" env-prefix:"REDIS_"`
	Webhook  WebhookConfig  `yaml:"webhook" env-prefix:"WEBHOOK_"`
	Events   EventsConfig   `yaml:"events" env-prefix:"EVENTS_"`
}

type MeetingConfig struct {
	// IdleTimeout ends meetings without activity; zero disables it.
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" env-default:"0s"`
	SentimentBatchSize int           `yaml:"sentiment_batch_size" env:"SENTIMENT_BATCH_SIZE" env-default:"20"`
	QueryTopK          int           `yaml:"query_top_k" env:"QUERY_TOP_K" env-default:"5"`
}

type IngestConfig struct {
	Workers          int     `yaml:"workers" env:"WORKERS" env-default:"4"`
	QueueSize        int     `yaml:"queue_size" env:"QUEUE_SIZE" env-default:"64"`
	MaxChunkBytes    int     `yaml:"max_chunk_bytes" env:"MAX_CHUNK_BYTES" env-default:"26214400"`
	SilenceThreshold float64 `yaml:"silence_threshold" env:"SILENCE_THRESHOLD" env-default:"0.0001"`
	SampleRate       int     `yaml:"sample_rate" env:"SAMPLE_RATE" env-default:"16000"`
}

type STTConfig struct {
	Provider   string        `yaml:"provider" env:"PROVIDER" env-default:"mock"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"60s"`
	ASRAddress string        `yaml:"asr_address" env:"ASR_ADDRESS" env-default:"localhost:50051"`
	Model      string        `yaml:"model" env:"MODEL"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER" env-default:"mock"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"60s"`
	Model       string        `yaml:"model" env:"MODEL"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE" env-default:"0.2"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS" env-default:"0"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr" env:"ADDR"`
	Password      string `yaml:"password" env:"PASSWORD"`
	DB            int    `yaml:"db" env:"DB" env-default:"0"`
	ChannelPrefix string `yaml:"channel_prefix" env:"CHANNEL_PREFIX" env-default:"events"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url" env:"URL"`
	Token   string        `yaml:"token" env:"TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

type EventsConfig struct {
	Buffer  int           `yaml:"buffer" env:"BUFFER" env-default:"256"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

// Load reads the yaml or .env file at CONFIG_PATH when set. Environment
// variables override the file and env-default fills the rest.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

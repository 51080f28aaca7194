package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port         int    `yaml:"port" env:"PORT" env-default:"50051"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogJSON      bool   `yaml:"log_json" env:"LOG_JSON" env-default:"false"`
	MaxAudioSize int    `yaml:"max_audio_size" env:"MAX_AUDIO_SIZE" env-default:"26214400"`
	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`

	Backend BackendConfig `yaml:"backend" env-prefix:"ASR_"`
}

type BackendConfig struct {
	// Provider is openai or mock.
	Provider string        `yaml:"provider" env:"PROVIDER" env-default:"mock"`
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Model    string        `yaml:"model" env:"MODEL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"60s"`
}

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

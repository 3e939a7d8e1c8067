package config

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DefaultSystemPrompt    = "You are a helpful assistant..."
	DefaultWebSearchPrompt = "The user enabled web search. Prefer recent, verifiable facts and say so when you cannot confirm something is current."
)

type OpenAI struct {
	Engine          string        `yaml:"engine" env:"AZURE_OPENAI_ENGINE"`
	APIKey          string        `env:"AZURE_OPENAI_KEY"`
	Endpoint        string        `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT"`
	APIVersion      string        `yaml:"api_version" env:"AZURE_OPENAI_API_VERSION" env-default:"2024-06-01"`
	BaseURL         string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	SystemPrompt    string        `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	WebSearchPrompt string        `yaml:"web_search_prompt" env:"WEB_SEARCH_PROMPT"`
	MaxPromptTokens int           `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	Timeout         time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT"`
	MaxAttempts     int           `yaml:"max_attempts" env:"UPSTREAM_MAX_ATTEMPTS" env-default:"1"`
}

type HTTP struct {
	Address           string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":3000"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES"`
}

type Redis struct {
	Endpoint     string `yaml:"endpoint" env:"REDIS_ENDPOINT"`
	Stream       string `yaml:"stream" env:"REDIS_EXCHANGE_STREAM" env-default:"chat:exchanges"`
	StreamMaxLen int64  `yaml:"stream_max_len" env:"REDIS_EXCHANGE_STREAM_MAX_LEN" env-default:"1000"`
}

type Chat struct {
	ProxyURL string              `yaml:"proxy_url" env:"CHAT_PROXY_URL" env-default:"http://localhost:3000"`
	Language string              `yaml:"language" env:"CHAT_LANGUAGE" env-default:"en"`
	Models   []model.ModelOption `yaml:"models"`
}

type Config struct {
	OpenAI OpenAI `yaml:"openai"`
	HTTP   HTTP   `yaml:"http"`
	Redis  Redis  `yaml:"redis"`
	Chat   Chat   `yaml:"chat"`
}

// LoadConfig reads .env (if present), then the optional yaml file at cfgPath,
// then the environment. Missing prompt and model settings get built-in defaults.
func LoadConfig(cfgPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var cfg Config
	if err := readConfig(cfgPath, &cfg); err != nil {
		return nil, err
	}
	cfg.OpenAI = cfg.OpenAI.withDefaults()
	if len(cfg.Chat.Models) == 0 {
		cfg.Chat.Models = model.DefaultModelOptions()
	}
	return &cfg, nil
}

// ReloadOpenAI reads the OpenAI section from scratch. Values in .env replace
// the process environment, then the yaml file at cfgPath and the environment
// are applied to a zero value, so a variable that is no longer set falls back
// to the file or the default instead of keeping its old value.
func ReloadOpenAI(cfgPath string) (OpenAI, error) {
	if err := godotenv.Overload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return OpenAI{}, err
	}
	var cfg Config
	if err := readConfig(cfgPath, &cfg); err != nil {
		return OpenAI{}, err
	}
	return cfg.OpenAI.withDefaults(), nil
}

// OpenAISettings returns a provider that reloads the OpenAI section on every
// call. When a reload fails the last good settings are returned.
func OpenAISettings(cfgPath string, initial OpenAI) func() OpenAI {
	var mu sync.Mutex
	last := initial
	return func() OpenAI {
		fresh, err := ReloadOpenAI(cfgPath)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			log.Printf("failed to reload openai settings: %v", err)
			return last
		}
		last = fresh
		return fresh
	}
}

func readConfig(cfgPath string, cfg *Config) error {
	if cfgPath != "" {
		return cleanenv.ReadConfig(cfgPath, cfg)
	}
	return cleanenv.ReadEnv(cfg)
}

func (o OpenAI) withDefaults() OpenAI {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.WebSearchPrompt == "" {
		o.WebSearchPrompt = DefaultWebSearchPrompt
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return o
}

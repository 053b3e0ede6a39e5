package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Client   ClientConfig   `mapstructure:"client"`
	Typing   TypingConfig   `mapstructure:"typing"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AnalyzerConfig struct {
	MaxImageSize int64 `mapstructure:"max_image_size"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

// ClientConfig 终端客户端访问后端的配置
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TypingConfig 打字动画配置，间隔为每个字符的固定揭示间隔
type TypingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NUTRIMIND")

	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", 60*time.Second)
	viper.SetDefault("server.write_timeout", 180*time.Second)
	viper.SetDefault("server.max_header_bytes", 1<<20)
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.vision_model", "gpt-4o")
	viper.SetDefault("openai.max_tokens", 2048)
	viper.SetDefault("openai.temperature", 0.7)
	viper.SetDefault("openai.timeout", 120*time.Second)
	viper.SetDefault("analyzer.max_image_size", 10*1024*1024)
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
	viper.SetDefault("cors.max_age", 43200)
	viper.SetDefault("typing.interval", 30*time.Millisecond)
	viper.SetDefault("client.base_url", "http://localhost:8000")
	viper.SetDefault("client.timeout", 120*time.Second)
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.cache_size", 100)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// 配置文件缺失时退回默认值和环境变量
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，如果配置文件中没有设置，则使用环境变量
	if cfg.OpenAI.APIKey == "" {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			cfg.OpenAI.APIKey = apiKey
		}
	}

	return cfg, nil
}

func Get() *Config {
	return cfg
}

package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Agent     AgentConfig     `json:"agent" mapstructure:"agent"`
	Summarize SummarizeConfig `json:"summarize" mapstructure:"summarize"`
	Auth      AuthConfig      `json:"auth" mapstructure:"auth"`
}

type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

type AgentConfig struct {
	// Mode selects the collaborator implementation: "remote" (standalone
	// agent service) or "openai" (direct API).
	Mode           string `json:"mode" mapstructure:"mode"`
	WSURL          string `json:"ws_url" mapstructure:"ws_url"`
	SummaryURL     string `json:"summary_url" mapstructure:"summary_url"`
	ChatTimeoutSec int    `json:"chat_timeout_seconds" mapstructure:"chat_timeout_seconds"`
	FallbackReply  string `json:"fallback_reply" mapstructure:"fallback_reply"`
	OpenAIKey      string `json:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OpenAIModel    string `json:"openai_model,omitempty" mapstructure:"openai_model"`
}

type SummarizeConfig struct {
	Timezone string `json:"timezone" mapstructure:"timezone"`
	// CronSpec fires the daily job; the job summarizes yesterday in Timezone.
	CronSpec string `json:"cron_spec" mapstructure:"cron_spec"`
	Workers  int    `json:"workers" mapstructure:"workers"`
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".memo"))
	}

	// Set defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "memo")
	viper.SetDefault("database.database", "memo")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("agent.mode", "remote")
	viper.SetDefault("agent.ws_url", "ws://agent:8001/ws")
	viper.SetDefault("agent.summary_url", "http://agent:8001/summary/daily")
	viper.SetDefault("agent.chat_timeout_seconds", 300)
	viper.SetDefault("agent.fallback_reply", "The assistant is temporarily unavailable, please try again later.")
	viper.SetDefault("summarize.timezone", "Asia/Shanghai")
	viper.SetDefault("summarize.cron_spec", "5 0 * * *")
	viper.SetDefault("summarize.workers", 4)
	viper.SetDefault("summarize.enabled", true)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := createDefaultConfig()
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func createDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "memo",
			Password: "",
			Database: "memo",
			SSLMode:  "disable",
		},
		Agent: AgentConfig{
			Mode:           "remote",
			WSURL:          "ws://agent:8001/ws",
			SummaryURL:     "http://agent:8001/summary/daily",
			ChatTimeoutSec: 300,
			FallbackReply:  "The assistant is temporarily unavailable, please try again later.",
		},
		Summarize: SummarizeConfig{
			Timezone: "Asia/Shanghai",
			CronSpec: "5 0 * * *",
			Workers:  4,
			Enabled:  true,
		},
	}
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("MEMO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("MEMO_HOST"); host != "" {
		cfg.Server.Host = host
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// Agent overrides
	if wsURL := os.Getenv("MEMO_AGENT_WS_URL"); wsURL != "" {
		cfg.Agent.WSURL = wsURL
	}
	if summaryURL := os.Getenv("MEMO_AGENT_SUMMARY_URL"); summaryURL != "" {
		cfg.Agent.SummaryURL = summaryURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Agent.OpenAIKey = key
	}

	if secret := os.Getenv("MEMO_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Discord       DiscordConfig       `mapstructure:"discord"`
	OpenAI        OpenAIConfig        `mapstructure:"openai"`
	Classifier    ClassifierConfig    `mapstructure:"classifier"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Database      DatabaseConfig      `mapstructure:"database"`
}

type DiscordConfig struct {
	Token    string   `mapstructure:"token"`
	GuildIDs []string `mapstructure:"guild_ids"`
	Workers  int      `mapstructure:"workers"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type ClassifierConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxAttempts         int     `mapstructure:"max_attempts"`
	MaxToolRounds       int     `mapstructure:"max_tool_rounds"`
	HistoryLimit        int     `mapstructure:"history_limit"`
}

type TrackerConfig struct {
	Type        string `mapstructure:"type"`
	GitHubToken string `mapstructure:"github_token"`
	GitHubRepo  string `mapstructure:"github_repo"`
}

type NotificationsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("discord.workers", 4)
	v.SetDefault("openai.base_url", "http://localhost:11434/v1")
	v.SetDefault("openai.model", "qwen3:30b")
	v.SetDefault("openai.max_tokens", 512)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("classifier.confidence_threshold", 0.5)
	v.SetDefault("classifier.max_attempts", 3)
	v.SetDefault("classifier.max_tool_rounds", 3)
	v.SetDefault("classifier.history_limit", 10)
	v.SetDefault("tracker.type", "none")
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("DISCORD_TOKEN"); token != "" {
		config.Discord.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if ghToken := v.GetString("GITHUB_TOKEN"); ghToken != "" {
		config.Tracker.GitHubToken = ghToken
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that cannot run. Credential problems are
// surfaced here, before the pipeline starts processing messages.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (set discord.token or DISCORD_TOKEN)")
	}

	switch c.Tracker.Type {
	case "none", "":
	case "github":
		if c.Tracker.GitHubToken == "" {
			return fmt.Errorf("tracker.github_token (or GITHUB_TOKEN) is required for the github tracker")
		}
		if c.Tracker.GitHubRepo == "" {
			return fmt.Errorf("tracker.github_repo is required for the github tracker")
		}
	case "linear":
		return fmt.Errorf("linear issue tracking is not supported")
	default:
		return fmt.Errorf("unknown tracker type %q", c.Tracker.Type)
	}

	if c.Classifier.ConfidenceThreshold < 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold must be within [0, 1]")
	}
	if c.Classifier.MaxAttempts < 1 {
		return fmt.Errorf("classifier.max_attempts must be at least 1")
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // openai, anthropic, gemini
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMRoutingConfig defines which provider to use for different tasks
type LLMRoutingConfig struct {
	Planning   string `mapstructure:"planning"`   // Use for plan generation and revision
	Research   string `mapstructure:"research"`   // Use for answer extraction
	Evaluation string `mapstructure:"evaluation"` // Use for answer judging
	Synthesis  string `mapstructure:"synthesis"`  // Use for report synthesis
	Fallback   string `mapstructure:"fallback"`   // Fallback provider
}

// Route resolves the provider key for a task, falling back as configured.
func (l LLMConfig) Route(task string) string {
	var key string
	switch task {
	case "planning":
		key = l.Routing.Planning
	case "research":
		key = l.Routing.Research
	case "evaluation":
		key = l.Routing.Evaluation
	case "synthesis":
		key = l.Routing.Synthesis
	}
	if key == "" {
		key = l.Routing.Fallback
	}
	return key
}

// ResearchConfig controls the workflow loop bounds and scheduled topics
type ResearchConfig struct {
	MaxAttempts  int              `mapstructure:"max_attempts"`   // retry bound per question
	MaxPlanSteps int              `mapstructure:"max_plan_steps"` // cap on generated plan length
	FetchTopK    int              `mapstructure:"fetch_top_k"`    // pages fetched per search round
	Schedules    []ScheduleConfig `mapstructure:"schedules"`
}

// ScheduleConfig declares a recurring research run
type ScheduleConfig struct {
	Topic    string `mapstructure:"topic"`
	PlanName string `mapstructure:"plan_name"`
	CronSpec string `mapstructure:"cron_spec"`
}

// Normalize applies defaults for unset research values.
func (r ResearchConfig) Normalize() ResearchConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.MaxPlanSteps <= 0 {
		r.MaxPlanSteps = 7
	}
	if r.FetchTopK <= 0 {
		r.FetchTopK = 3
	}
	return r
}

// Validate checks schedule entries are well formed.
func (r ResearchConfig) Validate() error {
	for i, s := range r.Schedules {
		if strings.TrimSpace(s.Topic) == "" {
			return fmt.Errorf("research.schedules[%d].topic required", i)
		}
		if strings.TrimSpace(s.PlanName) == "" {
			return fmt.Errorf("research.schedules[%d].plan_name required", i)
		}
		if strings.TrimSpace(s.CronSpec) == "" {
			return fmt.Errorf("research.schedules[%d].cron_spec required", i)
		}
	}
	return nil
}

// SourcesConfig contains search source configurations
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	WebFetch  WebFetchConfig  `mapstructure:"web_fetch"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper or brave
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WebFetchConfig contains page fetching settings
type WebFetchConfig struct {
	Mode     string        `mapstructure:"mode"` // http or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// Normalize applies defaults for unset fetch values.
func (w WebFetchConfig) Normalize() WebFetchConfig {
	if w.Mode == "" {
		w.Mode = "http"
	}
	if w.Timeout <= 0 {
		w.Timeout = 20 * time.Second
	}
	if w.MaxChars <= 0 {
		w.MaxChars = 8000
	}
	return w
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// FileConfig contains file workspace settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the Postgres connection string from URL or discrete fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LogFile      string `mapstructure:"log_file"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("research.max_attempts", 3)
	viper.SetDefault("research.max_plan_steps", 7)
	viper.SetDefault("research.fetch_top_k", 3)
	viper.SetDefault("sources.web_search.max_results", 8)
	viper.SetDefault("sources.web_fetch.mode", "http")
	viper.SetDefault("storage.file.data_dir", "./data")

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCOUT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (SCOUT_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Research = config.Research.Normalize()
	config.Sources.WebFetch = config.Sources.WebFetch.Normalize()

	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	return &config
}

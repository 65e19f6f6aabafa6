package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources        Sources        `yaml:"sources"`
	Classification Classification `yaml:"classification"`
	Fetch          Fetch          `yaml:"fetch"`
	Analyze        Analyze        `yaml:"analyze"`
	Server         Server         `yaml:"server"`
	Output         Output         `yaml:"output"`
	Logging        Logging        `yaml:"logging"`
}

type Sources struct {
	AlphaVantage AlphaVantage `yaml:"alphavantage"`
	Reddit       Reddit       `yaml:"reddit"`
	Feeds        []Feed       `yaml:"feeds"`
}

type AlphaVantage struct {
	Enabled      bool    `yaml:"enabled"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	MinRelevance float64 `yaml:"min_relevance"`
}

type Reddit struct {
	Enabled         bool     `yaml:"enabled"`
	ClientIDEnv     string   `yaml:"client_id_env"`
	ClientSecretEnv string   `yaml:"client_secret_env"`
	UserAgent       string   `yaml:"user_agent"`
	Subreddits      []string `yaml:"subreddits"`
	MinScore        int      `yaml:"min_score"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Classification struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Fetch struct {
	DefaultHours int `yaml:"default_hours"`
}

type Analyze struct {
	BatchSize int `yaml:"batch_size"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for stockpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "stockpulse")
}

// DataDir returns the XDG data directory for stockpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "stockpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/stockpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'stockpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			AlphaVantage: AlphaVantage{
				Enabled:      true,
				APIKeyEnv:    "ALPHAVANTAGE_API_KEY",
				MinRelevance: 0.2,
			},
			Reddit: Reddit{
				Enabled:         true,
				ClientIDEnv:     "REDDIT_CLIENT_ID",
				ClientSecretEnv: "REDDIT_CLIENT_SECRET",
				UserAgent:       "stockpulse/1.0 (ticker sentiment)",
				Subreddits:      []string{"stocks", "investing", "wallstreetbets"},
				MinScore:        10,
			},
		},
		Classification: Classification{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Fetch:   Fetch{DefaultHours: 24},
		Analyze: Analyze{BatchSize: 25},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded default config: %v", err))
	}
	return cfg
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

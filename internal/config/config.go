package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources Sources `yaml:"sources"`
	Curate  Curate  `yaml:"curate"`
	Oracle  Oracle  `yaml:"oracle"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed     `yaml:"feeds"`
	APIs  APIsConfig `yaml:"apis"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type APIsConfig struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
}

// Curate controls the curation stages.
type Curate struct {
	WindowDays       int          `yaml:"window_days"`
	MaxPerSource     int          `yaml:"max_per_source"`
	FilterBatchSize  int          `yaml:"filter_batch_size"`
	ClusterBatchSize int          `yaml:"cluster_batch_size"`
	RankBatchSize    int          `yaml:"rank_batch_size"`
	MaxRetries       int          `yaml:"max_retries"`
	PacingMS         int          `yaml:"pacing_ms"`
	Snapshots        bool         `yaml:"snapshots"`
	ReportTemplate   string       `yaml:"report_template"`
	Temperatures     Temperatures `yaml:"temperatures"`
}

// Temperatures are per-stage sampling temperatures for the judgment calls.
type Temperatures struct {
	Filter  float64 `yaml:"filter"`
	Cluster float64 `yaml:"cluster"`
	Dedup   float64 `yaml:"dedup"`
	Rank    float64 `yaml:"rank"`
	Report  float64 `yaml:"report"`
}

// Oracle selects and configures the LLM backend.
type Oracle struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	OllamaURL     string `yaml:"ollama_url"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newscurator.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newscurator")
}

// DataDir returns the XDG data directory for newscurator.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newscurator")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newscurator/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newscurator init' to create a default config",
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
			APIs: APIsConfig{
				NewsAPI: NewsAPIConfig{
					Enabled:   true,
					APIKeyEnv: "NEWSAPI_KEY",
					Query:     "artificial intelligence",
				},
			},
		},
		Curate: Curate{
			WindowDays:       3,
			MaxPerSource:     10,
			FilterBatchSize:  20,
			ClusterBatchSize: 20,
			RankBatchSize:    15,
			MaxRetries:       3,
			PacingMS:         1000,
			Snapshots:        true,
			Temperatures: Temperatures{
				Filter:  0.1,
				Cluster: 0.1,
				Dedup:   0.1,
				Rank:    0.2,
				Report:  0.4,
			},
		},
		Oracle: Oracle{
			Provider:      "ollama",
			Model:         "qwen2.5:7b",
			OllamaURL:     "http://localhost:11434",
			OpenAIModel:   "gpt-4o-mini",
			OpenAIBaseURL: "https://api.openai.com/v1",
			APIKeyEnv:     "OPENAI_API_KEY",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Pacing returns the delay between judgment batches.
func (c *Curate) Pacing() time.Duration {
	return time.Duration(c.PacingMS) * time.Millisecond
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

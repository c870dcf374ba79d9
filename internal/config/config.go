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
	Sites         []Site        `yaml:"sites"`
	LLM           LLM           `yaml:"llm"`
	Notifications Notifications `yaml:"notifications"`
	Retention     Retention     `yaml:"retention"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
}

// Site declares one monitored status source.
type Site struct {
	ID                   string   `yaml:"id"`
	Name                 string   `yaml:"name"`
	URL                  string   `yaml:"url"`
	FeedURL              string   `yaml:"feed_url"`
	Parser               string   `yaml:"parser"`
	PollFrequencySeconds int      `yaml:"poll_frequency_seconds"`
	Modules              []string `yaml:"modules"`
}

type LLM struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Notifications struct {
	SMTPHost        string `yaml:"smtp_host"`
	SMTPPort        int    `yaml:"smtp_port"`
	SMTPUsername    string `yaml:"smtp_username"`
	SMTPPasswordEnv string `yaml:"smtp_password_env"`
	From            string `yaml:"from"`
	To              string `yaml:"to"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
}

type Retention struct {
	ReadingDays  int `yaml:"reading_days"`
	AdvisoryDays int `yaml:"advisory_days"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for statuswatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "statuswatch")
}

// DataDir returns the XDG data directory for statuswatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "statuswatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/statuswatch/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'statuswatch init' to create a default config",
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

// parse parses YAML bytes into a Config, applying defaults and validating
// the site list.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		LLM: LLM{
			Provider:       "ollama",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			APIKeyEnv:      "STATUSWATCH_LLM_API_KEY",
			TimeoutSeconds: 120,
		},
		Notifications: Notifications{
			SMTPPort:        587,
			SMTPPasswordEnv: "STATUSWATCH_SMTP_PASSWORD",
			CooldownMinutes: 30,
		},
		Retention: Retention{
			ReadingDays:  90,
			AdvisoryDays: 180,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	seen := make(map[string]bool)
	for i := range cfg.Sites {
		site := &cfg.Sites[i]
		if site.ID == "" {
			return nil, fmt.Errorf("site %d: id is required", i)
		}
		if seen[site.ID] {
			return nil, fmt.Errorf("duplicate site id: %s", site.ID)
		}
		seen[site.ID] = true
		if site.URL == "" && site.FeedURL == "" {
			return nil, fmt.Errorf("site %s: url or feed_url is required", site.ID)
		}
		if site.Name == "" {
			site.Name = site.ID
		}
		if site.Parser == "" {
			site.Parser = "auto"
		}
		if site.PollFrequencySeconds <= 0 {
			site.PollFrequencySeconds = 300
		}
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the SQLite file location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "statuswatch.db")
}

// LLMAPIKey reads the provider API key from the configured environment
// variable.
func (c *Config) LLMAPIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// SMTPPassword reads the SMTP password from the configured environment
// variable.
func (c *Config) SMTPPassword() string {
	if c.Notifications.SMTPPasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Notifications.SMTPPasswordEnv)
}

// Cooldown returns the notification cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Notifications.CooldownMinutes) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

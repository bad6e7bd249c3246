package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	General struct {
		DefaultHost string `koanf:"default_host"` // "github" or "gitlab"
		DefaultAI   string `koanf:"default_ai"`
	} `koanf:"general"`

	Server struct {
		Port          int    `koanf:"port"`
		WebhookSecret string `koanf:"webhook_secret"`
	} `koanf:"server"`

	Sync struct {
		Enabled bool     `koanf:"enabled"`
		Files   []string `koanf:"files"`
	} `koanf:"sync"`

	Notify struct {
		WebhookURL string `koanf:"webhook_url"`
	} `koanf:"notify"`

	Hosts map[string]map[string]interface{} `koanf:"hosts"`
	AI    map[string]map[string]interface{} `koanf:"ai"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"general.default_host": "github",
		"general.default_ai":   "googleai",
		"server.port":          8844,
		"sync.enabled":         true,
		"sync.files":           []string{"README.md", "CLAUDE.md"},
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./docsync.toml", "$HOME/.docsync.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix DOCSYNC_. Double
	// underscore separates sections so keys like default_ai survive:
	// DOCSYNC_GENERAL__DEFAULT_AI -> general.default_ai
	k.Load(env.Provider("DOCSYNC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DOCSYNC_")), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# DocSync Configuration

[general]
default_host = "github"
default_ai = "googleai"

[server]
port = 8844
webhook_secret = "your-webhook-secret"

[sync]
enabled = true
files = ["README.md", "CLAUDE.md"]

[notify]
webhook_url = ""

[hosts.github]
token = "your-github-pat"

[hosts.gitlab]
url = "https://gitlab.example.com"
token = "your-gitlab-token"

[ai.googleai]
api_key = "your-gemini-api-key"
model_name = "gemini-2.5-flash"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.General.DefaultHost == "" {
		return fmt.Errorf("default host is required")
	}

	if config.General.DefaultAI == "" {
		return fmt.Errorf("default AI backend is required")
	}

	hostConfig, ok := config.Hosts[config.General.DefaultHost]
	if !ok {
		return fmt.Errorf("configuration for host %s not found", config.General.DefaultHost)
	}

	switch config.General.DefaultHost {
	case "github":
		if _, ok := hostConfig["token"]; !ok {
			return fmt.Errorf("github token is required")
		}
	case "gitlab":
		if _, ok := hostConfig["url"]; !ok {
			return fmt.Errorf("gitlab url is required")
		}
		if _, ok := hostConfig["token"]; !ok {
			return fmt.Errorf("gitlab token is required")
		}
	default:
		return fmt.Errorf("unknown host %s", config.General.DefaultHost)
	}

	aiConfig, ok := config.AI[config.General.DefaultAI]
	if !ok {
		return fmt.Errorf("configuration for AI backend %s not found", config.General.DefaultAI)
	}
	if config.General.DefaultAI != "ollama" {
		if _, ok := aiConfig["api_key"]; !ok {
			return fmt.Errorf("api_key is required for AI backend %s", config.General.DefaultAI)
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", config.Server.Port)
	}

	return nil
}

// HostConfig returns the configuration block for the default host.
func (c *Config) HostConfig() map[string]interface{} {
	return c.Hosts[c.General.DefaultHost]
}

// AIConfig returns the configuration block for the default AI backend,
// with the backend name injected for the generator factory.
func (c *Config) AIConfig() map[string]interface{} {
	cfg := make(map[string]interface{}, len(c.AI[c.General.DefaultAI])+1)
	for k, v := range c.AI[c.General.DefaultAI] {
		cfg[k] = v
	}
	cfg["backend"] = c.General.DefaultAI
	return cfg
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Memory    MemoryConfig    `json:"memory"`
	Recall    RecallConfig    `json:"recall"`
	Vault     VaultConfig     `json:"vault"`
	Delegate  DelegateConfig  `json:"delegate"`
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	Proactive ProactiveConfig `json:"proactive"`
	mu        sync.RWMutex
}

type LLMConfig struct {
	URL         string  `json:"url" env:"AIKO_LLM_URL"`
	Model       string  `json:"model" env:"AIKO_LLM_MODEL"`
	APIKey      string  `json:"api_key" env:"AIKO_LLM_API_KEY"`
	Temperature float64 `json:"temperature" env:"AIKO_LLM_TEMPERATURE"`
	MaxTurns    int     `json:"max_turns" env:"AIKO_LLM_MAX_TURNS"`
}

type MemoryConfig struct {
	Path                 string   `json:"path" env:"AIKO_MEMORY_PATH"`
	MaxHistory           int      `json:"max_history" env:"AIKO_MEMORY_MAX_HISTORY"`
	DefaultAffection     int      `json:"default_affection" env:"AIKO_MEMORY_DEFAULT_AFFECTION"`
	PrivilegedIdentities []string `json:"privileged_identities" env:"AIKO_MEMORY_PRIVILEGED_IDENTITIES"`
}

type RecallConfig struct {
	Path    string `json:"path" env:"AIKO_RECALL_PATH"`
	Model   string `json:"model" env:"AIKO_RECALL_MODEL"`
	TopK    int    `json:"top_k" env:"AIKO_RECALL_TOP_K"`
	Enabled bool   `json:"enabled" env:"AIKO_RECALL_ENABLED"`
}

type VaultConfig struct {
	Path string `json:"path" env:"AIKO_VAULT_PATH"`
}

type DelegateConfig struct {
	GatewayURL     string `json:"gateway_url" env:"AIKO_DELEGATE_GATEWAY_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"AIKO_DELEGATE_TIMEOUT_SECONDS"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"AIKO_GATEWAY_HOST"`
	Port int    `json:"port" env:"AIKO_GATEWAY_PORT"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string   `json:"token" env:"AIKO_CHANNELS_DISCORD_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"AIKO_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProactiveConfig struct {
	Enabled  bool   `json:"enabled" env:"AIKO_PROACTIVE_ENABLED"`
	Schedule string `json:"schedule" env:"AIKO_PROACTIVE_SCHEDULE"` // cron expression
	Identity string `json:"identity" env:"AIKO_PROACTIVE_IDENTITY"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:         "http://127.0.0.1:11434/api/chat",
			Model:       "deepseek-v3.1:671b-cloud",
			Temperature: 0.7,
			MaxTurns:    3,
		},
		Memory: MemoryConfig{
			Path:                 "~/.aiko/data/shared_memory.json",
			MaxHistory:           20,
			DefaultAffection:     30,
			PrivilegedIdentities: []string{"omax404", "master"},
		},
		Recall: RecallConfig{
			Path:    "~/.aiko/data/recall.db",
			Model:   "aiko-chargram-384-v1",
			TopK:    1,
			Enabled: true,
		},
		Vault: VaultConfig{
			Path: "",
		},
		Delegate: DelegateConfig{
			GatewayURL:     "http://localhost:8000/api/v1/webhook/",
			TimeoutSeconds: 10,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18791,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: []string{},
			},
		},
		Proactive: ProactiveConfig{
			Enabled:  false,
			Schedule: "*/30 * * * *",
			Identity: "omax404",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet: defaults plus env overrides.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) MemoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Memory.Path)
}

func (c *Config) RecallPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Recall.Path)
}

func (c *Config) VaultPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Vault.Path)
}

func (c *Config) MaxTurns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.LLM.MaxTurns <= 0 {
		return 3
	}
	return c.LLM.MaxTurns
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

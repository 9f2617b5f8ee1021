package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxConfigSize caps config files at 1MB to avoid loading runaway files.
const maxConfigSize = 1 << 20

// Config represents the application configuration
type Config struct {
	// API Keys
	OpenAIKey string `yaml:"openai_key"`
	GeminiKey string `yaml:"gemini_key"`

	// GCP Configuration (Vertex AI, Firestore)
	GCPProject     string `yaml:"gcp_project"`
	GCPCredentials string `yaml:"gcp_credentials"`

	// Strategist Configuration
	Provider    string  `yaml:"provider"` // scripted, rule, openai, gemini, bedrock, human
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`

	// ProposalsPerSecond rate-limits LLM-backed strategists. Zero
	// disables limiting.
	ProposalsPerSecond float64 `yaml:"proposals_per_second"`

	// Negotiation tuning
	Negotiation NegotiationConfig `yaml:"negotiation"`

	// Store selects the persistence backend
	Store StoreConfig `yaml:"store"`

	// Observability
	MetricsPort int `yaml:"metrics_port"`
}

// NegotiationConfig tunes leverage, patience, and safeguard behavior.
// Zero values fall back to the package defaults.
type NegotiationConfig struct {
	HighLeverageCutoff int `yaml:"high_leverage_cutoff"`

	BaseRounds int `yaml:"base_rounds"`
	RoundStep  int `yaml:"round_step"`
	MinRounds  int `yaml:"min_rounds"`
	MaxRounds  int `yaml:"max_rounds"`

	AcceptEpsilon float64 `yaml:"accept_epsilon"`
	StallRatio    float64 `yaml:"stall_ratio"`
	MinStepRatio  float64 `yaml:"min_step_ratio"`
	StallRounds   int     `yaml:"stall_rounds"`
	MaxMisses     int     `yaml:"max_misses"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	// Backend is one of: memory, file, redis, firestore
	Backend string `yaml:"backend"`

	// File backend
	BaseDir string `yaml:"base_dir"`

	// Redis backend
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Firestore backend
	FirestoreProject string `yaml:"firestore_project"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "rule"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}

	// API keys fall back to the environment
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.GCPProject == "" {
		c.GCPProject = os.Getenv("GCP_PROJECT")
	}
	if c.GCPCredentials == "" {
		c.GCPCredentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider {
	case "scripted", "rule", "human":
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai provider requires openai_key or OPENAI_API_KEY")
		}
	case "gemini":
		if c.GeminiKey == "" && c.GCPProject == "" {
			return fmt.Errorf("gemini provider requires gemini_key or gcp_project")
		}
	case "bedrock":
		// Credentials resolve through the AWS SDK default chain.
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}

	switch c.Store.Backend {
	case "memory", "file", "redis":
	case "firestore":
		if c.Store.FirestoreProject == "" && c.GCPProject == "" {
			return fmt.Errorf("firestore backend requires firestore_project or gcp_project")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	n := c.Negotiation
	if n.AcceptEpsilon < 0 || n.StallRatio < 0 || n.MinStepRatio < 0 {
		return fmt.Errorf("negotiation thresholds must be non-negative")
	}
	if n.MinRounds < 0 || n.MaxRounds < 0 || (n.MaxRounds > 0 && n.MinRounds > n.MaxRounds) {
		return fmt.Errorf("invalid round bounds: min %d, max %d", n.MinRounds, n.MaxRounds)
	}

	return nil
}

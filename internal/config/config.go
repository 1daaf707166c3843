package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datalens/internal/ai"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/utils"
)

// Global configuration structure.
type Global struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// Models catalog sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url,omitempty"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Server
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Ingestion
	CSVEncodings []string `mapstructure:"csv_encodings" yaml:"csv_encodings"`
	MaxRows      int      `mapstructure:"max_rows" yaml:"max_rows"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// KeyEnv names the provider-native API key variable. Ollama needs none.
var KeyEnv = map[string]string{
	ai.ProviderOpenAI:     "OPENAI_API_KEY",
	ai.ProviderOpenRouter: "OPENROUTER_API_KEY",
	ai.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"api_key", "provider", "model", "max_tokens", "temperature", "base_url",
	"models_catalog_url", "models_merge",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "listen_addr", "session_ttl_min", "max_upload_mb",
	"csv_encodings", "max_rows", "log_level", "log_format",
}

func setDefaults(v *viper.Viper) {
	// Unmarshal only sees env overrides for keys viper already knows.
	for _, k := range []string{"api_key", "base_url", "models_catalog_url"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("provider", ai.ProviderOpenAI)
	v.SetDefault("model", "") // empty selects the provider's default
	v.SetDefault("max_tokens", 1500)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("models_merge", true)
	// HTTP/retry defaults: a single attempt unless configured otherwise
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("csv_encodings", ingest.DefaultEncodings)
	v.SetDefault("max_rows", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Dir returns ~/.datalens, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".datalens")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}
	return dir, nil
}

// Path resolves the config file location: cfgFile when set, otherwise
// ~/.datalens/config.yaml.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datalens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.WriteFileAtomic(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// A .env file in the working directory is loaded first when present.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DATALENS")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set assigns one key from its textual form, the way `config set` receives it.
func (c *Global) Set(key, value string) error {
	v := viper.New()
	v.Set(key, value)
	switch key {
	case "api_key":
		c.APIKey = value
	case "provider":
		if _, ok := KeyEnv[value]; !ok && value != ai.ProviderOllama {
			return fmt.Errorf("unknown provider %q (expected one of %v)", value, ai.Providers)
		}
		c.Provider = value
	case "model":
		c.Model = value
	case "base_url":
		c.BaseURL = value
	case "models_catalog_url":
		c.ModelsCatalogURL = value
	case "ollama_host":
		c.OllamaHost = value
	case "listen_addr":
		c.ListenAddr = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "csv_encodings":
		var encs []string
		for _, e := range strings.Split(value, ",") {
			if e = strings.TrimSpace(e); e != "" {
				encs = append(encs, e)
			}
		}
		c.CSVEncodings = encs
	case "temperature":
		c.Temperature = v.GetFloat64(key)
	case "models_merge":
		c.ModelsMerge = v.GetBool(key)
	case "max_tokens":
		c.MaxTokens = v.GetInt(key)
	case "http_timeout_sec":
		c.HTTPTimeoutSec = v.GetInt(key)
	case "retry_max_attempts":
		c.RetryMaxAttempts = v.GetInt(key)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs = v.GetInt(key)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs = v.GetInt(key)
	case "session_ttl_min":
		c.SessionTTLMin = v.GetInt(key)
	case "max_upload_mb":
		c.MaxUploadMB = v.GetInt(key)
	case "max_rows":
		c.MaxRows = v.GetInt(key)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// ResolveAPIKey picks the key for the configured provider: the config value
// (which DATALENS_API_KEY overrides) and then the provider-native variable.
func (c *Global) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if env, ok := KeyEnv[c.Provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// Runtime builds the configured LLM runtime. A missing API key is not an
// error here; the runtime reports it on first use.
func (c *Global) Runtime() (ai.Runtime, error) {
	return ai.NewRuntime(c.Provider, ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.ResolveAPIKey(),
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	})
}

// IngestOptions returns the decode settings derived from the configuration.
func (c *Global) IngestOptions() ingest.Options {
	opt := ingest.DefaultOptions()
	if len(c.CSVEncodings) > 0 {
		opt.Encodings = append([]string(nil), c.CSVEncodings...)
	}
	opt.MaxRows = c.MaxRows
	return opt
}

// SessionTTL is the idle lifetime of server sessions.
func (c *Global) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// MaxUploadBytes is the largest accepted upload.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

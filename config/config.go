// Package config loads and validates orchestrator configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables with the AGENT_ prefix (AGENT_LLM_PROVIDER
// overrides llm.provider, and so on). A .env file in the working directory
// is loaded into the environment first.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level orchestrator configuration.
type Config struct {
	LLM        LLMConfig       `koanf:"llm"`
	Keys       KeysConfig      `koanf:"keys"`
	Daily      DailyConfig     `koanf:"daily"`
	Collectors CollectorConfig `koanf:"collectors"`

	// DatabaseURL selects the store backend. "sqlite://path", a bare file
	// path, or ":memory:" opens SQLite; "mysql://dsn" opens MySQL.
	DatabaseURL string `koanf:"database_url"`
}

// LLMConfig selects and parameterizes the LLM provider.
type LLMConfig struct {
	// Provider is one of "ollama", "openrouter", "anthropic", "gemini".
	Provider string `koanf:"provider"`

	OllamaBaseURL       string `koanf:"ollama_base_url"`
	OllamaRoutingModel  string `koanf:"ollama_routing_model"`
	OllamaAnalysisModel string `koanf:"ollama_analysis_model"`

	OpenRouterAPIKey string `koanf:"openrouter_api_key"`
	OpenRouterModel  string `koanf:"openrouter_model"`

	AnthropicAPIKey string `koanf:"anthropic_api_key"`
	AnthropicModel  string `koanf:"anthropic_model"`

	GeminiAPIKey string `koanf:"gemini_api_key"`
	GeminiModel  string `koanf:"gemini_model"`
}

// KeysConfig holds optional upstream credentials. Collectors degrade or
// refuse gracefully when a key is absent.
type KeysConfig struct {
	GitHubToken  string `koanf:"github_token"`
	SerperAPIKey string `koanf:"serper_api_key"`
	RapidAPIKey  string `koanf:"rapidapi_key"`
}

// DailyConfig parameterizes the daily briefing scheduler.
type DailyConfig struct {
	Hour    int    `koanf:"hour"`   // UTC wall clock
	Minute  int    `koanf:"minute"` // UTC wall clock
	Sources string `koanf:"sources"`
	GroupID string `koanf:"group_id"`
}

// CollectorConfig holds per-collector query defaults and the active set.
type CollectorConfig struct {
	Active           string `koanf:"active"`
	WeatherLocations string `koanf:"weather_locations"`
	StockSymbols     string `koanf:"stock_symbols"`
	RedditSubreddits string `koanf:"reddit_subreddits"`
	CryptoMode       string `koanf:"crypto_mode"`
}

// Default returns a Config populated with every default value. All fields
// have working defaults except API keys.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:            "ollama",
			OllamaBaseURL:       "http://localhost:11434",
			OllamaRoutingModel:  "llama3.1:8b",
			OllamaAnalysisModel: "llama3.1:8b",
			OpenRouterModel:     "deepseek/deepseek-chat",
			AnthropicModel:      "claude-3-5-haiku-latest",
			GeminiModel:         "gemini-2.0-flash",
		},
		Daily: DailyConfig{
			Hour:    7,
			Minute:  0,
			Sources: "news,crypto,stocks",
		},
		Collectors: CollectorConfig{
			Active:           "news,reddit,arxiv",
			WeatherLocations: "New York,San Francisco,London",
			StockSymbols:     "AAPL,GOOGL,MSFT,NVDA,TSLA",
			RedditSubreddits: "technology,machinelearning,artificial",
			CryptoMode:       "trending",
		},
		DatabaseURL: "sqlite://agent.db",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist), and AGENT_-prefixed environment
// variables, in increasing precedence.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// AGENT_DAILY_HOUR -> daily.hour, AGENT_DATABASE_URL -> database_url.
	// Two-level keys are split on the first underscore only, so
	// multi-word leaves like database_url survive.
	if err := k.Load(env.Provider("AGENT_", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading env vars: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// sections are the nesting prefixes recognized in env var names.
var sections = []string{"llm", "keys", "daily", "collectors"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "AGENT_"))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openrouter", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Daily.Hour < 0 || c.Daily.Hour > 23 {
		return fmt.Errorf("daily hour %d out of range [0,23]", c.Daily.Hour)
	}
	if c.Daily.Minute < 0 || c.Daily.Minute > 59 {
		return fmt.Errorf("daily minute %d out of range [0,59]", c.Daily.Minute)
	}
	return nil
}

// DailySources returns the scheduler source list as a slice. When
// daily.sources is unset the active collector list stands in.
func (c Config) DailySources() []string {
	if list := splitList(c.Daily.Sources); len(list) > 0 {
		return list
	}
	return c.ActiveCollectors()
}

// DailyQueries derives per-source briefing queries from the per-collector
// defaults: the stock symbol list, the first weather location, the first
// subreddit, and the crypto mode. Sources not covered here fall back to the
// scheduler's built-in query map.
func (c Config) DailyQueries() map[string]string {
	queries := make(map[string]string)
	if symbols := c.StockSymbols(); len(symbols) > 0 {
		queries["stocks"] = strings.Join(symbols, ",")
	}
	if locations := c.WeatherLocations(); len(locations) > 0 {
		queries["weather"] = locations[0]
	}
	if subreddits := c.RedditSubreddits(); len(subreddits) > 0 {
		queries["reddit"] = subreddits[0]
	}
	if c.Collectors.CryptoMode != "" {
		queries["crypto"] = c.Collectors.CryptoMode
	}
	return queries
}

// ActiveCollectors returns the active collector keys as a slice.
func (c Config) ActiveCollectors() []string { return splitList(c.Collectors.Active) }

// StockSymbols returns the default stock symbol list.
func (c Config) StockSymbols() []string { return splitList(c.Collectors.StockSymbols) }

// WeatherLocations returns the default weather locations.
func (c Config) WeatherLocations() []string { return splitList(c.Collectors.WeatherLocations) }

// RedditSubreddits returns the default subreddit list.
func (c Config) RedditSubreddits() []string { return splitList(c.Collectors.RedditSubreddits) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

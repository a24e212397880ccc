package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacob-sheng/iran-situation-room/internal/collect"
	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/llm"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Feeds     map[string][]Feed `yaml:"feeds"`
	RSS       RSS               `yaml:"rss"`
	LLM       LLM               `yaml:"llm"`
	Geocode   Geocode           `yaml:"geocode"`
	Fusion    Fusion            `yaml:"fusion"`
	Hotspots  Hotspots          `yaml:"hotspots"`
	SeedUnits []SeedUnit        `yaml:"seed_units"`
	Output    Output            `yaml:"output"`
	Server    Server            `yaml:"server"`
	Logging   Logging           `yaml:"logging"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type RSS struct {
	AggregatorURL  string        `yaml:"aggregator_url"`
	JSONProxyURL   string        `yaml:"json_proxy_url"`
	RawProxyURL    string        `yaml:"raw_proxy_url"`
	Concurrency    int           `yaml:"concurrency"`
	MaxTotal       int           `yaml:"max_total"`
	InitialBudget  time.Duration `yaml:"initial_budget"`
	RefreshBudget  time.Duration `yaml:"refresh_budget"`
	EnrichSnippets bool          `yaml:"enrich_snippets"`
}

type LLM struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Geocode struct {
	BaseURL     string        `yaml:"base_url"`
	MinInterval time.Duration `yaml:"min_interval"`
	CacheSize   int           `yaml:"cache_size"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Fusion struct {
	TargetCount  int           `yaml:"target_count"`
	MaxNewsItems int           `yaml:"max_news_items"`
	Scope        string        `yaml:"scope"`
	StepCount    int           `yaml:"step_count"`
	StepDuration time.Duration `yaml:"step_duration"`
	VerifyLimit  int           `yaml:"verify_limit"`
	Previews     bool          `yaml:"previews"`
}

type Hotspots struct {
	CellSize int           `yaml:"cell_size"`
	Max      int           `yaml:"max"`
	HalfLife time.Duration `yaml:"half_life"`
}

type SeedUnit struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Affiliation string     `yaml:"affiliation"`
	Coordinates [2]float64 `yaml:"coordinates"`
	Description string     `yaml:"description"`
	Velocity    []float64  `yaml:"velocity"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port            int           `yaml:"port"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for situationroom.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "situationroom")
}

// DataDir returns the XDG data directory for situationroom.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "situationroom")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/situationroom/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'situationroom init' to create a default config",
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

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults. Feeds and seed
// units fall back to the embedded catalogue when the file omits them.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		RSS: RSS{
			JSONProxyURL:  "https://api.rss2json.com/v1/api.json",
			RawProxyURL:   "https://api.allorigins.win/raw",
			Concurrency:   4,
			MaxTotal:      400,
			InitialBudget: 5500 * time.Millisecond,
			RefreshBudget: 3500 * time.Millisecond,
		},
		LLM: LLM{
			APIKeyEnv: "SITUATIONROOM_API_KEY",
			Model:     llm.DefaultModel,
			Timeout:   90 * time.Second,
		},
		Geocode: Geocode{
			BaseURL:     "https://nominatim.terrestris.de",
			MinInterval: 1100 * time.Millisecond,
			CacheSize:   200,
			UserAgent:   "situationroom/1.0",
			Timeout:     10 * time.Second,
		},
		Fusion: Fusion{
			TargetCount:  10,
			MaxNewsItems: fusion.DefaultMaxNewsItems,
			Scope:        string(intel.ScopeGlobal),
			StepCount:    fusion.DefaultStepCount,
			StepDuration: fusion.DefaultStepDuration,
			VerifyLimit:  fusion.DefaultVerifyLimit,
		},
		Hotspots: Hotspots{CellSize: 4, Max: 12, HalfLife: 36 * time.Hour},
		Server:   Server{Port: 8000, RefreshInterval: 15 * time.Minute},
		Logging:  Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Feeds) == 0 || cfg.SeedUnits == nil {
		var defaults struct {
			Feeds     map[string][]Feed `yaml:"feeds"`
			SeedUnits []SeedUnit        `yaml:"seed_units"`
		}
		if err := yaml.Unmarshal(DefaultConfigYAML, &defaults); err != nil {
			return nil, fmt.Errorf("parsing default catalogue: %w", err)
		}
		if len(cfg.Feeds) == 0 {
			cfg.Feeds = defaults.Feeds
		}
		if cfg.SeedUnits == nil {
			cfg.SeedUnits = defaults.SeedUnits
		}
	}

	for scope := range cfg.Feeds {
		if !knownScope(scope) {
			return nil, fmt.Errorf("unknown feed scope %q", scope)
		}
	}

	return cfg, nil
}

func knownScope(s string) bool {
	for _, scope := range intel.Scopes {
		if string(scope) == s {
			return true
		}
	}
	return false
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		if strings.HasPrefix(c.Output.DataDir, "~/") {
			return filepath.Join(homeDir(), c.Output.DataDir[2:])
		}
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "situationroom.db")
}

// Sources returns the feed catalogue keyed by scope.
func (c *Config) Sources() map[intel.Scope][]collect.Source {
	out := make(map[intel.Scope][]collect.Source, len(c.Feeds))
	for scope, feeds := range c.Feeds {
		s := intel.Scope(scope)
		for _, f := range feeds {
			out[s] = append(out[s], collect.Source{Name: f.Name, URL: f.URL, Scope: s})
		}
	}
	return out
}

// LLMSettings returns the model settings, reading the API key from the
// configured environment variable.
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Endpoint: c.LLM.Endpoint,
		APIKey:   os.Getenv(c.LLM.APIKeyEnv),
		Model:    c.LLM.Model,
		Timeout:  c.LLM.Timeout,
	}
}

// Units converts the seed units for the fusion engine.
func (c *Config) Units() []fusion.Unit {
	units := make([]fusion.Unit, 0, len(c.SeedUnits))
	for _, s := range c.SeedUnits {
		u := fusion.Unit{
			ID:          s.ID,
			Name:        s.Name,
			Type:        fusion.UnitType(s.Type),
			Affiliation: fusion.Affiliation(s.Affiliation),
			Coordinates: intel.Coordinates(s.Coordinates),
			Description: s.Description,
		}
		if len(s.Velocity) == 2 {
			v := intel.Coordinates{s.Velocity[0], s.Velocity[1]}
			u.Velocity = &v
		}
		units = append(units, u)
	}
	return units
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

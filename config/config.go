// Package config loads runtime configuration from the environment,
// optionally seeded from a dotenv file, plus indicator presets from YAML.
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"charting-systemv1/internal/model"
)

// FeedConfig selects and credentials the live market data feed.
type FeedConfig struct {
	// URL of the streaming feed. Empty means run the simulated feed.
	URL             string `envconfig:"FEED_URL"`
	ClientCode      string `envconfig:"FEED_CLIENT_CODE"`
	Password        string `envconfig:"FEED_PASSWORD"`
	TOTPSecret      string `envconfig:"FEED_TOTP_SECRET"`
	NativeIntervals string `envconfig:"FEED_NATIVE_INTERVALS" default:"1m"`
}

// HistoryConfig points at the historical candle API.
type HistoryConfig struct {
	URL   string `envconfig:"HISTORY_URL" required:"true"`
	Token string `envconfig:"HISTORY_TOKEN"`
}

// DrawingConfig points at the remote drawing persistence API.
type DrawingConfig struct {
	URL   string `envconfig:"DRAWING_API_URL"`
	Token string `envconfig:"DRAWING_API_TOKEN"`
}

// InfraConfig holds shared infrastructure settings.
type InfraConfig struct {
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/chartd.db"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`
	APIAddr       string `envconfig:"API_ADDR" default:":8080"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
}

// ChartConfig holds startup chart defaults.
type ChartConfig struct {
	// Comma-separated market:symbol pairs, e.g. "NSE:SBIN,NYSE:AAPL".
	Instruments string `envconfig:"CHART_INSTRUMENTS" default:"NSE:SBIN"`
	Interval    string `envconfig:"CHART_INTERVAL" default:"1m"`
	SyncGroup   string `envconfig:"CHART_SYNC_GROUP" default:"default"`
	PresetsPath string `envconfig:"CHART_PRESETS_PATH"`
}

// Config is the full application configuration.
type Config struct {
	Feed    FeedConfig
	History HistoryConfig
	Drawing DrawingConfig
	Infra   InfraConfig
	Chart   ChartConfig
}

// Load reads configuration from the environment. When configPath is non-empty
// and the file exists, it is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		if err := godotenv.Load(configPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "load dotenv %s", configPath)
			}
			log.Printf("[config] dotenv %s not found, using environment only", configPath)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	return &cfg, nil
}

// Instruments parses the configured market:symbol pairs. Malformed entries
// are skipped with a log line rather than failing startup.
func (c *ChartConfig) ParseInstruments() []model.InstrumentKey {
	parts := strings.Split(c.Instruments, ",")
	keys := make([]model.InstrumentKey, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		mkt, sym, ok := strings.Cut(p, ":")
		if !ok || mkt == "" || sym == "" {
			log.Printf("[config] skipping malformed instrument %q", p)
			continue
		}
		keys = append(keys, model.InstrumentKey{Market: mkt, Symbol: strings.ToUpper(sym)})
	}
	return keys
}

// NativeIntervalList splits the feed's native interval setting.
func (c *FeedConfig) NativeIntervalList() []string {
	parts := strings.Split(c.NativeIntervals, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Preset is a named bundle of indicator configs applied to a panel at startup.
type Preset struct {
	Name       string                  `yaml:"name"`
	Indicators []model.IndicatorConfig `yaml:"indicators"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads indicator presets from a YAML file. An empty path yields
// no presets and no error.
func LoadPresets(path string) (map[string][]model.IndicatorConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read presets %s", path)
	}
	var pf presetFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, errors.Wrapf(err, "parse presets %s", path)
	}
	out := make(map[string][]model.IndicatorConfig, len(pf.Presets))
	for _, p := range pf.Presets {
		if p.Name == "" {
			return nil, errors.Errorf("preset without a name in %s", path)
		}
		out[p.Name] = p.Indicators
	}
	return out, nil
}

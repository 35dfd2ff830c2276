// Package config assembles the service configuration from environment
// variables plus an optional YAML file. Every tuning constant of the
// scheduler, cache, and resource manager is a named field with a documented
// default — nothing is hidden in call sites.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "WORLDMOOD_CONFIG"

type Config struct {
	AppEnv      string `yaml:"app_env"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// CollectorURL is the upstream post collector service; AnalyzerURL is the
	// emotion analyzer whose model load/unload the resource manager drives.
	CollectorURL string `yaml:"collector_url"`
	AnalyzerURL  string `yaml:"analyzer_url"`

	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Resource    ResourceConfig    `yaml:"resource"`
	Cache       CacheConfig       `yaml:"cache"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`

	// Countries is the tracked set. Importance is assigned once at startup
	// from the tier tables and never mutated afterward.
	Countries  []string           `yaml:"countries"`
	Importance ImportanceConfig   `yaml:"importance"`
}

// SchedulerConfig names every constant of the priority formula. The weights
// and caps are design constants; they are surfaced here so operators can see
// them, not because retuning is expected.
type SchedulerConfig struct {
	// Priority score = (dataNeed*DataNeedWeight + importance*ImportanceWeight
	// + timeDecay*TimeDecayWeight) * successPenalty * activityBoost.
	DataNeedWeight   float64 `yaml:"data_need_weight"`
	ImportanceWeight float64 `yaml:"importance_weight"`
	TimeDecayWeight  float64 `yaml:"time_decay_weight"`

	// Data-need tiers by stored-post count: >=High -> 1.0, >=Medium -> 4.0,
	// >=Low -> 7.0, below -> 10.0.
	DataNeedHigh   int `yaml:"data_need_high"`
	DataNeedMedium int `yaml:"data_need_medium"`
	DataNeedLow    int `yaml:"data_need_low"`

	// FailureStreakLimit is the consecutive-failure count past which the
	// success penalty is halved.
	FailureStreakLimit int     `yaml:"failure_streak_limit"`
	NeverFetchedBoost  float64 `yaml:"never_fetched_boost"`
	TimeDecayCapHours  float64 `yaml:"time_decay_cap_hours"`
	ActivityBoostCap   float64 `yaml:"activity_boost_cap"`

	// UrgentThreshold marks a country as needing immediate attention;
	// SkipThreshold is the score below which a whole cycle is skipped.
	UrgentThreshold float64 `yaml:"urgent_threshold"`
	SkipThreshold   float64 `yaml:"skip_threshold"`

	OptimalBatchSize int `yaml:"optimal_batch_size"`
	MaxBatchSize     int `yaml:"max_batch_size"`

	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

type ResourceConfig struct {
	// IdleTimeout is how long the inference resources may sit unused before
	// the reaper releases them.
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type CacheConfig struct {
	WorldViewTTL      time.Duration `yaml:"worldview_ttl"`
	CountryEmotionTTL time.Duration `yaml:"country_emotion_ttl"`
	CountryStatsTTL   time.Duration `yaml:"country_stats_ttl"`
	GlobalStatsTTL    time.Duration `yaml:"global_stats_ttl"`
	CountryPostsTTL   time.Duration `yaml:"country_posts_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

type CoordinatorConfig struct {
	// FetchWorkers bounds how many countries of a batch are fetched at once.
	FetchWorkers int           `yaml:"fetch_workers"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// FetchRatePerSec throttles outbound fetches across the whole batch.
	FetchRatePerSec float64 `yaml:"fetch_rate_per_sec"`
}

// ImportanceConfig holds the static importance tiers. Countries absent from
// both tables get Default.
type ImportanceConfig struct {
	High    map[string]float64 `yaml:"high"`
	Medium  map[string]float64 `yaml:"medium"`
	Default float64            `yaml:"default"`
}

// Load reads the optional YAML file named by WORLDMOOD_CONFIG, then applies
// environment overrides, then validates.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.CollectorURL = getEnv("COLLECTOR_URL", cfg.CollectorURL)
	cfg.AnalyzerURL = getEnv("ANALYZER_URL", cfg.AnalyzerURL)
	if v := os.Getenv("FETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FETCH_WORKERS must be an integer: %w", err)
		}
		cfg.Coordinator.FetchWorkers = n
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if len(cfg.Countries) == 0 {
		return nil, fmt.Errorf("at least one tracked country is required")
	}
	if cfg.Scheduler.MaxBatchSize < cfg.Scheduler.OptimalBatchSize {
		return nil, fmt.Errorf("max_batch_size must be >= optimal_batch_size")
	}
	if cfg.Scheduler.MinInterval > cfg.Scheduler.MaxInterval {
		return nil, fmt.Errorf("min_interval must be <= max_interval")
	}
	if cfg.Coordinator.FetchWorkers < 1 {
		return nil, fmt.Errorf("fetch_workers must be >= 1")
	}

	return cfg, nil
}

// ImportanceFor resolves a country's static importance weight.
func (c *Config) ImportanceFor(country string) float64 {
	if w, ok := c.Importance.High[country]; ok {
		return w
	}
	if w, ok := c.Importance.Medium[country]; ok {
		return w
	}
	return c.Importance.Default
}

func defaults() *Config {
	return &Config{
		AppEnv:       "development",
		Port:         "8080",
		LogLevel:     "info",
		LogFormat:    "text",
		CollectorURL: "http://localhost:8090",
		AnalyzerURL:  "http://localhost:8091",
		Scheduler: SchedulerConfig{
			DataNeedWeight:     2.0,
			ImportanceWeight:   1.5,
			TimeDecayWeight:    1.0,
			DataNeedHigh:       100,
			DataNeedMedium:     50,
			DataNeedLow:        20,
			FailureStreakLimit: 3,
			NeverFetchedBoost:  5.0,
			TimeDecayCapHours:  3.0,
			ActivityBoostCap:   2.0,
			UrgentThreshold:    15.0,
			SkipThreshold:      5.0,
			OptimalBatchSize:   3,
			MaxBatchSize:       10,
			MinInterval:        30 * time.Second,
			MaxInterval:        10 * time.Minute,
		},
		Resource: ResourceConfig{
			IdleTimeout:  10 * time.Minute,
			ReapInterval: time.Minute,
		},
		Cache: CacheConfig{
			WorldViewTTL:      30 * time.Second,
			CountryEmotionTTL: 2 * time.Minute,
			CountryStatsTTL:   time.Minute,
			GlobalStatsTTL:    30 * time.Second,
			CountryPostsTTL:   3 * time.Minute,
			SweepInterval:     time.Minute,
		},
		Coordinator: CoordinatorConfig{
			FetchWorkers:    4,
			FetchTimeout:    30 * time.Second,
			FetchRatePerSec: 2,
		},
		Countries:  defaultCountries(),
		Importance: defaultImportance(),
	}
}

func defaultCountries() []string {
	return []string{
		"usa", "uk", "canada", "australia", "india", "germany", "france",
		"japan", "brazil", "mexico", "spain", "italy", "netherlands",
		"sweden", "norway", "denmark", "finland", "poland", "russia",
		"china", "south korea", "indonesia", "philippines", "thailand",
		"vietnam", "malaysia", "singapore", "turkey", "egypt",
		"south africa", "nigeria", "kenya", "argentina", "chile",
		"colombia", "peru", "venezuela", "new zealand", "ireland",
		"switzerland", "austria", "belgium", "greece", "portugal",
		"czech republic", "hungary", "romania", "ukraine", "israel",
		"saudi arabia", "uae", "pakistan", "bangladesh",
	}
}

func defaultImportance() ImportanceConfig {
	return ImportanceConfig{
		High: map[string]float64{
			"usa": 10.0, "india": 9.0, "china": 8.0, "brazil": 7.0,
			"uk": 9.0, "canada": 8.0, "australia": 7.0, "germany": 7.0,
			"france": 6.0, "japan": 6.0, "south korea": 6.0, "russia": 6.0,
			"mexico": 5.0, "spain": 5.0, "italy": 5.0, "turkey": 5.0,
		},
		Medium: map[string]float64{
			"poland": 4.0, "netherlands": 4.0, "sweden": 4.0, "argentina": 4.0,
			"indonesia": 4.0, "philippines": 4.0, "thailand": 4.0,
			"south africa": 4.0, "egypt": 4.0, "nigeria": 4.0,
		},
		Default: 2.0,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

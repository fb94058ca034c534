package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cron       CronConfig       `mapstructure:"cron"`
	Gamma      GammaConfig      `mapstructure:"gamma"`
	MarketSync MarketSyncConfig `mapstructure:"market_sync"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Research   ResearchConfig   `mapstructure:"research"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Sizing     SizingConfig     `mapstructure:"sizing"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MarketSync     string `mapstructure:"market_sync"`
	StalenessSweep string `mapstructure:"staleness_sweep"`
	QueueReclaim   string `mapstructure:"queue_reclaim"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MarketSyncConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PageLimit int  `mapstructure:"page_limit"`
	MaxPages  int  `mapstructure:"max_pages"`
}

type ProvidersConfig struct {
	OpenAI    ProviderCredential `mapstructure:"openai"`
	Anthropic ProviderCredential `mapstructure:"anthropic"`
}

type ProviderCredential struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

func (c ProviderCredential) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type ResearchConfig struct {
	Stream             string        `mapstructure:"stream"`
	Group              string        `mapstructure:"group"`
	Workers            int           `mapstructure:"workers"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxPolls           int           `mapstructure:"max_polls"`
	VisibilityTimeout  time.Duration `mapstructure:"visibility_timeout"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	DeepResearchModel  string        `mapstructure:"deep_research_model"`
	QuickSearchModel   string        `mapstructure:"quick_search_model"`
	SynthesisModel     string        `mapstructure:"synthesis_model"`
}

type EvaluationConfig struct {
	TopSources         int     `mapstructure:"top_sources"`
	FloorProbability   float64 `mapstructure:"floor_probability"`
	CeilingProbability float64 `mapstructure:"ceiling_probability"`
	EstimatorModel     string  `mapstructure:"estimator_model"`
	EstimatorMaxTokens int     `mapstructure:"estimator_max_tokens"`
}

type SizingConfig struct {
	MaxPositionPercent float64 `mapstructure:"max_position_percent"`
	MinCompositeScore  float64 `mapstructure:"min_composite_score"`
	MinEdge            float64 `mapstructure:"min_edge"`
	KellyDampening     float64 `mapstructure:"kelly_dampening"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.market_sync", "@every 10m")
	v.SetDefault("cron.staleness_sweep", "@every 5m")
	v.SetDefault("cron.queue_reclaim", "@every 1m")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")
	v.SetDefault("market_sync.enabled", true)
	v.SetDefault("market_sync.page_limit", 200)
	v.SetDefault("market_sync.max_pages", 5)

	v.SetDefault("research.stream", "research:tasks")
	v.SetDefault("research.group", "research-workers")
	v.SetDefault("research.workers", 10)
	v.SetDefault("research.poll_interval", "15s")
	v.SetDefault("research.max_polls", 80)
	v.SetDefault("research.visibility_timeout", "2m")
	v.SetDefault("research.staleness_threshold", "45m")
	v.SetDefault("research.deep_research_model", "o4-mini-deep-research")
	v.SetDefault("research.quick_search_model", "gpt-4o-mini")
	v.SetDefault("research.synthesis_model", "claude-sonnet-4-20250514")

	v.SetDefault("evaluation.top_sources", 10)
	v.SetDefault("evaluation.floor_probability", 0.06)
	v.SetDefault("evaluation.ceiling_probability", 0.94)
	v.SetDefault("evaluation.estimator_model", "claude-sonnet-4-20250514")
	v.SetDefault("evaluation.estimator_max_tokens", 2048)

	v.SetDefault("sizing.max_position_percent", 5.0)
	v.SetDefault("sizing.min_composite_score", 60)
	v.SetDefault("sizing.min_edge", 0.02)
	v.SetDefault("sizing.kelly_dampening", 0.5)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

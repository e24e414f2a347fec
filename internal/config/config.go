package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Load       LoadConfig       `yaml:"load" mapstructure:"load"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExtractConfig configures the raw CSV extraction stage.
type ExtractConfig struct {
	// MaxSampleRows caps schedule narrative extraction per file; 0 = no cap.
	MaxSampleRows int `yaml:"max_sample_rows" mapstructure:"max_sample_rows"`
}

// AnalysisConfig configures the private placement analysis stage.
type AnalysisConfig struct {
	City          string   `yaml:"city" mapstructure:"city"`
	State         string   `yaml:"state" mapstructure:"state"`
	CityVariants  []string `yaml:"city_variants" mapstructure:"city_variants"`
	MinFundAssets int64    `yaml:"min_fund_assets" mapstructure:"min_fund_assets"`
}

// LoadConfig configures persistence batch sizes.
type LoadConfig struct {
	AdviserBatchSize   int `yaml:"adviser_batch_size" mapstructure:"adviser_batch_size"`
	FilingBatchSize    int `yaml:"filing_batch_size" mapstructure:"filing_batch_size"`
	NarrativeBatchSize int `yaml:"narrative_batch_size" mapstructure:"narrative_batch_size"`
	LookupChunkSize    int `yaml:"lookup_chunk_size" mapstructure:"lookup_chunk_size"`
}

// EmbeddingsConfig configures the narrative embedding stage.
type EmbeddingsConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	OpenAIKey     string  `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	Model         string  `yaml:"model" mapstructure:"model"`
	BatchSize     int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchesPerSec float64 `yaml:"batches_per_sec" mapstructure:"batches_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from env files, an optional config.yaml, and the
// environment.
func Load() (*Config, error) {
	// Local env files mirror production secrets; missing files are fine.
	for _, f := range []string{"env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, eris.Wrapf(err, "config: load %s", f)
			}
		}
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RIAHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare env names kept for parity with existing deployments.
	_ = v.BindEnv("store.database_url", "RIAHUNTER_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("embeddings.provider", "RIAHUNTER_EMBEDDINGS_PROVIDER", "AI_PROVIDER")
	_ = v.BindEnv("embeddings.openai_key", "RIAHUNTER_EMBEDDINGS_OPENAI_KEY", "OPENAI_API_KEY")

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("extract.max_sample_rows", 1000)
	v.SetDefault("analysis.city", "ST. LOUIS")
	v.SetDefault("analysis.state", "MO")
	v.SetDefault("analysis.city_variants", []string{"ST. LOUIS", "ST LOUIS", "SAINT LOUIS"})
	v.SetDefault("analysis.min_fund_assets", 0)
	v.SetDefault("load.adviser_batch_size", 500)
	v.SetDefault("load.filing_batch_size", 500)
	v.SetDefault("load.narrative_batch_size", 250)
	v.SetDefault("load.lookup_chunk_size", 1000)
	v.SetDefault("embeddings.provider", "mock")
	v.SetDefault("embeddings.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.batch_size", 50)
	v.SetDefault("embeddings.batches_per_sec", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"port" validate:"required,numeric"`

	// Auth. Empty disables bearer auth on /api.
	APIKey string `mapstructure:"api_key"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Worker pool
	WorkerCount  int `mapstructure:"worker_count" validate:"gte=1,lte=256"`
	MaxQueueSize int `mapstructure:"max_queue_size" validate:"gte=1"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gte=1"`
	MaxBatchFiles  int   `mapstructure:"max_batch_files" validate:"gte=1,lte=1000"`

	// Job state
	JobTTL time.Duration `mapstructure:"job_ttl" validate:"gte=1s"`

	Segment SegmentConfig `mapstructure:"segment"`
}

// SegmentConfig holds the segmentation defaults applied when a request does
// not override them.
type SegmentConfig struct {
	IncludeSubChapters bool `mapstructure:"include_sub_chapters"`
	MinChapterLength   int  `mapstructure:"min_chapter_length" validate:"gte=10"`
	MaxChapterLength   int  `mapstructure:"max_chapter_length" validate:"gt=200"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           "8090",
		LogLevel:       "info",
		WorkerCount:    4,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		MaxBatchFiles:  20,
		JobTTL:         1 * time.Hour,
		Segment: SegmentConfig{
			IncludeSubChapters: true,
			MinChapterLength:   100,
			MaxChapterLength:   5000,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// DOCSEG_* environment variables, in increasing priority. With an empty
// cfgFile, docseg.yaml is looked up in the working directory and
// $HOME/.docseg; a missing file is not an error.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("DOCSEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is honored for platforms that inject it.
	if err := v.BindEnv("port", "DOCSEG_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("docseg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.docseg")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("port", d.Port)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("worker_count", d.WorkerCount)
	v.SetDefault("max_queue_size", d.MaxQueueSize)
	v.SetDefault("max_upload_bytes", d.MaxUploadBytes)
	v.SetDefault("max_batch_files", d.MaxBatchFiles)
	v.SetDefault("job_ttl", d.JobTTL)
	v.SetDefault("segment.include_sub_chapters", d.Segment.IncludeSubChapters)
	v.SetDefault("segment.min_chapter_length", d.Segment.MinChapterLength)
	v.SetDefault("segment.max_chapter_length", d.Segment.MaxChapterLength)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Segment.MaxChapterLength < c.Segment.MinChapterLength+100 {
		return fmt.Errorf("invalid config: segment.max_chapter_length %d must be at least segment.min_chapter_length+100 (%d)",
			c.Segment.MaxChapterLength, c.Segment.MinChapterLength+100)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

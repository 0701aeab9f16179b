package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"phenoprofile/internal/errors"
	"phenoprofile/internal/profiling"
)

// EnvPrefix namespaces environment overrides, e.g. PROFILER_SERVER_PORT
const EnvPrefix = "PROFILER"

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Pprof    PprofConfig    `mapstructure:"pprof"`
}

// DatabaseConfig holds database connection settings. An empty URL disables
// run and preference persistence.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        string `mapstructure:"port" validate:"required,numeric"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" validate:"gt=0"`
}

// LoggingConfig selects the log level and output format
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=error warn info debug trace ERROR WARN INFO DEBUG TRACE"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// AnalysisConfig carries the engine defaults
type AnalysisConfig struct {
	Control        int                       `mapstructure:"control" validate:"gte=0"`
	PreferencesDir string                    `mapstructure:"preferences_dir"` // empty: next to the data file
	Selection      profiling.SelectionConfig `mapstructure:"selection"`
	Sweep          profiling.SweepConfig     `mapstructure:"sweep"`
	Tiers          profiling.TierConfig      `mapstructure:"tiers"`
	Paired         profiling.PairedConfig    `mapstructure:"paired"`
}

// OutputConfig controls where result tables are written
type OutputConfig struct {
	Dir    string `mapstructure:"dir" validate:"required"`
	Format string `mapstructure:"format" validate:"oneof=csv xlsx"`
}

// PprofConfig holds performance profiling settings
type PprofConfig struct {
	Port    string `mapstructure:"port" validate:"omitempty,numeric"`
	Enabled bool   `mapstructure:"enabled"`
}

var validate = validator.New()

// Load reads configuration from an optional YAML file, PROFILER_* environment
// variables and defaults, then validates it. DATABASE_URL and PORT are also
// honoured for compatibility with the usual deployment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("phenoprofile")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("analysis.paired.baseline")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to read configuration")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to decode configuration")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	sweep := profiling.DefaultSweepConfig()
	return &Config{
		Server:  ServerConfig{Port: "8080", MaxUploadMB: 32},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Analysis: AnalysisConfig{
			Control:   0,
			Selection: profiling.DefaultSelectionConfig(),
			Sweep:     sweep,
			Paired:    profiling.DefaultPairedConfig(),
		},
		Output: OutputConfig{Dir: "./results", Format: "csv"},
		Pprof:  PprofConfig{Port: "6060"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("analysis.control", d.Analysis.Control)
	v.SetDefault("analysis.preferences_dir", "")
	v.SetDefault("analysis.selection.mean_difference", d.Analysis.Selection.MeanDifference)
	v.SetDefault("analysis.selection.deviation_difference", d.Analysis.Selection.DeviationDifference)
	v.SetDefault("analysis.selection.auto", false)
	v.SetDefault("analysis.sweep.min_threshold", d.Analysis.Sweep.MinThreshold)
	v.SetDefault("analysis.sweep.max_threshold", d.Analysis.Sweep.MaxThreshold)
	v.SetDefault("analysis.sweep.step", d.Analysis.Sweep.Step)
	v.SetDefault("analysis.sweep.min_count", d.Analysis.Sweep.MinCount)
	v.SetDefault("analysis.sweep.control_ceiling", d.Analysis.Sweep.ControlCeiling)
	v.SetDefault("analysis.sweep.workers", 0)
	v.SetDefault("analysis.tiers.high", 0)
	v.SetDefault("analysis.tiers.medium", 0)
	v.SetDefault("analysis.paired.min_multiplier", d.Analysis.Paired.MinMultiplier)
	v.SetDefault("analysis.paired.max_multiplier", d.Analysis.Paired.MaxMultiplier)
	v.SetDefault("analysis.paired.step", d.Analysis.Paired.Step)
	v.SetDefault("analysis.paired.separator", d.Analysis.Paired.Separator)
	v.SetDefault("analysis.paired.workers", 0)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)

	v.SetDefault("pprof.port", d.Pprof.Port)
	v.SetDefault("pprof.enabled", false)
}

// Validate checks struct tags and reports the first offending field as a
// CONFIG_INVALID error.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigInvalid(fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

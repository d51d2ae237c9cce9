package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wavechat/wavechat/globals"
)

const (
	defaultRetentionWindow = 30 * time.Minute
	defaultRetentionSpec   = "@hourly"
	defaultPageSize        = 50
	defaultMaxPageSize     = 100
	defaultLookupTimeout   = 3 * time.Second
	defaultLookupCooldown  = 30 * time.Second
	defaultLookupWorkers   = 8
)

// Config is the global configuration object which is filled via the
// configuration file, environment (WAVECHAT_ prefix) and flags.
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	UserDirConfig     UserDirConfig     `mapstructure:"userdir"`
	RetentionConfig   RetentionConfig   `mapstructure:"retention"`
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	LogLevel          string            `mapstructure:"log_level"`
	AdminUser         int64             `mapstructure:"admin_user"`
}

// PersistenceConfig selects the storage back end. Type is one of
// "sqlite", "postgres" or "buntdb".
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// AuthConfig holds the shared secret used to verify gateway-issued
// bearer tokens. Token issuance happens elsewhere.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// UserDirConfig configures the user-directory collaborator client used
// for snapshot enrichment, the ignore check and guest cleanup.
type UserDirConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	FailureCooldown time.Duration `mapstructure:"failure_cooldown"`
	LookupWorkers   int           `mapstructure:"lookup_workers"`
}

// RetentionConfig configures the public-message retention sweep. The
// cron spec drives the recurring sweep, the window is also applied by
// the on-demand trigger.
type RetentionConfig struct {
	Window   time.Duration `mapstructure:"window"`
	CronSpec string        `mapstructure:"cron_spec"`
}

// HistoryConfig bounds message pagination.
type HistoryConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.Int64P("admin-user", "a", 0, "id of the admin user")
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at
// configPath, which can either point to a single TOML file or to a
// directory, in which case all *.toml files in this directory are
// concatenated. It returns a Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("retention.window", defaultRetentionWindow)
	viper.SetDefault("retention.cron_spec", defaultRetentionSpec)
	viper.SetDefault("history.page_size", defaultPageSize)
	viper.SetDefault("history.max_page_size", defaultMaxPageSize)
	viper.SetDefault("userdir.timeout", defaultLookupTimeout)
	viper.SetDefault("userdir.failure_cooldown", defaultLookupCooldown)
	viper.SetDefault("userdir.lookup_workers", defaultLookupWorkers)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("WAVECHAT")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadsdf/ostromd/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
	// If not assigned, the server will serve embedded files.
	// If assigned, the server will serve files from the directory,
	// that must contain a "static" directory. Useful for development.
	WwwDir *string `mapstructure:"www_dir"`
}

type AppConfigDatabase struct {
	Path string
	// How many days data should be stored in database before it gets purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 30
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigOstrom struct {
	ClientID     string `mapstructure:"client_id"`     // Issued in the Ostrom developer portal
	ClientSecret string `mapstructure:"client_secret"` // Issued in the Ostrom developer portal
	Zip          string `mapstructure:"zip"`           // Delivery address zip code, scopes the spot prices
	// Contract to fetch consumption for. When empty the first active
	// contract is picked up at startup.
	ContractID *string `mapstructure:"contract_id"`
	// Override the production endpoints, e.g. for the sandbox environment
	AuthUrl *string `mapstructure:"auth_url"`
	ApiUrl  *string `mapstructure:"api_url"`
	RunAt   *string `mapstructure:"run_at"`
}

func (o AppConfigOstrom) GetContractID() string {
	if o.ContractID == nil {
		return ""
	}
	return *o.ContractID
}

func (o AppConfigOstrom) GetAuthUrl() string {
	if o.AuthUrl == nil {
		return "https://auth.production.ostrom-api.io"
	}
	return *o.AuthUrl
}

func (o AppConfigOstrom) GetApiUrl() string {
	if o.ApiUrl == nil {
		return "https://production.ostrom-api.io"
	}
	return *o.ApiUrl
}

// GetRunAt is the cron schedule for the price refresh, shortly past the
// top of the hour so a fresh hour bucket is always covered.
func (o AppConfigOstrom) GetRunAt() string {
	if o.RunAt == nil {
		return "1 * * * *"
	}
	return *o.RunAt
}

type AppConfigMqtt struct {
	Host     string
	Port     int16
	Username string
	Password string
	// Root of the topic tree, default: "ostromd"
	TopicPrefix *string `mapstructure:"topic_prefix"`
	// Home Assistant discovery prefix, default: "homeassistant"
	DiscoveryPrefix *string `mapstructure:"discovery_prefix"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	if m.TopicPrefix == nil {
		return "ostromd"
	}
	return *m.TopicPrefix
}

func (m AppConfigMqtt) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == nil {
		return "homeassistant"
	}
	return *m.DiscoveryPrefix
}

type AppConfigDisplay struct {
	// Timezone for day windows and displayed times, default: Europe/Berlin
	Timezone *string `mapstructure:"timezone"`
}

func (d AppConfigDisplay) GetTimezone() string {
	if d.Timezone == nil {
		return "Europe/Berlin"
	}
	return *d.Timezone
}

func (d AppConfigDisplay) GetLocation() (*time.Location, error) {
	return time.LoadLocation(d.GetTimezone())
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return "JSON"
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return "TEXT"
	}
	return "JSON"
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api      AppConfigApi
	Database AppConfigDatabase
	Ostrom   AppConfigOstrom
	Mqtt     AppConfigMqtt
	Display  AppConfigDisplay
	Logging  AppConfigLogging
}

func Load(path string) (*AppConfig, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c AppConfig

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

// Watch re-reads the config file on change and hands the re-unmarshalled
// result to onChange. Malformed edits are reported and skipped, the
// running config stays as it was.
func Watch(logger *slog.Logger, onChange func(*AppConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write && e.Op&fsnotify.Create != fsnotify.Create {
			return
		}
		var c AppConfig
		if err := viper.Unmarshal(&c); err != nil {
			logger.Warn("ignoring config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config file changed", slog.String("file", e.Name))
		onChange(&c)
	})
	viper.WatchConfig()
}

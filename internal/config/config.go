package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "vblot.cfg.json"

// StorageConfig holds download bundle backend settings
type StorageConfig struct {
	Type            string `json:"type" mapstructure:"type"`
	OutputDir       string `json:"outputDir" mapstructure:"outputDir"`
	CompressSummary bool   `json:"compressSummary" mapstructure:"compressSummary"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// SetDefaults registers every default value. Load calls it; tests and the
// CLI may call it directly when no config file is involved.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vblotlogs")

	viper.SetDefault("layout.offsetTop", 40)
	viper.SetDefault("layout.offsetBottom", 40)
	viper.SetDefault("layout.offsetLeft", 40)
	viper.SetDefault("layout.offsetRight", 40)
	viper.SetDefault("layout.bandWidth", 20)
	viper.SetDefault("layout.bandSpacing", 10)
	viper.SetDefault("layout.labelFontSize", 16)
	viper.SetDefault("layout.markerFontSize", 16)

	viper.SetDefault("server.addr", ":8050")
	viper.SetDefault("server.requestTimeout", "30s")
	viper.SetDefault("server.maxUploadBytes", 32<<20)

	viper.SetDefault("storage.type", "dir")
	viper.SetDefault("storage.outputDir", "./output")
	viper.SetDefault("storage.compressSummary", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "virtualblot")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "60s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load sets defaults, binds VBLOT_ environment variables and reads the JSON
// config file from configDir. A missing file is not an error; a malformed one is.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("VBLOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// BindFlags lets command-line flags override config keys. flagToKey maps a
// flag name to its config key; flags that were not set keep the config value.
func BindFlags(fs *pflag.FlagSet, flagToKey map[string]string) error {
	for name, key := range flagToKey {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetLayoutDefaults returns the configured image layout.
func GetLayoutDefaults() core.Layout {
	return core.Layout{
		OffsetTop:      viper.GetInt("layout.offsetTop"),
		OffsetBottom:   viper.GetInt("layout.offsetBottom"),
		OffsetLeft:     viper.GetInt("layout.offsetLeft"),
		OffsetRight:    viper.GetInt("layout.offsetRight"),
		BandWidth:      viper.GetInt("layout.bandWidth"),
		BandSpacing:    viper.GetInt("layout.bandSpacing"),
		LabelFontSize:  viper.GetInt("layout.labelFontSize"),
		MarkerFontSize: viper.GetInt("layout.markerFontSize"),
	}
}

// GetStorageConfig returns the download bundle backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:            viper.GetString("storage.type"),
		OutputDir:       viper.GetString("storage.outputDir"),
		CompressSummary: viper.GetBool("storage.compressSummary"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetServerConfig returns the HTTP API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           viper.GetString("server.addr"),
		RequestTimeout: viper.GetDuration("server.requestTimeout"),
		MaxUploadBytes: viper.GetInt64("server.maxUploadBytes"),
	}
}

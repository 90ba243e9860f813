// Package config loads the service configuration from .env, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type AppConfig struct {
	Port           int           `koanf:"port"            validate:"required,min=1,max=65535"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"min=1s"`

	LogLevel  string `koanf:"log_level"  validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`
	LogFile   string `koanf:"log_file"`

	// HTTPTimeout bounds every upstream call.
	HTTPTimeout           time.Duration `koanf:"http_timeout"            validate:"min=100ms"`
	UpstreamMaxRetries    int           `koanf:"upstream_max_retries"    validate:"min=0,max=10"`
	UpstreamRetryInterval time.Duration `koanf:"upstream_retry_interval" validate:"min=10ms"`

	OpenWeatherAPIKey string `koanf:"openweather_api_key" validate:"required"`
	WeatherAPIKey     string `koanf:"weatherapi_api_key"  validate:"required_if=HistoricalProvider weatherapi"`
	YouTubeAPIKey     string `koanf:"youtube_api_key"`
	MapsAPIKey        string `koanf:"maps_api_key"`
	VideoLimit        int    `koanf:"video_limit" validate:"min=1,max=25"`

	HistoricalProvider string `koanf:"historical_provider" validate:"oneof=synthetic openmeteo weatherapi"`

	StoreDriver     string `koanf:"store_driver"     validate:"oneof=memory sqlite mongo"`
	SQLitePath      string `koanf:"sqlite_path"      validate:"required_if=StoreDriver sqlite"`
	MongoURI        string `koanf:"mongo_uri"        validate:"required_if=StoreDriver mongo"`
	MongoDatabase   string `koanf:"mongo_database"   validate:"required_if=StoreDriver mongo"`
	MongoCollection string `koanf:"mongo_collection" validate:"required_if=StoreDriver mongo"`

	// ExportInterval of zero disables the scheduled export.
	ExportInterval time.Duration `koanf:"export_interval" validate:"min=0"`
	ExportPath     string        `koanf:"export_path"     validate:"required"`
	ExportFormat   string        `koanf:"export_format"   validate:"oneof=structured json tabular csv"`
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// envKeys maps the recognised environment variables to config keys.
var envKeys = map[string]string{
	"PORT":                    "port",
	"REQUEST_TIMEOUT":         "request_timeout",
	"LOG_LEVEL":               "log_level",
	"LOG_FORMAT":              "log_format",
	"LOG_FILE":                "log_file",
	"HTTP_TIMEOUT":            "http_timeout",
	"UPSTREAM_MAX_RETRIES":    "upstream_max_retries",
	"UPSTREAM_RETRY_INTERVAL": "upstream_retry_interval",
	"OPENWEATHER_API_KEY":     "openweather_api_key",
	"WEATHERAPI_API_KEY":      "weatherapi_api_key",
	"YOUTUBE_API_KEY":         "youtube_api_key",
	"MAPS_API_KEY":            "maps_api_key",
	"VIDEO_LIMIT":             "video_limit",
	"HISTORICAL_PROVIDER":     "historical_provider",
	"STORE_DRIVER":            "store_driver",
	"SQLITE_PATH":             "sqlite_path",
	"MONGO_URI":               "mongo_uri",
	"MONGO_DATABASE":          "mongo_database",
	"MONGO_COLLECTION":        "mongo_collection",
	"EXPORT_INTERVAL":         "export_interval",
	"EXPORT_PATH":             "export_path",
	"EXPORT_FORMAT":           "export_format",
}

func defaults() map[string]any {
	return map[string]any{
		"port":                    8080,
		"request_timeout":         "20s",
		"log_level":               "info",
		"log_format":              "json",
		"log_file":                "",
		"http_timeout":            "10s",
		"upstream_max_retries":    0,
		"upstream_retry_interval": "500ms",
		"video_limit":             5,
		"historical_provider":     "synthetic",
		"store_driver":            "sqlite",
		"sqlite_path":             "data/weather-history.db",
		"mongo_database":          "weather_app_db",
		"mongo_collection":        "weather_history",
		"export_interval":         "0s",
		"export_path":             "exports/weather_history_export",
		"export_format":           "tabular",
	}
}

var validate = newValidator()

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToUpper(f.Tag.Get("koanf"))
	})
	return v
}

// Load reads configuration with the following precedence (highest to lowest):
//  1. Environment variables (including those from .env)
//  2. YAML file named by CONFIG_FILE
//  3. Default values
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on a config the service cannot start with.
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

func formatFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", name, fe.Tag())
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	KeyPort               = "PORT"
	KeyAppEnv             = "APP_ENV"
	KeyWeatherAPIKey      = "WEATHERAPI_API_KEY"
	KeyWeatherAPIBaseURL  = "WEATHERAPI_BASE_URL"
	KeyWeatherAPITimeout  = "WEATHERAPI_TIMEOUT"
	KeyWeatherAPIMaxRPS   = "WEATHERAPI_MAX_RPS"
	KeyRedisURL           = "REDIS_URL"
	KeyRateLimitWindowMS  = "RATE_LIMIT_WINDOW_MS"
	KeyRateLimitMax       = "RATE_LIMIT_MAX"
	KeyHealthCheckTimeout = "HEALTH_CHECK_TIMEOUT"
	KeyShutdownTimeout    = "SHUTDOWN_TIMEOUT"
	KeyCacheWarmLocations = "CACHE_WARM_LOCATIONS"
	KeyTrustProxy         = "TRUST_PROXY"
)

const defaultAppEnv = "development"

var requiredKeys = []string{
	KeyPort,
	KeyWeatherAPIKey,
	KeyWeatherAPIBaseURL,
	KeyRedisURL,
	KeyRateLimitWindowMS,
	KeyRateLimitMax,
}

var allKeys = []string{
	KeyPort, KeyAppEnv, KeyWeatherAPIKey, KeyWeatherAPIBaseURL, KeyWeatherAPITimeout,
	KeyWeatherAPIMaxRPS, KeyRedisURL, KeyRateLimitWindowMS, KeyRateLimitMax,
	KeyHealthCheckTimeout, KeyShutdownTimeout, KeyCacheWarmLocations, KeyTrustProxy,
}

// Config holds service configuration.
type Config struct {
	Port   string
	AppEnv string

	WeatherAPIKey     string
	WeatherAPIBaseURL string
	WeatherAPITimeout time.Duration
	WeatherAPIMaxRPS  int // 0 disables outbound throttling

	RedisURL string

	RateLimitWindow time.Duration
	RateLimitMax    int
	// TrustProxy keys rate limits by the first X-Forwarded-For hop. Enable only
	// behind a proxy that sets the header.
	TrustProxy bool

	HealthCheckTimeout time.Duration
	ShutdownTimeout    time.Duration

	CacheWarmLocations []string
}

type fileConfig struct {
	Server struct {
		Port       string `yaml:"port"`
		TrustProxy string `yaml:"trust_proxy"`
	} `yaml:"server"`

	WeatherAPI struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
		MaxRPS  string `yaml:"max_rps"`
	} `yaml:"weather_api"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	RateLimit struct {
		WindowMS string `yaml:"window_ms"`
		Max      string `yaml:"max"`
	} `yaml:"rate_limit"`

	Health struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Cache struct {
		WarmLocations []string `yaml:"warm_locations"`
	} `yaml:"cache"`
}

func (fc fileConfig) values() map[string]string {
	return map[string]string{
		KeyPort:               fc.Server.Port,
		KeyWeatherAPIBaseURL:  fc.WeatherAPI.BaseURL,
		KeyWeatherAPITimeout:  fc.WeatherAPI.Timeout,
		KeyWeatherAPIMaxRPS:   fc.WeatherAPI.MaxRPS,
		KeyRedisURL:           fc.Redis.URL,
		KeyRateLimitWindowMS:  fc.RateLimit.WindowMS,
		KeyRateLimitMax:       fc.RateLimit.Max,
		KeyHealthCheckTimeout: fc.Health.Timeout,
		KeyShutdownTimeout:    fc.Shutdown.Timeout,
		KeyCacheWarmLocations: strings.Join(fc.Cache.WarmLocations, ","),
		KeyTrustProxy:         fc.Server.TrustProxy,
	}
}

// Load reads configuration relative to the working directory. See LoadDir.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir merges, lowest precedence first: config/{APP_ENV}.yaml, .env, and the
// process environment. Both files are optional. APP_ENV defaults to development.
func LoadDir(dir string) (*Config, error) {
	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	appEnv := firstNonEmpty(os.Getenv(KeyAppEnv), dotenv[KeyAppEnv], defaultAppEnv)

	values := map[string]string{}
	configPath := filepath.Join(dir, "config", appEnv+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
		values = fc.values()
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config file: %w", err)
	}

	for k, v := range dotenv {
		values[k] = v
	}
	for _, k := range allKeys {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}
	values[KeyAppEnv] = appEnv

	return build(values)
}

func build(v map[string]string) (*Config, error) {
	for _, k := range requiredKeys {
		if strings.TrimSpace(v[k]) == "" {
			return nil, fmt.Errorf("missing required configuration: %s", k)
		}
	}

	cfg := &Config{
		Port:              strings.TrimSpace(v[KeyPort]),
		AppEnv:            v[KeyAppEnv],
		WeatherAPIKey:     strings.TrimSpace(v[KeyWeatherAPIKey]),
		WeatherAPIBaseURL: strings.TrimSpace(v[KeyWeatherAPIBaseURL]),
		RedisURL:          strings.TrimSpace(v[KeyRedisURL]),
	}

	var err error
	if _, err = positiveInt(v, KeyPort, 0); err != nil {
		return nil, err
	}
	windowMS, err := positiveInt(v, KeyRateLimitWindowMS, 0)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowMS) * time.Millisecond
	if cfg.RateLimitMax, err = positiveInt(v, KeyRateLimitMax, 0); err != nil {
		return nil, err
	}
	if cfg.WeatherAPIMaxRPS, err = nonNegativeInt(v, KeyWeatherAPIMaxRPS); err != nil {
		return nil, err
	}
	if cfg.WeatherAPITimeout, err = duration(v, KeyWeatherAPITimeout, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HealthCheckTimeout, err = duration(v, KeyHealthCheckTimeout, 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = duration(v, KeyShutdownTimeout, 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = boolean(v, KeyTrustProxy); err != nil {
		return nil, err
	}
	cfg.CacheWarmLocations = splitList(v[KeyCacheWarmLocations])

	return cfg, nil
}

func positiveInt(v map[string]string, key string, def int) (int, error) {
	s := strings.TrimSpace(v[key])
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return n, nil
}

func nonNegativeInt(v map[string]string, key string) (int, error) {
	s := strings.TrimSpace(v[key])
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return n, nil
}

func duration(v map[string]string, key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(v[key])
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}

// boolean parses key with strconv.ParseBool. Unset means false.
func boolean(v map[string]string, key string) (bool, error) {
	s := strings.TrimSpace(v[key])
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return b, nil
}

// splitList splits a comma-separated list. Coordinate pairs cannot be listed;
// use place names.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

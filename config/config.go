// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"bitwise74/account-api/db"
	"bitwise74/account-api/pkg/security"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", "", "Path to a config.toml file")
	logLevel   = pflag.String("log-level", "", "Overrides app.log_level")

	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validLogFormats = []string{"console", "json"}
	validDBTypes    = []string{"mongo", "postgres", "sqlite"}
	tokenKinds      = []string{"access", "refresh", "email_verify", "forgot_password"}
)

type Config struct {
	LogLevel  string
	LogFormat string

	Port      int
	CORS      []string
	BodyLimit int64

	DB       db.Config
	Tokens   security.TokenConfig
	Password PasswordConfig

	CleanupSchedule string
	ProfileCacheTTL time.Duration
	// MaxConcurrency bounds concurrent field checks per request, 0 is no limit
	MaxConcurrency int
}

type PasswordConfig struct {
	Secret      string
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

func genSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses flags, binds the environment and reads config.toml if there
// is one. It returns an error if something is critically wrong and the
// application can't run because of that.
func Setup() (*Config, error) {
	pflag.Parse()

	v := viper.GetViper()
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if *logLevel != "" {
		v.Set("app.log_level", *logLevel)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	return Load(v)
}

// Load applies env bindings and defaults to v and validates the result
func Load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")
	v.BindEnv("app.log_format", "APP_LOG_FORMAT")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.cors", "HOST_CORS")
	v.BindEnv("host.body_limit", "HOST_BODY_LIMIT")

	v.BindEnv("db.type", "DB_TYPE")
	v.BindEnv("db.dsn", "DB_DSN")
	v.BindEnv("db.mongo_uri", "DB_MONGO_URI")
	v.BindEnv("db.name", "DB_NAME")
	v.BindEnv("db.timeout", "DB_TIMEOUT")

	for _, k := range tokenKinds {
		v.BindEnv("jwt."+k+"_secret", "JWT_"+strings.ToUpper(k)+"_SECRET")
		v.BindEnv("jwt."+k+"_ttl", "JWT_"+strings.ToUpper(k)+"_TTL")
	}

	v.BindEnv("security.password_secret", "SECURITY_PASSWORD_SECRET")
	v.BindEnv("security.argon_memory", "SECURITY_ARGON_MEMORY")
	v.BindEnv("security.argon_iterations", "SECURITY_ARGON_ITERATIONS")
	v.BindEnv("security.argon_parallelism", "SECURITY_ARGON_PARALLELISM")

	v.BindEnv("cleanup.schedule", "CLEANUP_SCHEDULE")
	v.BindEnv("cache.profile_ttl", "CACHE_PROFILE_TTL")
	v.BindEnv("validation.max_concurrency", "VALIDATION_MAX_CONCURRENCY")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:5173"})
	v.SetDefault("host.body_limit", 1<<20)

	v.SetDefault("db.type", "mongo")
	v.SetDefault("db.name", "accounts")
	v.SetDefault("db.timeout", "5s")

	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "2400h")
	v.SetDefault("jwt.email_verify_ttl", "168h")
	v.SetDefault("jwt.forgot_password_ttl", "168h")

	v.SetDefault("security.argon_memory", 64*1024)
	v.SetDefault("security.argon_iterations", 3)
	v.SetDefault("security.argon_parallelism", 2)

	v.SetDefault("cleanup.schedule", "@daily")
	v.SetDefault("cache.profile_ttl", "30s")
	v.SetDefault("validation.max_concurrency", 0)

	cfg := &Config{
		LogLevel:  v.GetString("app.log_level"),
		LogFormat: v.GetString("app.log_format"),
		Port:      v.GetInt("host.port"),
		CORS:      splitList(v.GetStringSlice("host.cors")),
		BodyLimit: v.GetInt64("host.body_limit"),
		DB: db.Config{
			Type:     v.GetString("db.type"),
			DSN:      v.GetString("db.dsn"),
			MongoURI: v.GetString("db.mongo_uri"),
			Name:     v.GetString("db.name"),
			Timeout:  v.GetDuration("db.timeout"),
		},
		Tokens: security.TokenConfig{
			Access:         kindConfig(v, "access"),
			Refresh:        kindConfig(v, "refresh"),
			EmailVerify:    kindConfig(v, "email_verify"),
			ForgotPassword: kindConfig(v, "forgot_password"),
		},
		Password: PasswordConfig{
			Secret:      v.GetString("security.password_secret"),
			Memory:      v.GetUint32("security.argon_memory"),
			Iterations:  v.GetUint32("security.argon_iterations"),
			Parallelism: uint8(v.GetUint("security.argon_parallelism")),
		},
		CleanupSchedule: v.GetString("cleanup.schedule"),
		ProfileCacheTTL: v.GetDuration("cache.profile_ttl"),
		MaxConcurrency:  v.GetInt("validation.max_concurrency"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func kindConfig(v *viper.Viper, kind string) security.KindConfig {
	return security.KindConfig{
		Secret: v.GetString("jwt." + kind + "_secret"),
		TTL:    v.GetDuration("jwt." + kind + "_ttl"),
	}
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validLogFormats, c.LogFormat) {
		return errors.New("invalid log format provided")
	}

	if c.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if c.BodyLimit <= 0 {
		return errors.New("host.body_limit must be bigger than 0")
	}

	switch c.DB.Type {
	case "mongo":
		if c.DB.MongoURI == "" {
			return errors.New("db.mongo_uri can't be empty")
		}
	case "postgres", "sqlite":
		if c.DB.DSN == "" {
			return errors.New("db.dsn can't be empty")
		}
	default:
		return fmt.Errorf("invalid database type provided, must be one of %v", validDBTypes)
	}

	if c.DB.Timeout <= 0 {
		return errors.New("db.timeout must be bigger than 0")
	}

	kinds := map[string]security.KindConfig{
		"access":          c.Tokens.Access,
		"refresh":         c.Tokens.Refresh,
		"email_verify":    c.Tokens.EmailVerify,
		"forgot_password": c.Tokens.ForgotPassword,
	}

	seen := map[string]string{}
	for _, k := range tokenKinds {
		kc := kinds[k]

		if kc.Secret == "" {
			return fmt.Errorf("jwt.%s_secret can't be empty, here's a random one you can use: %s", k, genSecret())
		}

		if other, ok := seen[kc.Secret]; ok {
			return fmt.Errorf("jwt.%s_secret and jwt.%s_secret must be different", other, k)
		}
		seen[kc.Secret] = k

		if kc.TTL <= 0 {
			return fmt.Errorf("jwt.%s_ttl must be bigger than 0", k)
		}
	}

	if c.Password.Secret == "" {
		return fmt.Errorf("security.password_secret can't be empty, here's a random one you can use: %s", genSecret())
	}

	if c.Password.Memory == 0 || c.Password.Iterations == 0 || c.Password.Parallelism == 0 {
		return errors.New("argon parameters must be bigger than 0")
	}

	if c.CleanupSchedule == "" {
		return errors.New("cleanup.schedule can't be empty")
	}

	if c.ProfileCacheTTL <= 0 {
		return errors.New("cache.profile_ttl must be bigger than 0")
	}

	if c.MaxConcurrency < 0 {
		return errors.New("validation.max_concurrency can't be negative")
	}

	return nil
}

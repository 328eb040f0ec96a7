package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment
// variables, an optional .env file and an optional config file.
type Config struct {
	ServerPort  string
	SwaggerHost string
	ResetDB     bool

	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret string
	TokenTTL  time.Duration

	TeamMatching       string
	TeamRequestTTL     time.Duration
	SweepInterval      time.Duration
	TeamRequestPageLen int

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3KeyPrefix string
	AWSProfile  string
	PDFMaxBytes int64
	PresignTTL  time.Duration

	LogLevel  string
	LogFormat string
}

const (
	// MatchingOff leaves team requests open until their owners act on them.
	MatchingOff = "off"
	// MatchingEager runs the matching policy as part of every create.
	MatchingEager = "eager"
)

var defaults = map[string]any{
	"SERVER_PORT":                 "8080",
	"DB_DRIVER":                   "mysql",
	"DB_DSN":                      "user:password@tcp(localhost:3306)/coursehub?charset=utf8mb4&parseTime=True&loc=Local",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_DB":                    0,
	"REDIS_PASSWORD":              "",
	"JWT_SECRET":                  "",
	"TOKEN_TTL":                   "12h",
	"TEAM_MATCHING":               MatchingOff,
	"TEAM_REQUEST_TTL":            "0s",
	"TEAM_REQUEST_SWEEP_INTERVAL": "10m",
	"TEAM_REQUEST_PAGE_SIZE":      100,
	"S3_BUCKET":                   "",
	"S3_REGION":                   "us-east-1",
	"S3_ENDPOINT":                 "",
	"S3_KEY_PREFIX":               "pdf",
	"AWS_PROFILE":                 "",
	"PDF_MAX_BYTES":               20 << 20,
	"PRESIGN_TTL":                 "15m",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "text",
	"SWAGGER_HOST":                "",
	"RESET_DB":                    false,
}

// Load builds Config from the environment with sensible defaults.
func Load() (*Config, error) {
	// Variables already present in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServerPort:         v.GetString("SERVER_PORT"),
		SwaggerHost:        v.GetString("SWAGGER_HOST"),
		ResetDB:            v.GetBool("RESET_DB"),
		DBDriver:           strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBDSN:              v.GetString("DB_DSN"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisDB:            v.GetInt("REDIS_DB"),
		RedisPass:          v.GetString("REDIS_PASSWORD"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		TeamMatching:       strings.ToLower(strings.TrimSpace(v.GetString("TEAM_MATCHING"))),
		TeamRequestTTL:     v.GetDuration("TEAM_REQUEST_TTL"),
		SweepInterval:      v.GetDuration("TEAM_REQUEST_SWEEP_INTERVAL"),
		TeamRequestPageLen: v.GetInt("TEAM_REQUEST_PAGE_SIZE"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3Region:           v.GetString("S3_REGION"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3KeyPrefix:        strings.Trim(v.GetString("S3_KEY_PREFIX"), "/"),
		AWSProfile:         v.GetString("AWS_PROFILE"),
		PDFMaxBytes:        v.GetInt64("PDF_MAX_BYTES"),
		PresignTTL:         v.GetDuration("PRESIGN_TTL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.TeamMatching {
	case MatchingOff, MatchingEager:
	default:
		return fmt.Errorf("unsupported TEAM_MATCHING %q", c.TeamMatching)
	}
	if c.TeamRequestTTL < 0 {
		return fmt.Errorf("TEAM_REQUEST_TTL must not be negative")
	}
	if c.TeamRequestTTL > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("TEAM_REQUEST_SWEEP_INTERVAL must be positive when TEAM_REQUEST_TTL is set")
	}
	if c.TeamRequestPageLen <= 0 {
		c.TeamRequestPageLen = 100
	}
	return nil
}

// EagerMatching reports whether create should run the matching policy.
func (c *Config) EagerMatching() bool {
	return c.TeamMatching == MatchingEager
}

package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// MinSecretKeyLength is the shortest HMAC signing secret accepted at startup.
const MinSecretKeyLength = 32

var (
	ErrMissingSecretKey = errors.New("jwt secret key is not configured")
	ErrWeakSecretKey    = fmt.Errorf("jwt secret key must be at least %d bytes", MinSecretKeyLength)
)

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	Issuer         string        `mapstructure:"issuer"`
}

type S3Config struct {
	Region       string        `mapstructure:"region"`
	Bucket       string        `mapstructure:"bucket"`
	BaseEndpoint string        `mapstructure:"baseEndpoint"`
	AccessKey    string        `mapstructure:"accessKey"`
	SecretKey    string        `mapstructure:"secretKey"`
	PresignTTL   time.Duration `mapstructure:"presignTTL"`
}

type UploadsConfig struct {
	Driver   string   `mapstructure:"driver"`
	Dir      string   `mapstructure:"dir"`
	MaxBytes int64    `mapstructure:"maxBytes"`
	Width    int      `mapstructure:"width"`
	Quality  int      `mapstructure:"quality"`
	S3       S3Config `mapstructure:"s3"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
		// AllowedOrigins for CORS; a comma-separated list when given through the env.
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Uploads UploadsConfig `mapstructure:"uploads"`
	Cache   struct {
		TTL     time.Duration `mapstructure:"ttl"`
		Cleanup time.Duration `mapstructure:"cleanup"`
	} `mapstructure:"cache"`
	RateLimit struct {
		AuthRequests int           `mapstructure:"authRequests"`
		Window       time.Duration `mapstructure:"window"`
	} `mapstructure:"rateLimit"`
}

// secrets never live in config.yml; they are bound to explicit env names.
var envBindings = map[string]string{
	"jwt.secretKey":                  "JWT_SECRET_KEY",
	"server.allowedOrigins":          "CORS_ALLOWED_ORIGINS",
	"repositories.postgres.host":     "POSTGRES_HOST",
	"repositories.postgres.port":     "POSTGRES_PORT",
	"repositories.postgres.username": "POSTGRES_USER",
	"repositories.postgres.password": "POSTGRES_PASSWORD",
	"repositories.postgres.db":       "POSTGRES_DB",
	"uploads.s3.accessKey":           "S3_ACCESS_KEY",
	"uploads.s3.secretKey":           "S3_SECRET_KEY",
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the process must not start with.
func (c *Config) Validate() error {
	switch {
	case c.JWT.SecretKey == "":
		return ErrMissingSecretKey
	case len(c.JWT.SecretKey) < MinSecretKeyLength:
		return ErrWeakSecretKey
	case c.JWT.AccessTokenTTL <= 0:
		return errors.New("jwt access token ttl must be positive")
	}

	switch c.Uploads.Driver {
	case "local":
		if c.Uploads.Dir == "" {
			return errors.New("uploads dir is required for the local driver")
		}
	case "s3":
		if c.Uploads.S3.Bucket == "" {
			return errors.New("uploads s3 bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown uploads driver %q", c.Uploads.Driver)
	}

	if c.Uploads.Width <= 0 || c.Uploads.Quality <= 0 || c.Uploads.Quality > 100 {
		return errors.New("uploads width must be positive and quality within 1..100")
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Chat      ChatConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // postgres | mysql
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	URI          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// Enabled reports whether object storage was configured.
func (s StorageConfig) Enabled() bool { return s.Endpoint != "" }

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether event export to Kafka was configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type RealtimeConfig struct {
	Driver         string // redis | memory
	ResubscribeMin time.Duration
	ResubscribeMax time.Duration
}

type RateLimitConfig struct {
	WSFramesPerSecond float64
	WSBurst           int
}

type LogConfig struct {
	Level       string
	Development bool
}

type ChatConfig struct {
	// TimeZone used for the date dividers of the message history.
	TimeZone string
}

// Location resolves TimeZone, falling back to UTC.
func (c ChatConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func LoadConfig() (*Config, error) {
	var loadErr error
	once.Do(func() {
		// A missing .env is fine; the environment wins anyway.
		_ = godotenv.Load()

		viper.SetDefault("CHAT_PORT", "8080")
		viper.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_IDLE_TIMEOUT", 120*time.Second)
		viper.SetDefault("CHAT_JWT_SECRET", "secret")
		viper.SetDefault("CHAT_JWT_EXPIRE", "168h")
		viper.SetDefault("CHAT_TIMEZONE", "UTC")
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("DB_DRIVER", "postgres")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "postgres")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.SetDefault("MINIO_BUCKET", "attachments")
		viper.SetDefault("MINIO_PRESIGN_EXPIRY", 15*time.Minute)
		viper.SetDefault("KAFKA_TOPIC", "chat-events")
		viper.SetDefault("REALTIME_DRIVER", "redis")
		viper.SetDefault("REALTIME_RESUBSCRIBE_MIN", 500*time.Millisecond)
		viper.SetDefault("REALTIME_RESUBSCRIBE_MAX", 30*time.Second)
		viper.SetDefault("WS_FRAMES_PER_SECOND", 5.0)
		viper.SetDefault("WS_FRAME_BURST", 10)
		viper.SetDefault("LOG_LEVEL", "info")
		viper.AutomaticEnv()

		cfg := &Config{
			Server: ServerConfig{
				Host:           viper.GetString("CHAT_HOST"),
				Port:           viper.GetString("CHAT_PORT"),
				ReadTimeout:    viper.GetDuration("CHAT_READ_TIMEOUT"),
				WriteTimeout:   viper.GetDuration("CHAT_WRITE_TIMEOUT"),
				IdleTimeout:    viper.GetDuration("CHAT_IDLE_TIMEOUT"),
				AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
			},
			Database: DatabaseConfig{
				Driver:   viper.GetString("DB_DRIVER"),
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				URI:          viper.GetString("REDIS_URL"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("CHAT_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("CHAT_JWT_EXPIRE"),
			},
			Storage: StorageConfig{
				Endpoint:      viper.GetString("MINIO_ENDPOINT"),
				AccessKey:     viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey:     viper.GetString("MINIO_SECRET_KEY"),
				Bucket:        viper.GetString("MINIO_BUCKET"),
				UseSSL:        viper.GetBool("MINIO_USE_SSL"),
				PresignExpiry: viper.GetDuration("MINIO_PRESIGN_EXPIRY"),
			},
			Kafka: KafkaConfig{
				Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			Realtime: RealtimeConfig{
				Driver:         viper.GetString("REALTIME_DRIVER"),
				ResubscribeMin: viper.GetDuration("REALTIME_RESUBSCRIBE_MIN"),
				ResubscribeMax: viper.GetDuration("REALTIME_RESUBSCRIBE_MAX"),
			},
			RateLimit: RateLimitConfig{
				WSFramesPerSecond: viper.GetFloat64("WS_FRAMES_PER_SECOND"),
				WSBurst:           viper.GetInt("WS_FRAME_BURST"),
			},
			Log: LogConfig{
				Level:       viper.GetString("LOG_LEVEL"),
				Development: viper.GetBool("LOG_DEVELOPMENT"),
			},
			Chat: ChatConfig{
				TimeZone: viper.GetString("CHAT_TIMEZONE"),
			},
		}

		if err := cfg.validate(); err != nil {
			loadErr = err
			return
		}
		ConfigInstance = cfg
	})

	if loadErr != nil {
		return nil, loadErr
	}
	if ConfigInstance == nil {
		return nil, fmt.Errorf("config: not loaded")
	}
	return ConfigInstance, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Realtime.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unsupported REALTIME_DRIVER %q", c.Realtime.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: CHAT_JWT_SECRET must not be empty")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

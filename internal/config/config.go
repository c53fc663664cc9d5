package config

import (
	"errors"
	"os"
	"strconv"
)

const (
	DefaultJWTSecret = "dev-secret-change-me"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port                  string
	DatabaseDSN           string
	JWTSecret             string
	Env                   string
	StoreDriver           string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	CommentMaxLength      int
	PreviewLength         int
	SubscriptionDays      int
	WSSendBuffer          int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 读取正整数环境变量，缺失或非法时回退到默认值。
func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func Load() Config {
	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=commentroom port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:             getenv("JWT_SECRET", DefaultJWTSecret),
		Env:                   getenv("APP_ENV", "dev"),
		StoreDriver:           getenv("STORE_DRIVER", DriverPostgres),
		AccessTokenTTLMinutes: getenvInt("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTLDays:   getenvInt("REFRESH_TOKEN_TTL_DAYS", 7),
		CommentMaxLength:      getenvInt("COMMENT_MAX_LENGTH", 5000),
		PreviewLength:         getenvInt("PREVIEW_LENGTH", 200),
		SubscriptionDays:      getenvInt("SUBSCRIPTION_DAYS", 30),
		WSSendBuffer:          getenvInt("WS_SEND_BUFFER", 256),
	}
}

// Validate 在启动时拒绝明显错误的配置，非 dev 环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: APP_PORT is required")
	}
	switch cfg.StoreDriver {
	case "", DriverPostgres:
		if cfg.DatabaseDSN == "" {
			return errors.New("config: DATABASE_DSN is required")
		}
	case DriverMemory:
	default:
		return errors.New("config: unknown STORE_DRIVER " + strconv.Quote(cfg.StoreDriver))
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == DefaultJWTSecret {
		return errors.New("config: JWT_SECRET must be changed outside dev")
	}
	return nil
}

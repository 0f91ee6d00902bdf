package app

import (
	"time"

	"github.com/BlindPI/arccm-backend/internal/platform/envutil"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
)

type Config struct {
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ServiceVersion  string
	Environment     string
	// RedisEnabled selects cross-process realtime delivery; without it events
	// stay in-process.
	RedisEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := envutil.Get("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := envutil.GetAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := envutil.GetAsInt("REFRESH_TOKEN_TTL", 86400, log)
	return Config{
		JWTSecretKey:    jwtSecretKey,
		AccessTokenTTL:  time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL: time.Duration(refreshTokenTTLSeconds) * time.Second,
		ServiceVersion:  envutil.Get("SERVICE_VERSION", "dev", log),
		Environment:     envutil.Get("ENVIRONMENT", "development", log),
		RedisEnabled:    envutil.Get("REDIS_ADDR", "", log) != "",
	}
}

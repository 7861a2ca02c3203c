package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 生命体征监测服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// HTTP 服务配置
	HTTP struct {
		Addr string
	}

	// 外部AI分析服务配置
	Analysis struct {
		BaseURL string
		Timeout int // 单次分析调用超时（秒），默认 5秒
	}

	// 遥测模拟器配置
	Simulator struct {
		TickInterval       int     // 生成周期（秒），默认 3秒
		AnomalyProbability float64 // 每次tick注入异常的概率，默认 0.02
		OriginLatitude     float64 // 位置抖动的原点
		OriginLongitude    float64
	}

	// 实时缓存配置
	Cache struct {
		RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "vitals:device:"
		RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
		AlertSuffix       string // 报警数据缓存键后缀，如 ":alert"
		AlertTTL          int    // 报警数据 TTL（秒），默认 30秒
	}

	// 认证配置（只用于入口鉴权，核心逻辑不依赖）
	Auth struct {
		JWTSecret string // 为空时关闭鉴权（开发模式）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（带默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wisefido_vitals")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-vitals")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8086")

	cfg.Analysis.BaseURL = getEnv("ANALYSIS_BASE_URL", "http://localhost:5000")
	cfg.Analysis.Timeout = getEnvInt("ANALYSIS_TIMEOUT", 5)

	cfg.Simulator.TickInterval = getEnvInt("SIMULATOR_TICK_INTERVAL", 3)
	cfg.Simulator.AnomalyProbability = getEnvFloat("SIMULATOR_ANOMALY_PROBABILITY", 0.02)
	cfg.Simulator.OriginLatitude = getEnvFloat("SIMULATOR_ORIGIN_LAT", 21.1458)
	cfg.Simulator.OriginLongitude = getEnvFloat("SIMULATOR_ORIGIN_LON", 79.0882)

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "vitals:device:")
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.AlertSuffix = ":alert"
	cfg.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 30)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

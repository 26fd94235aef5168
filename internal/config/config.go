package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config collects every environment-driven setting with its fallback
// default.
type Config struct {
	Host string
	Port string

	StorageBackend string // "file" or "mongo"
	DataDir        string
	MongoURI       string
	MongoDB        string

	MQTTBroker string
	MQTTTopic  string

	PingInterval time.Duration
	PongTimeout  time.Duration

	CORSOrigin string
}

// Load reads an optional .env file and builds the configuration.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "3001"),
		StorageBackend: getEnv("STORAGE_BACKEND", "file"),
		DataDir:        getEnv("DATA_DIR", "data"),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDB:        getEnv("MONGO_DB", "smartcycle"),
		MQTTBroker:     getEnv("MQTT_BROKER", ""),
		MQTTTopic:      getEnv("MQTT_TOPIC", "bike/+/telemetry"),
		PingInterval:   getDuration("SOCKET_PING_INTERVAL", 5*time.Second),
		PongTimeout:    getDuration("SOCKET_PING_TIMEOUT", 30*time.Second),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

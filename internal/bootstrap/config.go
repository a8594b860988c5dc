package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	STTEngine         string
	STTLanguage       string
	STTSampleRate     int
	STTFlushThreshold int
	STTDumpDir        string

	AudioStreamURL string

	GoogleRecognizeURL     string
	GoogleRecognizeTimeout time.Duration

	VoiceAIURI   string
	VoiceAIUseAI bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		STTEngine:         getEnv("STT_ENGINE", "google"),
		STTLanguage:       getEnv("STT_LANGUAGE", "en-US"),
		STTSampleRate:     getEnvInt("STT_SAMPLE_RATE", 16000),
		STTFlushThreshold: getEnvInt("STT_FLUSH_THRESHOLD", 65536),
		STTDumpDir:        getEnv("STT_DUMP_DIR", ""),

		AudioStreamURL: getEnv("ARI_WEBSOCKET_STREAM", "ws://localhost:5039/ari/channels/stream"),

		GoogleRecognizeURL:     getEnv("GOOGLE_RECOGNIZE_URL", "http://localhost:8090/v1/speech:recognize"),
		GoogleRecognizeTimeout: time.Duration(getEnvInt("GOOGLE_RECOGNIZE_TIMEOUT_SECONDS", 15)) * time.Second,

		VoiceAIURI:   getEnv("VOICE_AI_URI", "ws://localhost:8765"),
		VoiceAIUseAI: getEnv("VOICE_AI_USE_AI", "false") == "true",

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	appNameVar     = "APP_NAME"
	backendURLVar  = "BACKEND_URL"
	httpTimeoutVar = "HTTP_TIMEOUT_SECONDS"
	sessionFileVar = "SESSION_FILE"
	logLevelVar    = "LOG_LEVEL"
)

// Load reads a .env file when one exists. A missing file is not an error;
// plain environment variables still apply.
func Load() {
	_ = godotenv.Load()
}

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "KP Planta")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetBackendURL() string {
	return GetEnv(backendURLVar, "http://localhost:8000")
}

func (EnvVars) GetHTTPTimeout() int {
	raw := GetEnv(httpTimeoutVar, "15")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 15
	}
	return seconds
}

func (EnvVars) GetSessionFile() string {
	return GetEnv(sessionFileVar, ".kp-session.json")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

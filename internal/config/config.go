package config

type Config interface {
	EnvConfig
	BackendConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type BackendConfig interface {
	GetBackendURL() string
	GetHTTPTimeout() int
}

type SessionConfig interface {
	GetSessionFile() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}

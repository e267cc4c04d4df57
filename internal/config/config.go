package config

type Config interface {
	EnvConfig
	ClientConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
	GetDataFolder() string
}

type mainConfig struct {
	EnvVars
	Client
	Storage
}

func New() Config {
	return mainConfig{}
}

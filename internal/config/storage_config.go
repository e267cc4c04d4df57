package config

import (
	"path/filepath"
	"strings"
)

type SessionStoreType string

const (
	MemorySessionStore   SessionStoreType = "memory"
	FileSessionStore     SessionStoreType = "file"
	SqliteSessionStore   SessionStoreType = "sqlite"
	PostgresSessionStore SessionStoreType = "postgres"
)

type StorageConfig interface {
	GetSessionStore() SessionStoreType
	GetSessionFile() string
	GetSessionDSN() string
	GetSessionPassphrase() string
}

type Storage struct {
	EnvVars
}

var _ StorageConfig = Storage{}

func (Storage) GetSessionStore() SessionStoreType {
	switch t := SessionStoreType(strings.ToLower(GetEnv("SESSION_STORE", string(FileSessionStore)))); t {
	case MemorySessionStore, FileSessionStore, SqliteSessionStore, PostgresSessionStore:
		return t
	default:
		return FileSessionStore
	}
}

func (s Storage) GetSessionFile() string {
	return GetEnv("SESSION_FILE", filepath.Join(s.GetDataFolder(), "session.json"))
}

// GetSessionDSN is a sqlite file path for the sqlite store or a postgres URL
// for the postgres store.
func (s Storage) GetSessionDSN() string {
	return GetEnv("SESSION_DSN", filepath.Join(s.GetDataFolder(), "session.db"))
}

// GetSessionPassphrase enables at-rest encryption of the file store when set.
func (Storage) GetSessionPassphrase() string {
	return GetEnv("SESSION_PASSPHRASE", "")
}

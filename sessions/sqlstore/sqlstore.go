// Package sqlstore keeps the session as key-value rows in a SQL table.
// A save rewrites every row inside one transaction.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jrsteele09/go-auth-client/sessions"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one persisted key of the session.
type Entry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "client_session_entries"
}

type Store struct {
	db *gorm.DB
}

var _ sessions.Store = (*Store)(nil)

// OpenSQLite opens (or creates) a sqlite database file.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.OpenSQLite] %w", err)
	}
	return New(db)
}

// OpenPostgres connects with a postgres:// URL or key=value DSN.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.OpenPostgres] %w", err)
	}
	return New(db)
}

// New migrates the entries table on an existing connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("[sqlstore.New] migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) (sessions.Session, error) {
	var rows []Entry
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return sessions.Session{}, fmt.Errorf("[sqlstore.Load] %w", err)
	}
	entries := make(map[string]string, len(rows))
	for _, r := range rows {
		entries[r.Key] = r.Value
	}
	return sessions.FromEntries(entries)
}

func (s *Store) Save(ctx context.Context, session sessions.Session) error {
	entries, err := session.Entries()
	if err != nil {
		return fmt.Errorf("[sqlstore.Save] %w", err)
	}
	now := time.Now().UTC()
	rows := make([]Entry, 0, len(entries))
	for _, key := range []string{sessions.KeyAccessToken, sessions.KeyRefreshToken, sessions.KeyUser} {
		if v, ok := entries[key]; ok {
			rows = append(rows, Entry{Key: key, Value: v, UpdatedAt: now})
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("[sqlstore.Save] %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := deleteAll(s.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("[sqlstore.Clear] %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func deleteAll(tx *gorm.DB) error {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Entry{}).Error
}

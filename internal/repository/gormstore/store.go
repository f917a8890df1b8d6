// Package gormstore is the embedded SQL ticket store built on gorm and a
// pure-Go SQLite driver.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deskops/helpdesk-service/internal/repository"
)

// Store implements repository.Store on gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. The pool is limited to one
// connection: SQLite has a single writer, and ":memory:" databases exist
// per connection.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&UserModel{}, &TicketModel{}, &CommentModel{}, &ActionModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func newRepositories(db *gorm.DB) repository.Repositories {
	return repository.Repositories{
		Tickets:  &ticketRepository{db: db},
		Comments: &commentRepository{db: db},
		Actions:  &actionRepository{db: db},
		Users:    &userRepository{db: db},
	}
}

// Repositories returns repositories on the shared connection.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

// WithinTx runs fn inside a gorm transaction. The single connection
// serializes transactions, which stands in for row locks.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepositories(tx))
	})
}

// Ping verifies the database handle.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return repository.ErrDuplicate
	}
	return err
}

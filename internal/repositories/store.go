package repositories

import (
	"context"
	"errors"
	"fmt"

	"lendloop/internal/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store aggregates every repository over a single database handle. Inside
// Transaction, the Store passed to fn is bound to the transaction, so all of
// fn's reads and writes commit or roll back together.
type Store interface {
	Users() UserRepository
	Items() ItemRepository
	Loans() LoanRequestRepository
	Circles() CircleRepository
	Messages() MessageRepository
	JoinRequests() JoinRequestRepository
	Feedback() FeedbackRepository
	AdminActions() AdminActionRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the gorm implementation of Store.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a new GORMStore.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Users() UserRepository               { return NewGORMUserRepository(s.db) }
func (s *GORMStore) Items() ItemRepository               { return NewGORMItemRepository(s.db) }
func (s *GORMStore) Loans() LoanRequestRepository        { return NewGORMLoanRequestRepository(s.db) }
func (s *GORMStore) Circles() CircleRepository           { return NewGORMCircleRepository(s.db) }
func (s *GORMStore) Messages() MessageRepository         { return NewGORMMessageRepository(s.db) }
func (s *GORMStore) JoinRequests() JoinRequestRepository { return NewGORMJoinRequestRepository(s.db) }
func (s *GORMStore) Feedback() FeedbackRepository        { return NewGORMFeedbackRepository(s.db) }
func (s *GORMStore) AdminActions() AdminActionRepository { return NewGORMAdminActionRepository(s.db) }

// Transaction runs fn inside a database transaction. fn's error, or a panic,
// rolls everything back.
func (s *GORMStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMStore{db: tx})
	})
}

// notFound converts gorm's missing-record error into the shared NotFound kind.
func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(kind, id)
	}
	return fmt.Errorf("failed to get %s by ID %s: %w", kind, id, err)
}

// forUpdate adds a row lock on dialects that support it. SQLite has no row
// locks; its single-connection pool already serializes transactions.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

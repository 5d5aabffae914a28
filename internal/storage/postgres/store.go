// Package postgres implements the repositories and the contest ledger on sqlx + lib/pq.
package postgres

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store groups the repositories sharing one connection pool.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Users returns the user repository.
func (s *Store) Users() *Users { return &Users{db: s.db} }

// Memes returns the meme repository.
func (s *Store) Memes() *Memes { return &Memes{db: s.db} }

// Ledger returns the contest ledger.
func (s *Store) Ledger() *Ledger { return &Ledger{db: s.db} }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vigilhq/vigil/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Stores contains all persistent stores, backed by one SQLite database
type Stores struct {
	Definitions repo.DefinitionRepo
	Pending     repo.PendingRepo
	Budget      repo.BudgetRepo

	db *sql.DB
}

// NewStores opens the database and prepares all stores
func NewStores(dbPath string) (*Stores, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	definitions, err := newDefinitionStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	pending, err := newPendingStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	budget, err := newBudgetStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Stores{
		Definitions: definitions,
		Pending:     pending,
		Budget:      budget,
		db:          db,
	}, nil
}

// Close closes the database connection
func (s *Stores) Close() error {
	return s.db.Close()
}

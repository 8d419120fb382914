package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/vyrodovalexey/phonebook-api/internal/model"
)

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Seeder = (*SQLiteStore)(nil)
)

// DefaultSQLiteDSN keeps the database in memory for the life of the process.
const DefaultSQLiteDSN = ":memory:"

// The table is recreated on open: the phonebook never outlives the process.
// seq preserves insertion order since IDs are random.
var schema = []string{
	`DROP TABLE IF EXISTS persons`,
	`CREATE TABLE persons (
		seq    INTEGER PRIMARY KEY AUTOINCREMENT,
		id     INTEGER NOT NULL UNIQUE,
		name   TEXT    NOT NULL UNIQUE,
		number TEXT    NOT NULL
	)`,
}

// SQLiteStore implements Store on top of SQLite.
type SQLiteStore struct {
	db     *sql.DB
	nextID IDGenerator
}

// NewSQLiteStore opens the database at dsn and creates a fresh persons table.
func NewSQLiteStore(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: every :memory: connection is its own database, and a
	// single connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	o := newOptions(opts)
	return &SQLiteStore{db: db, nextID: o.nextID}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns all persons in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, number FROM persons ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	persons := make([]model.Person, 0)
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Number); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	return persons, nil
}

// Get retrieves a person by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int) (*model.Person, error) {
	return s.queryOne(ctx, "get person",
		`SELECT id, name, number FROM persons WHERE id = ?`, id)
}

// FindByName retrieves a person by exact name.
func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*model.Person, error) {
	return s.queryOne(ctx, "find person by name",
		`SELECT id, name, number FROM persons WHERE name = ?`, name)
}

// Create inserts a new person with a generated ID.
func (s *SQLiteStore) Create(ctx context.Context, name, number string) (*model.Person, error) {
	if name == "" || number == "" {
		return nil, ErrInvalidPerson
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create person: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := exists(ctx, tx, `SELECT 1 FROM persons WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	if taken {
		return nil, ErrAlreadyExists
	}

	id, err := drawID(s.nextID, func(id int) (bool, error) {
		return exists(ctx, tx, `SELECT 1 FROM persons WHERE id = ?`, id)
	})
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO persons (id, name, number) VALUES (?, ?, ?)`, id, name, number,
	); err != nil {
		return nil, fmt.Errorf("create person: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create person: commit: %w", err)
	}

	return &model.Person{ID: id, Name: name, Number: number}, nil
}

// Put stores a person with a preassigned ID.
func (s *SQLiteStore) Put(ctx context.Context, p model.Person) error {
	if p.Name == "" || p.Number == "" {
		return ErrInvalidPerson
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put person: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := exists(ctx, tx, `SELECT 1 FROM persons WHERE id = ? OR name = ?`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("put person: %w", err)
	}
	if taken {
		return ErrAlreadyExists
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO persons (id, name, number) VALUES (?, ?, ?)`, p.ID, p.Name, p.Number,
	); err != nil {
		return fmt.Errorf("put person: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put person: commit: %w", err)
	}

	return nil
}

// Delete removes the person with the given ID if present.
func (s *SQLiteStore) Delete(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}

// Count returns the number of stored persons.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryOne(ctx context.Context, op, query string, arg any) (*model.Person, error) {
	var p model.Person
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &p.Number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

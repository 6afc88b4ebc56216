package gadget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imf-gadgets/gadget-core/internal/infrastructure/database"
)

// Repository defines gadget persistence.
type Repository interface {
	// Create inserts g with Version 1.
	// Returns ErrDuplicateName if the name is taken.
	Create(ctx context.Context, g *Gadget) error

	// GetByID returns ErrNotFound if no gadget has the ID.
	GetByID(ctx context.Context, id string) (*Gadget, error)

	// List returns gadgets matching filter, oldest first.
	List(ctx context.Context, filter Filter) ([]Gadget, error)

	// Update writes g if the stored row still has g.Version, then bumps
	// g.Version. Returns ErrNotFound if the row is gone,
	// ErrConcurrentUpdate if it changed, ErrDuplicateName if the new name
	// is taken.
	Update(ctx context.Context, g *Gadget) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed gadget repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const gadgetColumns = `id, name, status, decommissioned_at, destroyed_at, version, created_at, updated_at`

// Create inserts a new gadget.
func (r *SQLiteRepository) Create(ctx context.Context, g *Gadget) error {
	g.Version = 1
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gadgets (`+gadgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Status),
		nullableTime(g.DecommissionedAt), nullableTime(g.DestroyedAt),
		g.Version, formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting gadget: %w", err)
	}
	return nil
}

// GetByID retrieves a gadget by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Gadget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gadgetColumns+` FROM gadgets WHERE id = ?`, id)
	return scanGadget(row)
}

// List retrieves gadgets, optionally filtered by status.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Gadget, error) {
	query := `SELECT ` + gadgetColumns + ` FROM gadgets`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing gadgets: %w", err)
	}
	defer rows.Close()

	gadgets := []Gadget{}
	for rows.Next() {
		g, err := scanGadget(rows)
		if err != nil {
			return nil, err
		}
		gadgets = append(gadgets, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gadgets: %w", err)
	}
	return gadgets, nil
}

// Update writes every mutable column under an optimistic version check.
func (r *SQLiteRepository) Update(ctx context.Context, g *Gadget) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE gadgets
		 SET name = ?, status = ?, decommissioned_at = ?, destroyed_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		g.Name, string(g.Status),
		nullableTime(g.DecommissionedAt), nullableTime(g.DestroyedAt), formatTime(g.UpdatedAt),
		g.ID, g.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating gadget: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating gadget: %w", err)
	}
	if n == 0 {
		exists, err := r.exists(ctx, g.ID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrentUpdate
	}

	g.Version++
	return nil
}

func (r *SQLiteRepository) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM gadgets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking gadget existence: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGadget(s rowScanner) (*Gadget, error) {
	var g Gadget
	var status, createdAt, updatedAt string
	var decommissionedAt, destroyedAt sql.NullString

	err := s.Scan(&g.ID, &g.Name, &status, &decommissionedAt, &destroyedAt,
		&g.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning gadget: %w", err)
	}

	g.Status = Status(status)
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if g.DecommissionedAt, err = parseNullableTime(decommissionedAt); err != nil {
		return nil, err
	}
	if g.DestroyedAt, err = parseNullableTime(destroyedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// Timestamps are stored as RFC3339 with nanoseconds in UTC so that string
// ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing gadget timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

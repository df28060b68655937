// Package store is the repository over the segmentation_rules table, the
// source of truth that the control plane edits and the syncer publishes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// Compile-time check to verify that PostgresStore implements RuleRepository.
var _ RuleRepository = (*PostgresStore)(nil)

// ErrRuleNotFound is returned when no rule exists for a path.
var ErrRuleNotFound = errors.New("rule not found")

// Rule mirrors a row of the segmentation_rules table.
type Rule struct {
	ID             int64     `db:"id"`
	Path           string    `db:"path"`
	SplitThreshold int       `db:"split_threshold"`
	VariantA       string    `db:"variant_a"`
	VariantB       string    `db:"variant_b"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Segmentation converts the row into the engine's rule type.
func (r *Rule) Segmentation() experiment.SegmentationRule {
	return experiment.SegmentationRule{
		Path:           r.Path,
		SplitThreshold: r.SplitThreshold,
		VariantA:       r.VariantA,
		VariantB:       r.VariantB,
	}
}

// RuleRepository defines rule persistence operations.
type RuleRepository interface {
	// GetRule returns the rule for path or ErrRuleNotFound.
	GetRule(ctx context.Context, path string) (*Rule, error)

	// ListRules returns a page of rules ordered by path, plus the total count.
	ListRules(ctx context.Context, limit, offset int) ([]*Rule, int64, error)

	// AllRules returns every rule ordered by path.
	AllRules(ctx context.Context) ([]*Rule, error)

	// UpsertRule inserts or replaces the rule for r.Path and fills in ID and
	// timestamps. created reports whether a new row was inserted.
	UpsertRule(ctx context.Context, r *Rule) (created bool, err error)

	// DeleteRule removes the rule for path or returns ErrRuleNotFound.
	DeleteRule(ctx context.Context, path string) error
}

// PostgresStore implements RuleRepository with pgx.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

const ruleColumns = `id, path, split_threshold, variant_a, variant_b, created_at, updated_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	if err := row.Scan(&r.ID, &r.Path, &r.SplitThreshold, &r.VariantA, &r.VariantB, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRule is a point lookup on the unique path index.
func (s *PostgresStore) GetRule(ctx context.Context, path string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM segmentation_rules WHERE path = $1`

	r, err := scanRule(s.db.QueryRow(ctx, query, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %q: %w", path, err)
	}
	return r, nil
}

// ListRules runs a count query and a page query.
func (s *PostgresStore) ListRules(ctx context.Context, limit, offset int) ([]*Rule, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM segmentation_rules`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}
	if total == 0 {
		return []*Rule{}, 0, nil
	}

	query := `SELECT ` + ruleColumns + ` FROM segmentation_rules ORDER BY path LIMIT $1 OFFSET $2`
	rules, err := s.queryRules(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// AllRules reads the whole table. The table holds one row per experiment path,
// so it stays small.
func (s *PostgresStore) AllRules(ctx context.Context) ([]*Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM segmentation_rules ORDER BY path`)
}

func (s *PostgresStore) queryRules(ctx context.Context, query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []*Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return rules, nil
}

// UpsertRule relies on xmax = 0 to tell an insert from an update in one round trip.
func (s *PostgresStore) UpsertRule(ctx context.Context, r *Rule) (bool, error) {
	query := `
		INSERT INTO segmentation_rules (path, split_threshold, variant_a, variant_b)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET split_threshold = EXCLUDED.split_threshold,
		    variant_a       = EXCLUDED.variant_a,
		    variant_b       = EXCLUDED.variant_b,
		    updated_at      = now()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := s.db.QueryRow(ctx, query, r.Path, r.SplitThreshold, r.VariantA, r.VariantB).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt, &inserted)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23514: check_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return false, fmt.Errorf("rule %q violates table constraints: %s", r.Path, pgErr.ConstraintName)
		}
		return false, fmt.Errorf("failed to upsert rule %q: %w", r.Path, err)
	}
	return inserted, nil
}

// DeleteRule removes the row for path.
func (s *PostgresStore) DeleteRule(ctx context.Context, path string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM segmentation_rules WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

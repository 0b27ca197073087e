package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/climate-alerts/internal/model"
)

// SQLiteStore persists the recommendation list in a local SQLite database,
// one row per entry, under a fixed list key.
type SQLiteStore struct {
	db   *sqlx.DB
	key  string
	path string
}

// recommendationRow is the database shape of a model.Recommendation.
type recommendationRow struct {
	ListKey      string        `db:"list_key"`
	Position     int           `db:"position"`
	ID           string        `db:"id"`
	Title        string        `db:"title"`
	Description  string        `db:"description"`
	Type         string        `db:"type"`
	Priority     string        `db:"priority"`
	Actions      model.Actions `db:"actions"`
	RelatedCrop  string        `db:"related_crop"`
	RelatedAlert string        `db:"related_alert"`
	IsRead       bool          `db:"is_read"`
	CreatedAt    time.Time     `db:"created_at"`
	ValidUntil   sql.NullTime  `db:"valid_until"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations. The list is
// stored under key.
func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Each :memory: connection is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, key: key, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Load returns the stored list in saved order. Rows that do not decode
// into a recommendation are reported as ErrCorruptState; query failures
// are returned as they are.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Recommendation, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM recommendations WHERE list_key = ? ORDER BY position", s.key)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]model.Recommendation, 0)
	for rows.Next() {
		var row recommendationRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		recs = append(recs, row.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading recommendations: %w", err)
	}
	if err := checkList(recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Save replaces the stored list in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, recs []model.Recommendation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM recommendations WHERE list_key = ?", s.key); err != nil {
		return fmt.Errorf("clearing recommendations: %w", err)
	}

	const query = `
		INSERT INTO recommendations (
			list_key, position, id, title, description,
			type, priority, actions, related_crop, related_alert,
			is_read, created_at, valid_until
		) VALUES (
			:list_key, :position, :id, :title, :description,
			:type, :priority, :actions, :related_crop, :related_alert,
			:is_read, :created_at, :valid_until
		)`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range recs {
		if _, err := stmt.ExecContext(ctx, rowFromModel(s.key, i, r)); err != nil {
			return fmt.Errorf("inserting recommendation %s: %w", r.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saves (list_key, entry_count, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(list_key) DO UPDATE SET entry_count = excluded.entry_count, saved_at = excluded.saved_at`,
		s.key, len(recs), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording save: %w", err)
	}

	return tx.Commit()
}

// LastSave reports when the list was last written and how many entries it
// held. ok is false if nothing has been saved under this key.
func (s *SQLiteStore) LastSave(ctx context.Context) (savedAt time.Time, count int, ok bool, err error) {
	var row struct {
		Count   int       `db:"entry_count"`
		SavedAt time.Time `db:"saved_at"`
	}
	err = s.db.GetContext(ctx, &row, "SELECT entry_count, saved_at FROM saves WHERE list_key = ?", s.key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("reading last save: %w", err)
	}
	return row.SavedAt, row.Count, true, nil
}

func rowFromModel(key string, pos int, r model.Recommendation) recommendationRow {
	row := recommendationRow{
		ListKey:      key,
		Position:     pos,
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Type:         string(r.Type),
		Priority:     string(r.Priority),
		Actions:      r.Actions,
		RelatedCrop:  r.RelatedCrop,
		RelatedAlert: r.RelatedAlert,
		IsRead:       r.IsRead,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.ValidUntil != nil {
		row.ValidUntil = sql.NullTime{Time: r.ValidUntil.UTC(), Valid: true}
	}
	return row
}

func (row recommendationRow) toModel() model.Recommendation {
	r := model.Recommendation{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Type:         model.RecommendationType(row.Type),
		Priority:     model.Priority(row.Priority),
		Actions:      row.Actions,
		RelatedCrop:  row.RelatedCrop,
		RelatedAlert: row.RelatedAlert,
		IsRead:       row.IsRead,
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.ValidUntil.Valid {
		v := row.ValidUntil.Time.UTC()
		r.ValidUntil = &v
	}
	return r
}

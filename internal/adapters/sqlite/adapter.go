// Package sqlite provides a SQLite-backed implementation of the song catalog port.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// Adapter implements the song catalog port for SQLite
type Adapter struct {
	db *sql.DB
}

// compile-time interface assertion
var _ ports.SongCatalog = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite db")
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping sqlite db")
	}

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// ListByMood returns the songs tagged with mood in catalog order.
func (a *Adapter) ListByMood(ctx context.Context, mood domain.Mood) ([]domain.Track, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, title, artist, audio_url, mood
		FROM songs
		WHERE mood = ?
		ORDER BY rank ASC, created_at ASC, rowid ASC
	`, string(mood))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query songs")
	}
	defer rows.Close()

	tracks := []domain.Track{}
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate songs")
	}
	return tracks, nil
}

// GetByID returns one song or domain.ErrNotFound.
func (a *Adapter) GetByID(ctx context.Context, id string) (domain.Track, error) {
	row := a.db.QueryRowContext(ctx, "SELECT id, title, artist, audio_url, mood FROM songs WHERE id = ?", id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Track{}, domain.ErrNotFound
	}
	return track, err
}

// Save inserts or updates one song, assigning an ID when missing.
func (a *Adapter) Save(ctx context.Context, t domain.Track) (domain.Track, error) {
	saved, err := a.SaveMany(ctx, []domain.Track{t})
	if err != nil {
		return domain.Track{}, err
	}
	return saved[0], nil
}

// SaveMany upserts songs in one transaction. New songs are ranked after the
// existing songs of their mood, in slice order.
func (a *Adapter) SaveMany(ctx context.Context, tracks []domain.Track) ([]domain.Track, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() // Safety net: auto-rollback if we error/panic before commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO songs (id, title, artist, audio_url, mood, rank)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(rank), 0) + 1 FROM songs WHERE mood = ?))
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			audio_url=excluded.audio_url,
			mood=excluded.mood;
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare song upsert")
	}
	defer stmt.Close()

	saved := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Artist, t.AudioURL, string(t.Mood), string(t.Mood)); err != nil {
			return nil, errors.Wrapf(err, "failed to save song %s", t.ID)
		}
		saved = append(saved, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "transaction commit failed")
	}
	return saved, nil
}

// Count returns the number of songs in the catalog.
func (a *Adapter) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count songs")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (domain.Track, error) {
	var track domain.Track
	var artist sql.NullString
	var mood string
	if err := row.Scan(&track.ID, &track.Title, &artist, &track.AudioURL, &mood); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Track{}, err
		}
		return domain.Track{}, errors.Wrap(err, "failed to scan song")
	}
	if artist.Valid {
		track.Artist = artist.String
	}
	track.Mood = domain.Mood(mood)
	return track, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT,
		audio_url TEXT NOT NULL,
		mood TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_songs_mood ON songs(mood);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	if _, err := a.db.Exec("ALTER TABLE songs ADD COLUMN rank INTEGER NOT NULL DEFAULT 0"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}

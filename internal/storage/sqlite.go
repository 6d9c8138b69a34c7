package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so created_at sorts and compares lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps a SQLite database holding the append-only review log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "feedback.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		err = s.withTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(content)); err != nil {
				return fmt.Errorf("applying migration %d: %w", version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
				return fmt.Errorf("recording migration %d: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// withTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("committing transaction: %w", cerr)
		}
	}()
	return fn(tx)
}

// --- Reviews ---

// InsertReview validates and appends a review, returning its assigned id.
// A zero createdAt is replaced with the current UTC time.
func (s *Store) InsertReview(ctx context.Context, text string, sentiment Sentiment, createdAt time.Time) (int64, error) {
	return s.SaveReview(ctx, Review{
		Text:      text,
		Sentiment: sentiment,
		Source:    SourceManual,
		CreatedAt: createdAt,
	})
}

// SaveReview is InsertReview with an explicit source tag. r.ID is ignored.
func (s *Store) SaveReview(ctx context.Context, r Review) (int64, error) {
	if err := validateReview(r.Text, r.Sentiment); err != nil {
		return 0, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Source == "" {
		r.Source = SourceManual
	}

	query, args, err := sq.Insert("reviews").
		Columns("text", "sentiment", "source", "created_at").
		Values(strings.TrimSpace(r.Text), string(r.Sentiment), r.Source, r.CreatedAt.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert: %w", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("inserting review: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetReview returns a single review by id.
func (s *Store) GetReview(ctx context.Context, id int64) (Review, error) {
	query, args, err := reviewColumns().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Review{}, fmt.Errorf("building select: %w", err)
	}
	reviews, err := s.queryReviews(ctx, query, args...)
	if err != nil {
		return Review{}, err
	}
	if len(reviews) == 0 {
		return Review{}, ErrNotFound
	}
	return reviews[0], nil
}

// ScanReviews returns every review created on a day in [start, end], both
// endpoints inclusive at full-day granularity, ordered by creation time.
func (s *Store) ScanReviews(ctx context.Context, start, end time.Time) ([]Review, error) {
	lo, hi := dayBounds(start, end)
	query, args, err := reviewColumns().
		Where(sq.GtOrEq{"created_at": lo}).
		Where(sq.LtOrEq{"created_at": hi}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building scan: %w", err)
	}
	return s.queryReviews(ctx, query, args...)
}

// RecentReviews returns the newest reviews first.
func (s *Store) RecentReviews(ctx context.Context, limit int) ([]Review, error) {
	query, args, err := reviewColumns().
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	return s.queryReviews(ctx, query, args...)
}

// CountsBySentiment totals reviews per label over the same inclusive day
// range as ScanReviews. Every label is present in the result.
func (s *Store) CountsBySentiment(ctx context.Context, start, end time.Time) (map[Sentiment]int, error) {
	lo, hi := dayBounds(start, end)
	query, args, err := sq.Select("sentiment", "COUNT(*)").
		From("reviews").
		Where(sq.GtOrEq{"created_at": lo}).
		Where(sq.LtOrEq{"created_at": hi}).
		GroupBy("sentiment").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building counts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting reviews: %w", err)
	}
	defer rows.Close()

	counts := make(map[Sentiment]int, len(Sentiments))
	for _, l := range Sentiments {
		counts[l] = 0
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[Sentiment(label)] = n
	}
	return counts, rows.Err()
}

func reviewColumns() sq.SelectBuilder {
	return sq.Select("id", "text", "sentiment", "source", "created_at").From("reviews")
}

func (s *Store) queryReviews(ctx context.Context, query string, args ...any) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var results []Review
	for rows.Next() {
		var r Review
		var sentiment, createdAt string
		if err := rows.Scan(&r.ID, &r.Text, &sentiment, &r.Source, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for review %d: %w", r.ID, err)
		}
		r.Sentiment = Sentiment(sentiment)
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// dayBounds converts a calendar-day range into inclusive created_at bounds.
func dayBounds(start, end time.Time) (string, string) {
	s := start.UTC()
	e := end.UTC()
	lo := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 999999999, time.UTC)
	return lo.Format(timeLayout), hi.Format(timeLayout)
}

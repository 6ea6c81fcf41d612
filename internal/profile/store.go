package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

// Store manages canonical profile records and session feedback in PostgreSQL.
// It replaces the hosted document store the original product leaned on: the
// matcher reads candidate pools from here, the gateway writes profile edits.
type Store struct {
	db *sql.DB
}

// NewStore creates a profile store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres, verifies the connection, and applies pending
// migrations from migrationsURL (e.g. "file://migrations").
func Open(ctx context.Context, dsn, migrationsURL string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("profile: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: postgres ping: %w", err)
	}

	m, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("profile: apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert creates or replaces a profile record. The record is normalized
// before it reaches this layer; the store never sees the legacy shape.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	var strugglingStr, strugglingWeak sql.NullBool
	if rec.Quiz != nil {
		strugglingStr = sql.NullBool{Bool: rec.Quiz.StrugglingInStrengths, Valid: true}
		strugglingWeak = sql.NullBool{Bool: rec.Quiz.StrugglingInWeaknesses, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (
			user_id, display_name, strengths, weaknesses, availability,
			time_zone, preferred_mode, primary_goal, preferred_frequency,
			partner_preference, session_length, study_personality,
			struggling_in_strengths, struggling_in_weaknesses
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			strengths = EXCLUDED.strengths,
			weaknesses = EXCLUDED.weaknesses,
			availability = EXCLUDED.availability,
			time_zone = EXCLUDED.time_zone,
			preferred_mode = EXCLUDED.preferred_mode,
			primary_goal = EXCLUDED.primary_goal,
			preferred_frequency = EXCLUDED.preferred_frequency,
			partner_preference = EXCLUDED.partner_preference,
			session_length = EXCLUDED.session_length,
			study_personality = EXCLUDED.study_personality,
			struggling_in_strengths = EXCLUDED.struggling_in_strengths,
			struggling_in_weaknesses = EXCLUDED.struggling_in_weaknesses,
			updated_at = now()`,
		rec.ID, rec.DisplayName, pq.Array(rec.Strengths), pq.Array(rec.Weaknesses),
		rec.Availability, rec.TimeZone, rec.PreferredMode, rec.PrimaryGoal,
		rec.PreferredFrequency, rec.PartnerPreference, rec.SessionLength,
		rec.StudyPersonality, strugglingStr, strugglingWeak,
	)
	if err != nil {
		return fmt.Errorf("profile: upsert %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves one profile by user ID. Returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM profiles WHERE user_id = $1`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", userID, err)
	}
	return &rec, nil
}

// List returns every stored profile, ordered by user ID for deterministic
// candidate pools.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: list scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: list rows: %w", err)
	}
	return records, nil
}

// SetQuizFlags stores the self-assessment outcome for a user without
// touching the rest of the profile.
func (s *Store) SetQuizFlags(ctx context.Context, userID string, inStrengths, inWeaknesses bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET struggling_in_strengths = $2,
		    struggling_in_weaknesses = $3,
		    updated_at = now()
		WHERE user_id = $1`,
		userID, inStrengths, inWeaknesses,
	)
	if err != nil {
		return fmt.Errorf("profile: set quiz flags %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("profile: set quiz flags %s: no such profile", userID)
	}
	return nil
}

// Feedback is one user's post-session rating of a completed pairing.
type Feedback struct {
	PairingID string
	UserID    string
	PartnerID string
	Rating    int // 1..5
	Comments  string
}

// SaveFeedback persists post-session feedback.
func (s *Store) SaveFeedback(ctx context.Context, fb Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("profile: save feedback: rating %d out of range", fb.Rating)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_feedback (pairing_id, user_id, partner_id, rating, comments)
		VALUES ($1, $2, $3, $4, $5)`,
		fb.PairingID, fb.UserID, fb.PartnerID, fb.Rating, fb.Comments,
	)
	if err != nil {
		return fmt.Errorf("profile: save feedback: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT user_id, display_name, strengths, weaknesses, availability,
	       time_zone, preferred_mode, primary_goal, preferred_frequency,
	       partner_preference, session_length, study_personality,
	       struggling_in_strengths, struggling_in_weaknesses`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec            Record
		strengths      pq.StringArray
		weaknesses     pq.StringArray
		strugglingStr  sql.NullBool
		strugglingWeak sql.NullBool
	)

	err := row.Scan(
		&rec.ID, &rec.DisplayName, &strengths, &weaknesses, &rec.Availability,
		&rec.TimeZone, &rec.PreferredMode, &rec.PrimaryGoal, &rec.PreferredFrequency,
		&rec.PartnerPreference, &rec.SessionLength, &rec.StudyPersonality,
		&strugglingStr, &strugglingWeak,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Strengths = []string(strengths)
	rec.Weaknesses = []string(weaknesses)
	if strugglingStr.Valid || strugglingWeak.Valid {
		rec.Quiz = &QuizPerformance{
			StrugglingInStrengths:  strugglingStr.Bool,
			StrugglingInWeaknesses: strugglingWeak.Bool,
		}
	}
	return rec, nil
}

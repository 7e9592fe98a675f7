package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DavidYu75/intreview/internal/analysis"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// SessionRecord is the durable row for an interview session.
type SessionRecord struct {
	ID        string     `json:"session_id"`
	OwnerID   string     `json:"owner"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// UpsertSession inserts a session or updates its status and end time.
func (s *Store) UpsertSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO interview_sessions (id, owner_id, status, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = COALESCE(EXCLUDED.ended_at, interview_sessions.ended_at)
	`, rec.ID, rec.OwnerID, rec.Status, rec.StartedAt, rec.EndedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, status, started_at, ended_at
		FROM interview_sessions
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.OwnerID, &rec.Status, &rec.StartedAt, &rec.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, ownerID string, limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, status, started_at, ended_at
		FROM interview_sessions
		WHERE owner_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SessionRecord{}
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Status, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveReport stores the final report. A session has at most one report;
// saving again replaces it, which only happens on an explicit replay.
func (s *Store) SaveReport(ctx context.Context, r *analysis.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO session_reports (session_id, report_json, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			report_json = EXCLUDED.report_json,
			generated_at = EXCLUDED.generated_at
	`, r.SessionID, body, r.GeneratedAt)
	return err
}

func (s *Store) GetReport(ctx context.Context, sessionID string) (*analysis.Report, error) {
	var body []byte
	err := s.db.QueryRow(ctx, `
		SELECT report_json FROM session_reports WHERE session_id = $1
	`, sessionID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var r analysis.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

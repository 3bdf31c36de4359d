// Package store provides the durable SQLite-backed repository behind the
// core store interfaces. All writes are idempotent where the pipeline's
// at-least-once delivery requires it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	operator_id TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS users_operator
	ON users(operator_id) WHERE operator_id != '';

CREATE TABLE IF NOT EXISTS meetings (
	id            TEXT PRIMARY KEY,
	external_id   TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	owner_id      TEXT NOT NULL REFERENCES users(id),
	started_at_ms INTEGER NOT NULL,
	ended_at_ms   INTEGER,
	duration_ms   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS speakers (
	id             TEXT PRIMARY KEY,
	meeting_id     TEXT NOT NULL REFERENCES meetings(id),
	participant_id TEXT NOT NULL,
	label          TEXT NOT NULL,
	UNIQUE(meeting_id, participant_id)
);

CREATE TABLE IF NOT EXISTS segments (
	meeting_id  TEXT NOT NULL REFERENCES meetings(id),
	speaker_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	start_ms    INTEGER NOT NULL,
	end_ms      INTEGER NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (meeting_id, seq)
);

CREATE TABLE IF NOT EXISTS participant_events (
	meeting_id       TEXT NOT NULL REFERENCES meetings(id),
	kind             TEXT NOT NULL,
	participant_id   TEXT NOT NULL,
	participant_name TEXT NOT NULL,
	at_ms            INTEGER NOT NULL
);
`

// placeholderID is fixed so the seed insert stays idempotent across restarts.
const placeholderID = domain.UserID("usr_placeholder")

// SQLite implements core.MeetingStore, core.TranscriptStore and
// core.UserDirectory on a single database handle.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writes serialized and makes the
	// in-memory DSN behave like one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Str("module", "store").Str("path", path).Msg("database opened")
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateMeeting(ctx context.Context, m *domain.Meeting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, external_id, title, status, owner_id, started_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID), m.ExternalID, m.Title, string(m.Status), string(m.OwnerID), m.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create meeting %s: %w", m.ExternalID, err)
	}
	return nil
}

func (s *SQLite) MeetingByExternalID(ctx context.Context, externalID string) (*domain.Meeting, error) {
	return s.meetingBy(ctx, "external_id", externalID)
}

func (s *SQLite) MeetingByID(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	return s.meetingBy(ctx, "id", string(id))
}

func (s *SQLite) meetingBy(ctx context.Context, column, value string) (*domain.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, title, status, owner_id, started_at_ms, ended_at_ms, duration_ms
		 FROM meetings WHERE `+column+` = ?`, value)
	var (
		m       domain.Meeting
		started int64
		ended   sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.ExternalID, &m.Title, &m.Status, &m.OwnerID, &started, &ended, &m.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("meeting by %s: %w", column, err)
	}
	m.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		m.EndedAt = &t
	}
	return &m, nil
}

func (s *SQLite) MarkOngoing(ctx context.Context, id domain.MeetingID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ? WHERE id = ? AND status = ?`,
		string(domain.MeetingOngoing), string(id), string(domain.MeetingPending))
	if err != nil {
		return fmt.Errorf("mark ongoing %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) MarkCompleted(ctx context.Context, id domain.MeetingID, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meetings
		 SET status = ?, ended_at_ms = ?, duration_ms = ? - started_at_ms
		 WHERE id = ? AND status != ?`,
		string(domain.MeetingCompleted), endedAt.UnixMilli(), endedAt.UnixMilli(),
		string(id), string(domain.MeetingCompleted))
	if err != nil {
		return fmt.Errorf("complete meeting %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) ReassignOwner(ctx context.Context, id domain.MeetingID, from, to domain.UserID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET owner_id = ? WHERE id = ? AND owner_id = ?`,
		string(to), string(id), string(from))
	if err != nil {
		return false, fmt.Errorf("reassign meeting %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLite) UpdateTitle(ctx context.Context, id domain.MeetingID, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET title = ? WHERE id = ?`, title, string(id))
	if err != nil {
		return fmt.Errorf("update title %s: %w", id, err)
	}
	return nil
}

// UpsertSegment inserts the segment, or on a (meeting, seq) conflict
// overwrites text and end_ms only. start_ms keeps its first-delivery value
// so a re-delivery can never move a segment's start time.
func (s *SQLite) UpsertSegment(ctx context.Context, seg domain.TranscriptSegment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments (meeting_id, speaker_id, seq, text, start_ms, end_ms, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(meeting_id, seq) DO UPDATE SET
			text = excluded.text,
			end_ms = excluded.end_ms`,
		string(seg.MeetingID), string(seg.SpeakerID), seg.Seq, seg.Text,
		seg.StartMs, seg.EndMs, seg.Confidence)
	if err != nil {
		return fmt.Errorf("upsert segment meeting=%s seq=%d: %w", seg.MeetingID, seg.Seq, err)
	}
	return nil
}

// FindOrCreateSpeaker returns the speaker for (meeting, participant),
// creating it on first sight. An existing speaker's label is never
// updated; the first observed label sticks.
func (s *SQLite) FindOrCreateSpeaker(ctx context.Context, meetingID domain.MeetingID, participantID, label string) (domain.Speaker, error) {
	sp := domain.NewSpeaker(meetingID, participantID, label)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO speakers (id, meeting_id, participant_id, label)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(meeting_id, participant_id) DO NOTHING`,
		string(sp.ID), string(meetingID), participantID, label)
	if err != nil {
		return domain.Speaker{}, fmt.Errorf("create speaker meeting=%s participant=%s: %w", meetingID, participantID, err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, meeting_id, participant_id, label FROM speakers
		 WHERE meeting_id = ? AND participant_id = ?`,
		string(meetingID), participantID)
	var out domain.Speaker
	if err := row.Scan(&out.ID, &out.MeetingID, &out.ParticipantID, &out.Label); err != nil {
		return domain.Speaker{}, fmt.Errorf("find speaker meeting=%s participant=%s: %w", meetingID, participantID, err)
	}
	return out, nil
}

func (s *SQLite) AppendParticipantEvent(ctx context.Context, ev domain.ParticipantEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participant_events (meeting_id, kind, participant_id, participant_name, at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		string(ev.MeetingID), string(ev.Kind), ev.ParticipantID, ev.ParticipantName, ev.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("append participant event meeting=%s: %w", ev.MeetingID, err)
	}
	return nil
}

// SegmentsByMeeting returns the stored transcript in sequence order. The
// speaker join fills ParticipantID with the external participant id so
// callers can match rows against live segment events.
func (s *SQLite) SegmentsByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.meeting_id, g.speaker_id, COALESCE(sp.participant_id, ''),
		        g.seq, g.text, g.start_ms, g.end_ms, g.confidence
		 FROM segments g
		 LEFT JOIN speakers sp ON sp.id = g.speaker_id
		 WHERE g.meeting_id = ? ORDER BY g.seq`, string(meetingID))
	if err != nil {
		return nil, fmt.Errorf("segments for %s: %w", meetingID, err)
	}
	defer rows.Close()
	var out []domain.TranscriptSegment
	for rows.Next() {
		var seg domain.TranscriptSegment
		if err := rows.Scan(&seg.MeetingID, &seg.SpeakerID, &seg.ParticipantID, &seg.Seq, &seg.Text, &seg.StartMs, &seg.EndMs, &seg.Confidence); err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *SQLite) ParticipantEventsByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.ParticipantEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meeting_id, kind, participant_id, participant_name, at_ms
		 FROM participant_events WHERE meeting_id = ? ORDER BY at_ms`, string(meetingID))
	if err != nil {
		return nil, fmt.Errorf("participant events for %s: %w", meetingID, err)
	}
	defer rows.Close()
	var out []domain.ParticipantEvent
	for rows.Next() {
		var (
			ev   domain.ParticipantEvent
			atMs int64
		)
		if err := rows.Scan(&ev.MeetingID, &ev.Kind, &ev.ParticipantID, &ev.ParticipantName, &atMs); err != nil {
			return nil, err
		}
		ev.At = time.UnixMilli(atMs)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) SpeakersByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.Speaker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meeting_id, participant_id, label FROM speakers
		 WHERE meeting_id = ? ORDER BY label`, string(meetingID))
	if err != nil {
		return nil, fmt.Errorf("speakers for %s: %w", meetingID, err)
	}
	defer rows.Close()
	var out []domain.Speaker
	for rows.Next() {
		var sp domain.Speaker
		if err := rows.Scan(&sp.ID, &sp.MeetingID, &sp.ParticipantID, &sp.Label); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SQLite) UserByOperatorID(ctx context.Context, operatorID string) (*domain.User, error) {
	if operatorID == "" {
		return nil, core.ErrNotFound
	}
	return s.userBy(ctx, "operator_id", operatorID)
}

func (s *SQLite) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.userBy(ctx, "id", string(id))
}

func (s *SQLite) userBy(ctx context.Context, column, value string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operator_id, name, email FROM users WHERE `+column+` = ?`, value)
	var u domain.User
	err := row.Scan(&u.ID, &u.OperatorID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by %s: %w", column, err)
	}
	return &u, nil
}

func (s *SQLite) PlaceholderUser(ctx context.Context) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		string(placeholderID), domain.PlaceholderName)
	if err != nil {
		return nil, fmt.Errorf("seed placeholder user: %w", err)
	}
	return s.UserByID(ctx, placeholderID)
}

func (s *SQLite) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, operator_id, name, email) VALUES (?, ?, ?, ?)`,
		string(u.ID), u.OperatorID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

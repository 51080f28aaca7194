package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	participants    TEXT[] NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	utterance_count INTEGER NOT NULL DEFAULT 0,
	no_audio        BOOLEAN NOT NULL DEFAULT FALSE,
	stats_received  INTEGER NOT NULL DEFAULT 0,
	stats_stored    INTEGER NOT NULL DEFAULT 0,
	stats_ignored   INTEGER NOT NULL DEFAULT 0,
	stats_failed    INTEGER NOT NULL DEFAULT 0,
	stats_lost      INTEGER NOT NULL DEFAULT 0,
	last_ts         DOUBLE PRECISION NOT NULL DEFAULT 0
);

ALTER TABLE meetings ADD COLUMN IF NOT EXISTS last_ts DOUBLE PRECISION NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS utterances (
	meeting_id  TEXT NOT NULL REFERENCES meetings(id),
	seq         INTEGER NOT NULL,
	id          UUID NOT NULL,
	speaker     TEXT NOT NULL,
	text        TEXT NOT NULL,
	ts_seconds  DOUBLE PRECISION NOT NULL,
	duration    DOUBLE PRECISION NOT NULL,
	no_speech   BOOLEAN NOT NULL DEFAULT FALSE,
	sentiment   TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	PRIMARY KEY (meeting_id, seq)
);
`

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type postgres struct {
	db *sql.DB
}

// NewPostgres opens the database and creates the schema if missing.
func NewPostgres(ctx context.Context, dsn string) (Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &postgres{db: db}, nil
}

func (p *postgres) CreateMeeting(ctx context.Context, m *entity.Meeting) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO meetings (id, name, participants, status, started_at, ended_at, updated_at,
			chunk_count, utterance_count, no_audio,
			stats_received, stats_stored, stats_ignored, stats_failed, stats_lost, last_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $15, $7, $8, $9, $10, $11, $12, $13, $14, $16)`,
		m.ID, m.Name, pq.Array(m.Participants), string(m.Status), m.StartedAt, nullTime(m.EndedAt),
		m.ChunkCount, m.UtteranceCount, m.NoAudio,
		m.Stats.Received, m.Stats.Stored, m.Stats.Ignored, m.Stats.Failed, m.Stats.Lost,
		m.UpdatedAt, m.LastTimestamp,
	)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert meeting: %w", err)
	}
	return nil
}

const selectMeeting = `
	SELECT id, name, participants, status, started_at, ended_at, updated_at,
		chunk_count, utterance_count, no_audio,
		stats_received, stats_stored, stats_ignored, stats_failed, stats_lost, last_ts
	FROM meetings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*entity.Meeting, error) {
	var (
		m       entity.Meeting
		status  string
		endedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.Name, pq.Array(&m.Participants), &status, &m.StartedAt, &endedAt, &m.UpdatedAt,
		&m.ChunkCount, &m.UtteranceCount, &m.NoAudio,
		&m.Stats.Received, &m.Stats.Stored, &m.Stats.Ignored, &m.Stats.Failed, &m.Stats.Lost, &m.LastTimestamp)
	if err != nil {
		return nil, err
	}

	m.Status = entity.Status(status)
	if endedAt.Valid {
		t := endedAt.Time
		m.EndedAt = &t
	}
	if m.Participants == nil {
		m.Participants = []string{}
	}
	return &m, nil
}

func (p *postgres) GetMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	m, err := scanMeeting(p.db.QueryRowContext(ctx, selectMeeting+` WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *postgres) UpdateMeeting(ctx context.Context, m *entity.Meeting) error {
	return updateMeeting(ctx, p.db, m)
}

func updateMeeting(ctx context.Context, ex execer, m *entity.Meeting) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE meetings SET name = $2, participants = $3, status = $4, started_at = $5, ended_at = $6, updated_at = $15,
			chunk_count = $7, utterance_count = $8, no_audio = $9,
			stats_received = $10, stats_stored = $11, stats_ignored = $12, stats_failed = $13, stats_lost = $14,
			last_ts = $16
		WHERE id = $1`,
		m.ID, m.Name, pq.Array(m.Participants), string(m.Status), m.StartedAt, nullTime(m.EndedAt),
		m.ChunkCount, m.UtteranceCount, m.NoAudio,
		m.Stats.Received, m.Stats.Stored, m.Stats.Ignored, m.Stats.Failed, m.Stats.Lost,
		m.UpdatedAt, m.LastTimestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrNotFound)
	}
	return nil
}

func (p *postgres) ListMeetings(ctx context.Context) ([]*entity.Meeting, error) {
	rows, err := p.db.QueryContext(ctx, selectMeeting+` ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var out []*entity.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *postgres) AppendUtterance(ctx context.Context, m *entity.Meeting, u *entity.Utterance) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO utterances (meeting_id, seq, id, speaker, text, ts_seconds, duration, no_speech, sentiment, source)
		SELECT $1, COALESCE(MAX(seq) + 1, 0), $2, $3, $4, $5, $6, $7, $8, $9
		FROM utterances WHERE meeting_id = $1
		RETURNING seq`,
		m.ID, u.ID, u.Speaker, u.Text, u.Timestamp, u.Duration, u.NoSpeech, string(u.Sentiment), string(u.Source),
	).Scan(&seq)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrNotFound)
		}
		return fmt.Errorf("failed to append utterance: %w", err)
	}

	if err := updateMeeting(ctx, tx, m); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit utterance: %w", err)
	}

	u.Seq = seq
	return nil
}

func (p *postgres) Utterances(ctx context.Context, meetingID string, since int) ([]entity.Utterance, error) {
	if _, err := p.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT seq, id, speaker, text, ts_seconds, duration, no_speech, sentiment, source
		FROM utterances WHERE meeting_id = $1 AND seq >= $2 ORDER BY seq`, meetingID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}
	defer rows.Close()

	out := []entity.Utterance{}
	for rows.Next() {
		var (
			u         entity.Utterance
			sentiment string
			source    string
		)
		if err := rows.Scan(&u.Seq, &u.ID, &u.Speaker, &u.Text, &u.Timestamp, &u.Duration, &u.NoSpeech, &sentiment, &source); err != nil {
			return nil, fmt.Errorf("failed to scan utterance: %w", err)
		}
		u.Sentiment = entity.Sentiment(sentiment)
		u.Source = entity.Source(source)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *postgres) SetSentiments(ctx context.Context, meetingID string, tags map[int]entity.Sentiment) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE utterances SET sentiment = $3
		WHERE meeting_id = $1 AND seq = $2 AND sentiment = ''`)
	if err != nil {
		return fmt.Errorf("failed to prepare sentiment update: %w", err)
	}
	defer stmt.Close()

	for seq, sentiment := range tags {
		if _, err := stmt.ExecContext(ctx, meetingID, seq, string(sentiment)); err != nil {
			return fmt.Errorf("failed to tag utterance %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

func (p *postgres) Close() error {
	return p.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

package store

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	branch        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS students (
	roll   TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	branch TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	when_at     TIMESTAMPTZ NOT NULL,
	creator_id  BIGINT NOT NULL REFERENCES users(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- No uniqueness on (event_id, roll): repeat scans are distinct rows.
CREATE TABLE IF NOT EXISTS attendance (
	id           BIGSERIAL PRIMARY KEY,
	event_id     BIGINT NOT NULL REFERENCES events(id),
	roll         TEXT NOT NULL,
	scanned_at   TIMESTAMPTZ NOT NULL,
	organiser_id BIGINT NOT NULL REFERENCES users(id),
	status       TEXT NOT NULL DEFAULT 'Pending',
	hod_id       BIGINT NULL REFERENCES users(id),
	reviewed_at  TIMESTAMPTZ NULL
);

CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
CREATE INDEX IF NOT EXISTS idx_attendance_roll  ON attendance(roll);

-- Append-only idempotency guard for digest emails: at most one marker per
-- (attendance row, timeslot label).
CREATE TABLE IF NOT EXISTS sent_digests (
	id            BIGSERIAL PRIMARY KEY,
	attendance_id BIGINT NOT NULL REFERENCES attendance(id),
	slot          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (attendance_id, slot)
);
`

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SeedDemo inserts a demo organiser and HOD when the users table is empty,
// mirroring a fresh install. Passwords are stored plaintext here on purpose:
// they exercise the legacy-credential upgrade path on first login.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, branch) VALUES
			('Event Organiser', 'organiser@example.com', 'pass', 'organiser', ''),
			('Head of Dept', 'hod@example.com', 'pass', 'hod', 'CS')
	`)
	return err
}

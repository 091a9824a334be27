package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"attendance/internal/store"
)

// Repository persists events, roster lookups and attendance rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetStudent returns a roster entry, or nil when the roll is unknown.
func (r *Repository) GetStudent(ctx context.Context, roll string) (*Student, error) {
	var st Student
	err := store.WithRetry(ctx, "get student", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT roll, name, branch FROM students WHERE roll = $1
		`, roll)
		return row.Scan(&st.Roll, &st.Name, &st.Branch)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetEvent returns an event by id, or nil when absent.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var e Event
	err := store.WithRetry(ctx, "get event", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT id, title, description, location, when_at, creator_id, created_at
			FROM events WHERE id = $1
		`, id)
		return row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.When, &e.CreatorID, &e.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEvent writes a new event and fills in its id and creation time.
func (r *Repository) InsertEvent(ctx context.Context, e *Event) error {
	return store.WithRetry(ctx, "insert event", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO events (title, description, location, when_at, creator_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, e.Title, e.Description, e.Location, e.When, e.CreatorID)
		return row.Scan(&e.ID, &e.CreatedAt)
	})
}

// ListEvents returns events newest first. creatorID 0 lists all events.
func (r *Repository) ListEvents(ctx context.Context, creatorID int64) ([]Event, error) {
	query := `
		SELECT id, title, description, location, when_at, creator_id, created_at
		FROM events`
	args := []any{}
	if creatorID != 0 {
		query += ` WHERE creator_id = $1`
		args = append(args, creatorID)
	}
	query += ` ORDER BY id DESC`

	var events []Event
	err := store.WithRetry(ctx, "list events", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		events = events[:0]
		for rows.Next() {
			var e Event
			if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.When, &e.CreatorID, &e.CreatedAt); err != nil {
				return err
			}
			events = append(events, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// InsertScan writes a new Pending attendance row.
func (r *Repository) InsertScan(ctx context.Context, eventID int64, roll string, organiserID int64, at time.Time) (Record, error) {
	rec := Record{
		EventID:     eventID,
		Roll:        roll,
		ScannedAt:   at,
		OrganiserID: organiserID,
		Status:      StatusPending,
	}
	err := store.WithRetry(ctx, "insert scan", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO attendance (event_id, roll, scanned_at, organiser_id, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, eventID, roll, at, organiserID, StatusPending)
		return row.Scan(&rec.ID)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// CountsForEvent returns live status totals for one event.
func (r *Repository) CountsForEvent(ctx context.Context, eventID int64) (Counts, error) {
	var c Counts
	err := store.WithRetry(ctx, "count attendance", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COUNT(*) FILTER (WHERE status = 'Pending'),
			       COUNT(*) FILTER (WHERE status = 'Approved'),
			       COUNT(*) FILTER (WHERE status = 'Rejected')
			FROM attendance WHERE event_id = $1
		`, eventID)
		return row.Scan(&c.Total, &c.Pending, &c.Approved, &c.Rejected)
	})
	if err != nil {
		return Counts{}, err
	}
	return c, nil
}

// ListForEvent returns attendance rows joined with the roster. A non-empty
// branch restricts rows to students of that branch; key must be one of the
// closed sort keys.
func (r *Repository) ListForEvent(ctx context.Context, eventID int64, branch string, key SortKey) ([]Row, error) {
	orderBy, ok := sortClauses[key]
	if !ok {
		orderBy = sortClauses[SortByRoll]
	}
	query := `
		SELECT a.id, a.event_id, a.roll, a.scanned_at, a.organiser_id, a.status,
		       a.hod_id, a.reviewed_at, s.name, s.branch
		FROM attendance a
		LEFT JOIN students s ON a.roll = s.roll
		WHERE a.event_id = $1`
	args := []any{eventID}
	if branch != "" {
		query += ` AND s.branch = $2`
		args = append(args, branch)
	}
	query += ` ORDER BY ` + orderBy

	var out []Row
	err := store.WithRetry(ctx, "list attendance", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var row Row
			if err := rows.Scan(
				&row.ID, &row.EventID, &row.Roll, &row.ScannedAt, &row.OrganiserID,
				&row.Status, &row.HODID, &row.ReviewedAt, &row.StudentName, &row.StudentBranch,
			); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus overwrites the status of one attendance row and stamps the
// reviewing HOD and review time together. It reports whether a row matched.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, hodID int64, at time.Time) (bool, error) {
	var updated bool
	err := store.WithRetry(ctx, "update status", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE attendance SET status = $2, hod_id = $3, reviewed_at = $4 WHERE id = $1
		`, id, status, hodID, at)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

package digest

import (
	"context"
	"database/sql"

	"attendance/internal/store"
	"attendance/internal/users"
)

// Repository reads unsent attendance for a branch and writes sent markers.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListHODs returns every hod account, branch included.
func (r *Repository) ListHODs(ctx context.Context) ([]users.User, error) {
	var hods []users.User
	err := store.WithRetry(ctx, "list hods", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, email, role, branch FROM users WHERE role = 'hod' ORDER BY id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		hods = hods[:0]
		for rows.Next() {
			var u users.User
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Branch); err != nil {
				return err
			}
			hods = append(hods, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return hods, nil
}

// UnsentForBranch selects attendance rows for students of the branch that
// carry no sent marker for the slot, ordered by roll then scan time. The
// ordering is the formatting contract of the report, not a default.
func (r *Repository) UnsentForBranch(ctx context.Context, branch, slot string) ([]ReportRow, error) {
	var out []ReportRow
	err := store.WithRetry(ctx, "select unsent attendance", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT e.title, e.description, a.id, s.roll, s.name, a.scanned_at, a.status
			FROM attendance a
			JOIN events e ON a.event_id = e.id
			JOIN students s ON a.roll = s.roll
			LEFT JOIN sent_digests sd ON sd.attendance_id = a.id AND sd.slot = $1
			WHERE s.branch = $2 AND sd.id IS NULL
			ORDER BY s.roll ASC, a.scanned_at ASC
		`, slot, branch)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var row ReportRow
			if err := rows.Scan(&row.EventTitle, &row.EventDescription, &row.AttendanceID,
				&row.Roll, &row.StudentName, &row.ScannedAt, &row.Status); err != nil {
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

// MarkSent writes one marker per attendance id for the slot. Markers are
// append-only; re-inserting an existing (id, slot) pair is a no-op.
func (r *Repository) MarkSent(ctx context.Context, ids []int64, slot string) error {
	if len(ids) == 0 {
		return nil
	}
	return store.WithRetry(ctx, "mark digests sent", func(ctx context.Context) error {
		for _, id := range ids {
			if _, err := r.db.ExecContext(ctx, `
				INSERT INTO sent_digests (attendance_id, slot)
				VALUES ($1, $2)
				ON CONFLICT (attendance_id, slot) DO NOTHING
			`, id, slot); err != nil {
				return err
			}
		}
		return nil
	})
}

package ledger

import "time"

// Status of an attendance record. Initial status is always Pending; an HOD
// action can move a record from any status to any other, including back to
// Pending, with no terminal state.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether s is one of the three recognised statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// SortKey selects the ordering of an event's attendance listing. The set is
// closed: each key maps to a static ORDER BY clause, so no caller input ever
// reaches SQL as ordering text.
type SortKey string

const (
	SortByRoll     SortKey = "roll"    // student roll ascending (default)
	SortByScanTime SortKey = "scanned" // scan timestamp descending
)

var sortClauses = map[SortKey]string{
	SortByRoll:     "s.roll ASC NULLS LAST, a.roll ASC",
	SortByScanTime: "a.scanned_at DESC",
}

// Student is reference roster data; the core never mutates it.
type Student struct {
	Roll   string `json:"roll"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// Event is created by an organiser and immutable afterwards.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	When        time.Time `json:"when"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record is one scan of one student for one event. Repeat scans of the same
// (event, roll) pair are deliberate distinct rows. HODID and ReviewedAt are
// set together or both nil.
type Record struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"event_id"`
	Roll        string     `json:"roll"`
	ScannedAt   time.Time  `json:"scanned_at"`
	OrganiserID int64      `json:"organiser_id"`
	Status      Status     `json:"status"`
	HODID       *int64     `json:"hod_id,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

// Row is a Record joined with its roster entry. The student fields are nil
// when the roll is not on the roster (manual entry).
type Row struct {
	Record
	StudentName   *string `json:"student_name"`
	StudentBranch *string `json:"student_branch"`
}

// Counts are live per-event totals returned alongside a new scan so the
// recording UI can update incrementally.
type Counts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

package ledger

import (
	"context"
	"strings"
	"time"

	"attendance/internal/apperror"
	"attendance/internal/users"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetStudent(ctx context.Context, roll string) (*Student, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	InsertEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, creatorID int64) ([]Event, error)
	InsertScan(ctx context.Context, eventID int64, roll string, organiserID int64, at time.Time) (Record, error)
	CountsForEvent(ctx context.Context, eventID int64) (Counts, error)
	ListForEvent(ctx context.Context, eventID int64, branch string, key SortKey) ([]Row, error)
}

// Directory resolves acting users so role checks use stored roles, not
// caller-supplied ones.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Service coordinates scans, roster lookups and event listings.
type Service struct {
	store Store
	users Directory
	now   func() time.Time
}

// NewService creates a service over a store and user directory.
func NewService(store Store, dir Directory) *Service {
	return &Service{store: store, users: dir, now: func() time.Time { return time.Now().UTC() }}
}

// RecordScan inserts a new Pending attendance row for the event and returns
// it with live per-event counts. Repeat scans of the same roll are allowed
// and become independent rows.
func (s *Service) RecordScan(ctx context.Context, eventID int64, roll string, organiserID int64) (Record, Counts, error) {
	if err := s.requireRole(ctx, organiserID, users.RoleOrganiser); err != nil {
		return Record{}, Counts{}, err
	}
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return Record{}, Counts{}, apperror.Validation("roll", "roll is required")
	}
	evt, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Record{}, Counts{}, err
	}
	if evt == nil {
		return Record{}, Counts{}, apperror.NotFound("event", eventID)
	}

	rec, err := s.store.InsertScan(ctx, eventID, roll, organiserID, s.now())
	if err != nil {
		return Record{}, Counts{}, err
	}
	counts, err := s.store.CountsForEvent(ctx, eventID)
	if err != nil {
		return Record{}, Counts{}, err
	}
	return rec, counts, nil
}

// LookupStudent resolves a roll against the roster. An unknown roll is a
// valid nil result, not an error: the caller falls back to manual entry.
func (s *Service) LookupStudent(ctx context.Context, roll string) (*Student, error) {
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return nil, apperror.Validation("roll", "roll is required")
	}
	return s.store.GetStudent(ctx, roll)
}

// ListForEvent returns the event's attendance rows joined with the roster.
// HOD viewers only see students of their own branch; organisers see all
// rows. An empty sort key defaults to roll order.
func (s *Service) ListForEvent(ctx context.Context, eventID int64, viewer users.User, key SortKey) ([]Row, error) {
	if key == "" {
		key = SortByRoll
	}
	if _, ok := sortClauses[key]; !ok {
		return nil, apperror.Validation("sort", "sort must be roll or scanned")
	}
	evt, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if evt == nil {
		return nil, apperror.NotFound("event", eventID)
	}

	branch := ""
	if viewer.Role == users.RoleHOD {
		branch = viewer.Branch
	}
	return s.store.ListForEvent(ctx, eventID, branch, key)
}

// CreateEvent inserts an event on behalf of an organiser.
func (s *Service) CreateEvent(ctx context.Context, title, description, location string, when time.Time, creatorID int64) (*Event, error) {
	if err := s.requireRole(ctx, creatorID, users.RoleOrganiser); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.Validation("title", "title is required")
	}
	if when.IsZero() {
		return nil, apperror.Validation("when", "event time is required")
	}
	e := &Event{
		Title:       title,
		Description: strings.TrimSpace(description),
		Location:    strings.TrimSpace(location),
		When:        when,
		CreatorID:   creatorID,
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns events scoped by viewer role: organisers see their own
// events, HODs see all of them.
func (s *Service) ListEvents(ctx context.Context, viewer users.User) ([]Event, error) {
	switch viewer.Role {
	case users.RoleOrganiser:
		return s.store.ListEvents(ctx, viewer.ID)
	case users.RoleHOD:
		return s.store.ListEvents(ctx, 0)
	default:
		return nil, apperror.Unauthorized("only organisers and hods may list events")
	}
}

func (s *Service) requireRole(ctx context.Context, userID int64, role string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.Role != role {
		return apperror.Unauthorized("operation requires role " + role)
	}
	return nil
}

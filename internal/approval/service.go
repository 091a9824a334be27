// Package approval applies HOD decisions to the attendance ledger.
//
// The transition model is an unconditional overwrite: any status is
// reachable from any status, including re-opening an Approved record back
// to Pending. There is no terminal state and no transition table.
package approval

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/apperror"
	"attendance/internal/ledger"
	"attendance/internal/users"
)

// Store is the slice of the ledger repository the engine needs.
type Store interface {
	UpdateStatus(ctx context.Context, id int64, status ledger.Status, hodID int64, at time.Time) (bool, error)
}

// Directory resolves the acting HOD.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Service validates and applies status decisions.
type Service struct {
	store Store
	users Directory
	now   func() time.Time
}

// NewService creates an approval service.
func NewService(store Store, dir Directory) *Service {
	return &Service{store: store, users: dir, now: func() time.Time { return time.Now().UTC() }}
}

// SetStatus overwrites one record's status, stamping the reviewing HOD and
// review time together. Only HODs may call it.
func (s *Service) SetStatus(ctx context.Context, attendanceID int64, status ledger.Status, hodID int64) error {
	if err := s.requireHOD(ctx, hodID); err != nil {
		return err
	}
	if !status.Valid() {
		return apperror.Validation("action", fmt.Sprintf("unrecognised action %q", status))
	}
	updated, err := s.store.UpdateStatus(ctx, attendanceID, status, hodID, s.now())
	if err != nil {
		return err
	}
	if !updated {
		return apperror.NotFound("attendance record", attendanceID)
	}
	return nil
}

// SetStatusBulk applies the status to each id in turn and returns the ids
// that were actually updated. There is no wrapping transaction: on a
// mid-batch storage failure the already-applied updates stay applied and
// are reported alongside the error. Missing ids are skipped, not errors.
func (s *Service) SetStatusBulk(ctx context.Context, ids []int64, status ledger.Status, hodID int64) ([]int64, error) {
	if err := s.requireHOD(ctx, hodID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperror.Validation("ids", "at least one attendance id is required")
	}
	if !status.Valid() {
		return nil, apperror.Validation("action", fmt.Sprintf("unrecognised action %q", status))
	}

	at := s.now()
	updated := make([]int64, 0, len(ids))
	for _, id := range ids {
		ok, err := s.store.UpdateStatus(ctx, id, status, hodID, at)
		if err != nil {
			return updated, fmt.Errorf("bulk update stopped at id %d: %w", id, err)
		}
		if ok {
			updated = append(updated, id)
		}
	}
	return updated, nil
}

func (s *Service) requireHOD(ctx context.Context, hodID int64) error {
	u, err := s.users.GetByID(ctx, hodID)
	if err != nil {
		return err
	}
	if u == nil || u.Role != users.RoleHOD {
		return apperror.Unauthorized("operation requires role hod")
	}
	return nil
}

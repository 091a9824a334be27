// Package digest selects newly recorded attendance per HOD branch, mails a
// report, and durably marks the covered rows so a timeslot never re-sends
// them. Idempotency lives in the sent_digests table, not in memory.
package digest

import (
	"context"
	"log"
	"time"

	"attendance/internal/mailer"
	"attendance/internal/metrics"
	"attendance/internal/users"
)

// Store is the persistence surface of a digest run.
type Store interface {
	ListHODs(ctx context.Context) ([]users.User, error)
	UnsentForBranch(ctx context.Context, branch, slot string) ([]ReportRow, error)
	MarkSent(ctx context.Context, ids []int64, slot string) error
}

// Summary describes one digest run for logging.
type Summary struct {
	Slot    string
	HODs    int
	Sent    int
	Skipped int
	Failed  int
}

// Service runs digest passes.
type Service struct {
	store  Store
	mailer mailer.Mailer
	tz     *time.Location
	now    func() time.Time
}

// NewService creates a digest service. tz controls the date shown in mail
// subjects; nil falls back to UTC.
func NewService(store Store, m mailer.Mailer, tz *time.Location) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{store: store, mailer: m, tz: tz, now: time.Now}
}

// Run executes one digest pass for the timeslot label.
//
// Per HOD: resolve branch (skip when blank), select unsent rows (skip when
// empty), send the report, and only after confirmed dispatch write one
// marker per covered row. A transport failure is logged and leaves the rows
// unmarked, so the next run at the same slot picks them up again; it never
// aborts the remaining HODs.
func (s *Service) Run(ctx context.Context, slot string) Summary {
	sum := Summary{Slot: slot}

	hods, err := s.store.ListHODs(ctx)
	if err != nil {
		log.Printf("digest[%s]: listing hods failed: %v", slot, err)
		return sum
	}
	sum.HODs = len(hods)

	for _, hod := range hods {
		if hod.Branch == "" {
			log.Printf("digest[%s]: skipping %s: no branch set", slot, hod.Email)
			sum.Skipped++
			continue
		}

		rows, err := s.store.UnsentForBranch(ctx, hod.Branch, slot)
		if err != nil {
			log.Printf("digest[%s]: selecting records for %s (branch=%s) failed: %v", slot, hod.Email, hod.Branch, err)
			sum.Failed++
			continue
		}
		if len(rows) == 0 {
			log.Printf("digest[%s]: nothing new for %s (branch=%s)", slot, hod.Email, hod.Branch)
			sum.Skipped++
			continue
		}

		subject := Subject(s.now().In(s.tz), slot, hod.Branch)
		plainBody, htmlBody := FormatReport(hod.Branch, rows)

		log.Printf("digest[%s]: sending %d records to %s (branch=%s)", slot, len(rows), hod.Email, hod.Branch)
		if err := s.mailer.Send(ctx, hod.Email, subject, plainBody, htmlBody); err != nil {
			log.Printf("digest[%s]: send to %s failed: %v", slot, hod.Email, err)
			metrics.DigestsFailed.Inc()
			sum.Failed++
			continue
		}

		ids := make([]int64, len(rows))
		for i, row := range rows {
			ids[i] = row.AttendanceID
		}
		if err := s.store.MarkSent(ctx, ids, slot); err != nil {
			// The mail went out but the markers did not stick; the slot will
			// re-send these rows next run rather than lose them silently.
			log.Printf("digest[%s]: marking %d records sent for %s failed: %v", slot, len(ids), hod.Email, err)
			sum.Failed++
			continue
		}
		metrics.DigestsSent.Inc()
		sum.Sent++
		log.Printf("digest[%s]: marked %d records sent for %s", slot, len(ids), hod.Email)
	}

	return sum
}

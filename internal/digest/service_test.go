package digest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/users"
)

// fakeStore keeps branch-scoped rows and honours markers the way the
// sent_digests table does: a marked (id, slot) pair is never re-selected.
type fakeStore struct {
	hods     []users.User
	byBranch map[string][]ReportRow
	markers  map[string]bool // "id/slot"

	listErr   error
	selectErr error
	markErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byBranch: make(map[string][]ReportRow),
		markers:  make(map[string]bool),
	}
}

func markerKey(id int64, slot string) string {
	return fmt.Sprintf("%d/%s", id, slot)
}

func (f *fakeStore) ListHODs(context.Context) ([]users.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hods, nil
}

func (f *fakeStore) UnsentForBranch(_ context.Context, branch, slot string) ([]ReportRow, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []ReportRow
	for _, row := range f.byBranch[branch] {
		if !f.markers[markerKey(row.AttendanceID, slot)] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSent(_ context.Context, ids []int64, slot string) error {
	if f.markErr != nil {
		return f.markErr
	}
	for _, id := range ids {
		f.markers[markerKey(id, slot)] = true
	}
	return nil
}

type sentMail struct {
	to, subject, plain, html string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, plainBody, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, plain: plainBody, html: htmlBody})
	return nil
}

func csRows() []ReportRow {
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	return []ReportRow{
		{AttendanceID: 1, EventTitle: "Seminar", Roll: "21CS001", StudentName: "Asha", ScannedAt: base},
		{AttendanceID: 2, EventTitle: "Workshop", Roll: "21CS002", StudentName: "Binod", ScannedAt: base},
		{AttendanceID: 3, EventTitle: "Seminar", Roll: "21CS003", StudentName: "Chitra", ScannedAt: base},
		{AttendanceID: 4, EventTitle: "Workshop", Roll: "21CS004", StudentName: "Dev", ScannedAt: base},
		{AttendanceID: 5, EventTitle: "Seminar", Roll: "21CS005", StudentName: "Esha", ScannedAt: base},
	}
}

func TestRunSendsAndMarks(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{{ID: 2, Email: "hod@example.com", Role: users.RoleHOD, Branch: "CS"}}
	store.byBranch["CS"] = csRows()
	m := &fakeMailer{}
	svc := NewService(store, m, time.UTC)

	sum := svc.Run(context.Background(), "12:30")

	assert.Equal(t, Summary{Slot: "12:30", HODs: 1, Sent: 1}, sum)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "hod@example.com", m.sent[0].to)
	assert.Contains(t, m.sent[0].subject, "at 12:30 for department: CS")
	assert.Contains(t, m.sent[0].plain, "Event: Seminar")
	assert.Contains(t, m.sent[0].plain, "Event: Workshop")

	// Exactly five markers tagged with the slot label.
	assert.Len(t, store.markers, 5)
	for id := int64(1); id <= 5; id++ {
		assert.True(t, store.markers[markerKey(id, "12:30")], "marker for %d", id)
	}
}

func TestRunIsIdempotentPerSlot(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{{ID: 2, Email: "hod@example.com", Role: users.RoleHOD, Branch: "CS"}}
	store.byBranch["CS"] = csRows()
	m := &fakeMailer{}
	svc := NewService(store, m, time.UTC)

	first := svc.Run(context.Background(), "12:30")
	second := svc.Run(context.Background(), "12:30")

	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, m.sent, 1, "second run must not re-send marked records")

	// A different slot label is a separate idempotency domain.
	third := svc.Run(context.Background(), "16:00")
	assert.Equal(t, 1, third.Sent)
	assert.Len(t, m.sent, 2)
}

func TestRunTransportFailureWritesNoMarkers(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{{ID: 2, Email: "hod@example.com", Role: users.RoleHOD, Branch: "CS"}}
	store.byBranch["CS"] = csRows()
	m := &fakeMailer{err: errors.New("smtp: connection refused")}
	svc := NewService(store, m, time.UTC)

	sum := svc.Run(context.Background(), "12:30")
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, store.markers)

	// Next run at the same slot re-selects the same records.
	m.err = nil
	retry := svc.Run(context.Background(), "12:30")
	assert.Equal(t, 1, retry.Sent)
	require.Len(t, m.sent, 1)
	assert.Len(t, store.markers, 5)
}

func TestRunTransportFailureDoesNotAbortRemainingHODs(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{
		{ID: 2, Email: "cs@example.com", Role: users.RoleHOD, Branch: "CS"},
		{ID: 4, Email: "me@example.com", Role: users.RoleHOD, Branch: "ME"},
	}
	store.byBranch["CS"] = csRows()
	store.byBranch["ME"] = []ReportRow{
		{AttendanceID: 9, EventTitle: "Expo", Roll: "21ME001", StudentName: "Farid", ScannedAt: time.Now()},
	}
	m := &failFirstMailer{failTo: "cs@example.com"}
	svc := NewService(store, m, time.UTC)

	sum := svc.Run(context.Background(), "12:30")
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Sent)
	assert.True(t, store.markers[markerKey(9, "12:30")])
	assert.False(t, store.markers[markerKey(1, "12:30")])
}

type failFirstMailer struct {
	failTo string
	sent   []string
}

func (f *failFirstMailer) Send(_ context.Context, to, _, _, _ string) error {
	if to == f.failTo {
		return errors.New("smtp: 451 temporary failure")
	}
	f.sent = append(f.sent, to)
	return nil
}

func TestRunSkipsHODWithoutBranchAndEmptySelections(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{
		{ID: 2, Email: "nobranch@example.com", Role: users.RoleHOD},
		{ID: 4, Email: "idle@example.com", Role: users.RoleHOD, Branch: "EE"},
	}
	m := &fakeMailer{}
	svc := NewService(store, m, time.UTC)

	sum := svc.Run(context.Background(), "12:30")
	assert.Equal(t, Summary{Slot: "12:30", HODs: 2, Skipped: 2}, sum)
	assert.Empty(t, m.sent)
	assert.Empty(t, store.markers)
}

func TestRunMarkFailureCountsAsFailed(t *testing.T) {
	store := newFakeStore()
	store.hods = []users.User{{ID: 2, Email: "hod@example.com", Role: users.RoleHOD, Branch: "CS"}}
	store.byBranch["CS"] = csRows()
	store.markErr = errors.New("too many clients")
	m := &fakeMailer{}
	svc := NewService(store, m, time.UTC)

	sum := svc.Run(context.Background(), "12:30")
	assert.Equal(t, 1, sum.Failed)
	assert.Len(t, m.sent, 1)
	assert.Empty(t, store.markers)
}

func TestCronSpec(t *testing.T) {
	spec, err := cronSpec("12:30")
	require.NoError(t, err)
	assert.Equal(t, "30 12 * * *", spec)

	spec, err = cronSpec("16:00")
	require.NoError(t, err)
	assert.Equal(t, "0 16 * * *", spec)

	for _, bad := range []string{"", "noon", "25:00", "12:60", "12"} {
		_, err := cronSpec(bad)
		assert.Error(t, err, "slot %q", bad)
	}
}

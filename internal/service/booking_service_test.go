package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type bookingFixture struct {
	store   *memStore
	svc     *BookingService
	mentor  *model.User
	mentee  *model.User
	mentee2 *model.User
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	store := newMemStore()
	svc := NewBookingService(store, sessionLedger{store}, store, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	f := &bookingFixture{store: store, svc: svc}
	f.mentor = f.addUser(t, "Tanya", model.RoleMentor)
	f.mentee = f.addUser(t, "Misha", model.RoleMentee)
	f.mentee2 = f.addUser(t, "Masha", model.RoleMentee)
	return f
}

func (f *bookingFixture) addUser(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()

	u := &model.User{
		ID:    uuid.New(),
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
	if role == model.RoleMentor {
		u.MentorProfile = &model.MentorProfile{Bio: "Go developer", Expertise: []string{"go"}}
	}
	require.NoError(t, f.store.Create(context.Background(), u))
	return u
}

func (f *bookingFixture) pending(t *testing.T) int {
	t.Helper()

	u, err := f.store.GetByID(context.Background(), f.mentor.ID)
	require.NoError(t, err)
	return u.MentorProfile.PendingRequests
}

// assertCounterMatchesStats checks the incremental counter against a recount.
func (f *bookingFixture) assertCounterMatchesStats(t *testing.T) {
	t.Helper()

	stats, err := f.svc.GetStats(context.Background(), f.mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.PendingRequests, f.pending(t), "pendingRequests counter drifted from recount")
}

func strPtr(s string) *string { return &s }

func TestRequestSession_CreatesPendingAndIncrementsCounter(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusPending, session.Status)
	assert.Equal(t, f.mentor.ID, session.MentorID)
	assert.Equal(t, f.mentee.ID, session.MenteeID)
	assert.True(t, session.ScheduledDate.Equal(when))
	assert.Nil(t, session.MeetingLink)
	assert.Equal(t, 1, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestRequestSession_Validation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		caller   uuid.UUID
		mentorID uuid.UUID
		date     time.Time
		kind     apperr.Kind
	}{
		{name: "missing mentor id", caller: f.mentee.ID, mentorID: uuid.Nil, date: when, kind: apperr.KindValidation},
		{name: "missing date", caller: f.mentee.ID, mentorID: f.mentor.ID, kind: apperr.KindValidation},
		{name: "unknown caller", caller: uuid.New(), mentorID: f.mentor.ID, date: when, kind: apperr.KindNotFound},
		{name: "caller is a mentor", caller: f.mentor.ID, mentorID: f.mentor.ID, date: when, kind: apperr.KindForbidden},
		{name: "unknown mentor", caller: f.mentee.ID, mentorID: uuid.New(), date: when, kind: apperr.KindNotFound},
		{name: "target is a mentee", caller: f.mentee.ID, mentorID: f.mentee2.ID, date: when, kind: apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestSession(ctx, tt.caller, tt.mentorID, tt.date)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	assert.Equal(t, 0, f.pending(t))
}

func TestRequestSession_DuplicatePending(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	_, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
	require.NoError(t, err)

	_, err = f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when.Add(24*time.Hour))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicatePending, apperr.KindOf(err))
	assert.Equal(t, 1, f.pending(t))

	// другой менти к тому же ментору допустим
	_, err = f.svc.RequestSession(ctx, f.mentee2.ID, f.mentor.ID, when)
	require.NoError(t, err)
	assert.Equal(t, 2, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestRequestSession_AllowedAgainAfterDecision(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	first, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, first.ID, "rejected", nil)
	require.NoError(t, err)

	_, err = f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
	require.NoError(t, err)
	assert.Equal(t, 1, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestRequestSession_ConcurrentSamePair(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
		}(i)
	}
	close(start)
	wg.Wait()

	created, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case apperr.Is(err, apperr.KindDuplicatePending):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, duplicates)
	assert.Equal(t, 1, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestRequestSession_RollsBackWhenCounterFails(t *testing.T) {
	f := newBookingFixture(t)
	f.store.adjustErr = errors.New("connection reset")

	_, err := f.svc.RequestSession(context.Background(), f.mentee.ID, f.mentor.ID, time.Now())
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindInternal, appErr.Kind)
	assert.NotContains(t, appErr.Message, "connection reset")

	f.store.adjustErr = nil
	stats, err := f.svc.GetStats(context.Background(), f.mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSessions, "session row must not survive a failed counter update")
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, when)
	require.NoError(t, err)
	require.Equal(t, 1, f.pending(t))

	// accept without a link
	accepted, err := f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAccepted, accepted.Status)
	assert.Nil(t, accepted.MeetingLink)
	assert.Equal(t, 0, f.pending(t))
	require.NotNil(t, accepted.Mentee)
	assert.Equal(t, f.mentee.Email, accepted.Mentee.Email)

	// attach the link later, counter untouched
	link := "https://zoom.example/x"
	withLink, err := f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", strPtr(link))
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAccepted, withLink.Status)
	require.NotNil(t, withLink.MeetingLink)
	assert.Equal(t, link, *withLink.MeetingLink)
	assert.Equal(t, 0, f.pending(t))

	// the link cannot be replaced
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", strPtr("https://zoom.example/y"))
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	// accepted never goes back to pending or over to rejected
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "pending", nil)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "rejected", nil)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	f.assertCounterMatchesStats(t)
}

func TestUpdateStatus_AcceptWithLinkInOneCall(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", strPtr("https://meet.example/abc?pwd=1&x=2"))
	require.NoError(t, err)
	require.NotNil(t, updated.MeetingLink)
	assert.Equal(t, "https://meet.example/abc?pwd=1&x=2", *updated.MeetingLink)
	assert.Equal(t, 0, f.pending(t))
}

func TestUpdateStatus_Reject(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "rejected", strPtr("https://zoom.example/x"))
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err), "link on reject")
	assert.Equal(t, 1, f.pending(t))

	rejected, err := f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "rejected", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusRejected, rejected.Status)
	assert.Equal(t, 0, f.pending(t))

	for _, status := range []string{"accepted", "rejected", "pending"} {
		_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, status, nil)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err), status)
	}
	assert.Equal(t, 0, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestUpdateStatus_ForbiddenForOtherCallers(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	otherMentor := f.addUser(t, "Petya", model.RoleMentor)

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	for _, caller := range []uuid.UUID{f.mentee.ID, f.mentee2.ID, otherMentor.ID} {
		_, err := f.svc.UpdateStatus(ctx, caller, session.ID, "accepted", nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	}

	stored, err := sessionLedger{f.store}.GetByIDForUpdate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPending, stored.Status)
	assert.Equal(t, 1, f.pending(t))
}

func TestUpdateStatus_InputErrors(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name      string
		sessionID uuid.UUID
		status    string
		link      *string
		kind      apperr.Kind
	}{
		{name: "unknown session", sessionID: uuid.New(), status: "accepted", kind: apperr.KindNotFound},
		{name: "unknown status", sessionID: session.ID, status: "cancelled", kind: apperr.KindInvalidTransition},
		{name: "completed is not settable", sessionID: session.ID, status: "completed", kind: apperr.KindInvalidTransition},
		{name: "re-enter pending", sessionID: session.ID, status: "pending", kind: apperr.KindInvalidTransition},
		{name: "link is not a url", sessionID: session.ID, status: "accepted", link: strPtr("zoom me"), kind: apperr.KindValidation},
		{name: "link has wrong scheme", sessionID: session.ID, status: "accepted", link: strPtr("javascript:alert(1)"), kind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateStatus(ctx, f.mentor.ID, tt.sessionID, tt.status, tt.link)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	assert.Equal(t, 1, f.pending(t))
}

func TestUpdateStatus_CompletedIsTerminal(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", nil)
	require.NoError(t, err)
	f.store.forceStatus(session.ID, model.SessionStatusCompleted)

	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", strPtr("https://zoom.example/x"))
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	stats, err := f.svc.GetStats(ctx, f.mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedSessions)
	assert.Equal(t, 1, stats.TotalSessions)
}

func TestUpdateStatus_RollsBackWhenCounterFails(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	f.store.adjustErr = errors.New("deadlock detected")
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, "accepted", nil)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	f.store.adjustErr = nil

	stored, err := sessionLedger{f.store}.GetByIDForUpdate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPending, stored.Status)
	f.assertCounterMatchesStats(t)
}

func TestUpdateStatus_ConcurrentDecisions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	session, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	statuses := []string{"accepted", "rejected", "accepted", "rejected"}
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
		wins  int
	)
	for _, status := range statuses {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			<-start
			if _, err := f.svc.UpdateStatus(ctx, f.mentor.ID, session.ID, status, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(status)
	}
	close(start)
	wg.Wait()

	// A second "accepted" is a no-op error, so exactly one decision lands.
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, f.pending(t))
	f.assertCounterMatchesStats(t)
}

func TestListings(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	now := f.svc.now()

	past, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, past.ID, "rejected", nil)
	require.NoError(t, err)

	later, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, now.Add(72*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.mentor.ID, later.ID, "accepted", nil)
	require.NoError(t, err)

	sooner, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, now.Add(24*time.Hour))
	require.NoError(t, err)

	other, err := f.svc.RequestSession(ctx, f.mentee2.ID, f.mentor.ID, now.Add(12*time.Hour))
	require.NoError(t, err)

	t.Run("requests newest first", func(t *testing.T) {
		list, err := f.svc.ListRequestsForMentor(ctx, f.mentor.ID)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, other.ID, list[0].ID)
		assert.Equal(t, past.ID, list[3].ID)
	})

	t.Run("upcoming for mentee ascending and future only", func(t *testing.T) {
		list, err := f.svc.ListUpcomingForMentee(ctx, f.mentee.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, sooner.ID, list[0].ID)
		assert.Equal(t, later.ID, list[1].ID)
	})

	t.Run("history by mentor descending", func(t *testing.T) {
		list, err := f.svc.ListByMentor(ctx, f.mentor.ID)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, later.ID, list[0].ID)
		assert.Equal(t, past.ID, list[3].ID)
	})

	t.Run("history by mentee", func(t *testing.T) {
		list, err := f.svc.ListByMentee(ctx, f.mentee2.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, other.ID, list[0].ID)
	})

	t.Run("empty lists are not nil", func(t *testing.T) {
		list, err := f.svc.ListRequestsForMentor(ctx, uuid.New())
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := f.svc.GetStats(ctx, f.mentor.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalSessions)
		assert.Equal(t, 2, stats.PendingRequests)
		assert.Equal(t, 0, stats.CompletedSessions)
		f.assertCounterMatchesStats(t)
	})
}

func TestListMentors_OnlyWithProfile(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	blank := &model.User{
		ID: uuid.New(), Name: "Blank", Email: "blank@example.com",
		Role: model.RoleMentor, MentorProfile: &model.MentorProfile{Expertise: []string{}},
	}
	require.NoError(t, f.store.Create(ctx, blank))

	mentors, err := f.svc.ListMentors(ctx)
	require.NoError(t, err)
	require.Len(t, mentors, 1)
	assert.Equal(t, f.mentor.ID, mentors[0].ID)
	require.NotNil(t, mentors[0].MentorProfile)
	assert.Equal(t, "Go developer", mentors[0].MentorProfile.Bio)
}

func TestValidateMeetingLink(t *testing.T) {
	assert.NoError(t, validateMeetingLink(nil))
	assert.NoError(t, validateMeetingLink(strPtr("")))
	assert.NoError(t, validateMeetingLink(strPtr("https://zoom.us/j/123")))
	assert.NoError(t, validateMeetingLink(strPtr("http://localhost:8080/room")))
	assert.Error(t, validateMeetingLink(strPtr("ftp://files.example/x")))
	assert.Error(t, validateMeetingLink(strPtr("/relative/path")))
	assert.Error(t, validateMeetingLink(strPtr("https://")))
}

func TestAuditPendingCounters(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestSession(ctx, f.mentee.ID, f.mentor.ID, time.Now())
	require.NoError(t, err)

	n, err := f.svc.AuditPendingCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.store.AdjustPendingRequests(ctx, f.mentor.ID, 3))
	n, err = f.svc.AuditPendingCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, f.pending(t), "audit must not rewrite the counter")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	"github.com/Freeeeeet/mentorship_api/internal/metrics"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService owns the session lifecycle. It trusts the caller id it is
// given; identity is established by the HTTP gate before any call lands here.
type BookingService struct {
	tx       Transactor
	sessions SessionLedger
	users    UserDirectory
	logger   *zap.Logger
	now      func() time.Time
}

func NewBookingService(
	tx Transactor,
	sessions SessionLedger,
	users UserDirectory,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:       tx,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestSession создаёт pending-заявку менти к ментору и увеличивает счётчик
// pending-заявок ментора в той же транзакции.
func (s *BookingService) RequestSession(ctx context.Context, callerID, mentorID uuid.UUID, scheduledDate time.Time) (*model.Session, error) {
	if mentorID == uuid.Nil {
		return nil, apperr.Validation("mentorId is required")
	}
	if scheduledDate.IsZero() {
		return nil, apperr.Validation("scheduledDate is required")
	}

	mentee, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get mentee: %w", err))
	}
	if mentee == nil {
		return nil, apperr.NotFound("user not found")
	}
	if !mentee.IsMentee() {
		metrics.SessionRequests.WithLabelValues("rejected").Inc()
		return nil, apperr.Forbidden("only mentees can request sessions")
	}

	mentor, err := s.users.GetByID(ctx, mentorID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get mentor: %w", err))
	}
	if mentor == nil || !mentor.IsMentor() {
		return nil, apperr.NotFound("mentor not found")
	}

	session := &model.Session{
		ID:            uuid.New(),
		MentorID:      mentor.ID,
		MenteeID:      mentee.ID,
		ScheduledDate: scheduledDate.UTC(),
		Status:        model.SessionStatusPending,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, session); err != nil {
			if errors.Is(err, repository.ErrDuplicatePending) {
				return apperr.Wrap(apperr.KindDuplicatePending, "You already have a pending request with this mentor", err)
			}
			return fmt.Errorf("create session: %w", err)
		}

		if err := s.users.AdjustPendingRequests(ctx, mentor.ID, 1); err != nil {
			return fmt.Errorf("increment pending requests: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindDuplicatePending) {
			metrics.SessionRequests.WithLabelValues("duplicate").Inc()
		}
		return nil, asAppError(err)
	}

	metrics.SessionRequests.WithLabelValues("created").Inc()
	s.logger.Info("Session requested",
		zap.String("session_id", session.ID.String()),
		zap.String("mentor_id", mentor.ID.String()),
		zap.String("mentee_id", mentee.ID.String()),
		zap.Time("scheduled_date", session.ScheduledDate),
	)

	return session, nil
}

// UpdateStatus applies the mentor's decision to a session. Status, meeting
// link and the pending counter change in one transaction with the session
// row locked, so two concurrent decisions cannot both leave pending.
func (s *BookingService) UpdateStatus(ctx context.Context, callerID, sessionID uuid.UUID, rawStatus string, meetingLink *string) (*model.Session, error) {
	status, ok := model.ParseSessionStatus(rawStatus)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidTransition, fmt.Sprintf("unknown status %q", rawStatus))
	}
	if err := validateMeetingLink(meetingLink); err != nil {
		return nil, err
	}

	var applied model.Transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return apperr.NotFound("Session not found")
		}
		if session.MentorID != callerID {
			return apperr.Forbidden("Not authorized")
		}

		t, err := session.Transition(status, meetingLink)
		if err != nil {
			return apperr.Wrap(apperr.KindInvalidTransition, err.Error(), err)
		}

		if err := s.sessions.ApplyTransition(ctx, session.ID, t); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return apperr.Wrap(apperr.KindInvalidTransition, "session was updated concurrently", err)
			}
			return fmt.Errorf("apply transition: %w", err)
		}

		if t.LeavesPending() {
			if err := s.users.AdjustPendingRequests(ctx, session.MentorID, -1); err != nil {
				return fmt.Errorf("decrement pending requests: %w", err)
			}
		}

		applied = t
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}

	metrics.SessionTransitions.WithLabelValues(string(applied.From), string(applied.To)).Inc()
	s.logger.Info("Session status updated",
		zap.String("session_id", sessionID.String()),
		zap.String("mentor_id", callerID.String()),
		zap.String("from", string(applied.From)),
		zap.String("to", string(applied.To)),
		zap.Bool("meeting_link", applied.MeetingLink != nil),
	)

	session, err := s.sessions.GetDetailed(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload session: %w", err))
	}
	if session == nil {
		return nil, apperr.Internal(fmt.Errorf("session %s vanished after update", sessionID))
	}

	return session, nil
}

// ListRequestsForMentor получает заявки ментора, новые первыми
func (s *BookingService) ListRequestsForMentor(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.sessions.ListRequestsForMentor(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sessions, nil
}

// ListUpcomingForMentee получает предстоящие сессии менти
func (s *BookingService) ListUpcomingForMentee(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.sessions.ListUpcomingForMentee(ctx, callerID, s.now().UTC())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sessions, nil
}

// ListByMentor получает всю историю сессий ментора
func (s *BookingService) ListByMentor(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByMentor(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sessions, nil
}

// ListByMentee получает всю историю сессий менти
func (s *BookingService) ListByMentee(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByMentee(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sessions, nil
}

// GetStats recounts the mentor's sessions from the ledger, not from the
// counter on the mentor profile.
func (s *BookingService) GetStats(ctx context.Context, callerID uuid.UUID) (*model.MentorStats, error) {
	stats, err := s.sessions.StatsForMentor(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}

// ListMentors получает менторов с заполненным профилем
func (s *BookingService) ListMentors(ctx context.Context) ([]*model.PartyInfo, error) {
	mentors, err := s.users.ListMentors(ctx, true)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	result := make([]*model.PartyInfo, 0, len(mentors))
	for _, m := range mentors {
		result = append(result, m.Public())
	}
	return result, nil
}

// AuditPendingCounters compares every mentor's pendingRequests counter with the
// ledger and reports mismatches. It never rewrites the counter.
func (s *BookingService) AuditPendingCounters(ctx context.Context) (int, error) {
	drift, err := s.users.ListCounterDrift(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit pending counters: %w", err)
	}

	metrics.PendingCounterDrift.Set(float64(len(drift)))
	for _, d := range drift {
		s.logger.Warn("Pending counter drift",
			zap.String("mentor_id", d.MentorID.String()),
			zap.Int("counter", d.Counter),
			zap.Int("pending_sessions", d.Pending),
		)
	}

	return len(drift), nil
}

func validateMeetingLink(link *string) error {
	if link == nil || *link == "" {
		return nil
	}

	u, err := url.ParseRequestURI(*link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation("zoomLink must be an http(s) URL")
	}
	return nil
}

package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"   // Ожидает решения ментора
	SessionStatusAccepted  SessionStatus = "accepted"  // Принято ментором
	SessionStatusRejected  SessionStatus = "rejected"  // Отклонено ментором
	SessionStatusCompleted SessionStatus = "completed" // Завершено, выставляется вне API
)

// ParseSessionStatus converts raw input into a SessionStatus, rejecting unknown values.
func ParseSessionStatus(s string) (SessionStatus, bool) {
	switch st := SessionStatus(s); st {
	case SessionStatusPending, SessionStatusAccepted, SessionStatusRejected, SessionStatusCompleted:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no API operation can move a session out of st.
func (st SessionStatus) IsTerminal() bool {
	return st == SessionStatusRejected || st == SessionStatusCompleted
}

var (
	ErrReenterPending     = errors.New("session cannot return to pending")
	ErrTerminalStatus     = errors.New("session is already closed")
	ErrLinkRequiresAccept = errors.New("meeting link can only be set on an accepted session")
	ErrLinkAlreadySet     = errors.New("meeting link is already set")
	ErrNothingToChange    = errors.New("session is already accepted")
	ErrUnsupportedStatus  = errors.New("status cannot be set by the mentor")
	ErrIllegalTransition  = errors.New("transition is not allowed")
)

type Session struct {
	ID            uuid.UUID     `json:"id"`
	MentorID      uuid.UUID     `json:"mentorId"`
	MenteeID      uuid.UUID     `json:"menteeId"`
	ScheduledDate time.Time     `json:"scheduledDate"`
	Status        SessionStatus `json:"status"`
	MeetingLink   *string       `json:"zoomLink,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	// Заполняются при выборке с join (не колонки sessions)
	Mentor *PartyInfo `json:"mentor,omitempty"`
	Mentee *PartyInfo `json:"mentee,omitempty"`
}

// HasMeetingLink checks if a meeting link is attached
func (s *Session) HasMeetingLink() bool {
	return s.MeetingLink != nil && *s.MeetingLink != ""
}

// Transition is the result of applying a mentor decision to a session.
type Transition struct {
	From        SessionStatus
	To          SessionStatus
	MeetingLink *string
}

// LeavesPending reports whether the transition closes a pending request,
// which is when the mentor's pending counter has to move.
func (t Transition) LeavesPending() bool {
	return t.From == SessionStatusPending && t.To != SessionStatusPending
}

// Transition validates a mentor's request to move the session to `to`,
// optionally attaching link. It does not mutate s.
//
//	pending  -> accepted (link optional)
//	pending  -> rejected (no link)
//	accepted -> accepted (link required, only if none is set yet)
func (s *Session) Transition(to SessionStatus, link *string) (Transition, error) {
	if link != nil && *link == "" {
		link = nil
	}

	t := Transition{From: s.Status, To: to, MeetingLink: s.MeetingLink}

	switch {
	case to == SessionStatusPending:
		return Transition{}, ErrReenterPending
	case to == SessionStatusCompleted:
		return Transition{}, ErrUnsupportedStatus
	case s.Status.IsTerminal():
		return Transition{}, ErrTerminalStatus
	}

	switch s.Status {
	case SessionStatusPending:
		if to == SessionStatusRejected && link != nil {
			return Transition{}, ErrLinkRequiresAccept
		}
		if to == SessionStatusAccepted {
			t.MeetingLink = link
		}
		return t, nil

	case SessionStatusAccepted:
		if to != SessionStatusAccepted {
			return Transition{}, ErrIllegalTransition
		}
		if link == nil {
			return Transition{}, ErrNothingToChange
		}
		if s.HasMeetingLink() {
			return Transition{}, ErrLinkAlreadySet
		}
		t.MeetingLink = link
		return t, nil
	}

	return Transition{}, ErrUnsupportedStatus
}

// Apply writes a validated transition onto the session.
func (s *Session) Apply(t Transition) {
	s.Status = t.To
	s.MeetingLink = t.MeetingLink
}

// MentorStats is the dashboard aggregate recomputed from the ledger.
type MentorStats struct {
	TotalSessions     int `json:"totalSessions"`
	PendingRequests   int `json:"pendingRequests"`
	CompletedSessions int `json:"completedSessions"`
}

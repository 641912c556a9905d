package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/google/uuid"
)

// SessionLedger is the persistence of sessions, see repository.SessionRepository.
type SessionLedger interface {
	Create(ctx context.Context, session *model.Session) error
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, t model.Transition) error
	GetDetailed(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListRequestsForMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error)
	ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error)
	ListUpcomingForMentee(ctx context.Context, menteeID uuid.UUID, now time.Time) ([]*model.Session, error)
	ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]*model.Session, error)
	StatsForMentor(ctx context.Context, mentorID uuid.UUID) (*model.MentorStats, error)
}

// UserDirectory is the persistence of users, see repository.UserRepository.
type UserDirectory interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	PromoteToMentor(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error)
	UpdateMentorProfile(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error)
	AdjustPendingRequests(ctx context.Context, mentorID uuid.UUID, delta int) error
	ListMentors(ctx context.Context, withBio bool) ([]*model.User, error)
	ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error)
}

// Transactor runs fn so that every ledger and directory write inside it
// commits together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

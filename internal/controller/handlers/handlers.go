package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	"github.com/Freeeeeet/mentorship_api/internal/controller/middleware"
	"github.com/Freeeeeet/mentorship_api/internal/controller/respond"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Accounts is implemented by service.UserService.
type Accounts interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Profile(ctx context.Context, callerID uuid.UUID) (*model.User, error)
	BecomeMentor(ctx context.Context, callerID uuid.UUID, in service.ProfileInput) (*model.User, error)
	UpdateMentorProfile(ctx context.Context, callerID uuid.UUID, in service.ProfileInput) (*model.User, error)
	UpdateProfile(ctx context.Context, callerID uuid.UUID, in *service.ProfileInput) (*model.User, error)
	ListMentors(ctx context.Context) ([]*model.PartyInfo, error)
	GetMentor(ctx context.Context, mentorID uuid.UUID) (*model.PartyInfo, error)
}

// Bookings is implemented by service.BookingService.
type Bookings interface {
	RequestSession(ctx context.Context, callerID, mentorID uuid.UUID, scheduledDate time.Time) (*model.Session, error)
	UpdateStatus(ctx context.Context, callerID, sessionID uuid.UUID, status string, meetingLink *string) (*model.Session, error)
	ListRequestsForMentor(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error)
	ListUpcomingForMentee(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error)
	ListByMentor(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error)
	ListByMentee(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error)
	GetStats(ctx context.Context, callerID uuid.UUID) (*model.MentorStats, error)
	ListMentors(ctx context.Context) ([]*model.PartyInfo, error)
}

// Pinger reports database liveness, see pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	accounts Accounts
	bookings Bookings
	db       Pinger
	logger   *zap.Logger
}

func NewHandlers(accounts Accounts, bookings Bookings, db Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		accounts: accounts,
		bookings: bookings,
		db:       db,
		logger:   logger,
	}
}

// callerID достаёт id из контекста; без него хендлер не должен был вызваться
func (h *Handlers) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthenticated("No token provided"))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst, reporting a validation error on bad input.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, r, apperr.Wrap(apperr.KindValidation, "Invalid request body", err))
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Validation("Invalid " + field)
	}
	return id, nil
}

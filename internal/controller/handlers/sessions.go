package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/controller/respond"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type requestSessionRequest struct {
	MentorID      string    `json:"mentorId"`
	ScheduledDate time.Time `json:"scheduledDate"`
}

type requestSessionResponse struct {
	Message string         `json:"message"`
	Session *model.Session `json:"session"`
}

type updateStatusRequest struct {
	Status   string  `json:"status"`
	ZoomLink *string `json:"zoomLink"`
}

// RequestSession handles POST /api/sessions/request
func (h *Handlers) RequestSession(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req requestSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	mentorID, err := parseID(req.MentorID, "mentor ID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	session, err := h.bookings.RequestSession(r.Context(), callerID, mentorID, req.ScheduledDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, requestSessionResponse{
		Message: "Session request sent successfully",
		Session: session,
	})
}

// UpdateStatus handles PATCH /api/sessions/{sessionId}
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	sessionID, err := parseID(chi.URLParam(r, "sessionId"), "session ID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.bookings.UpdateStatus(r.Context(), callerID, sessionID, req.Status, req.ZoomLink)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, session)
}

// ListRequests handles GET /api/sessions/requests
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, h.bookings.ListRequestsForMentor)
}

// ListUpcoming handles GET /api/sessions/upcoming
func (h *Handlers) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, h.bookings.ListUpcomingForMentee)
}

// ListMentorSessions handles GET /api/sessions/mentor-sessions
func (h *Handlers) ListMentorSessions(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, h.bookings.ListByMentor)
}

// ListMenteeSessions handles GET /api/sessions/mentee-sessions
func (h *Handlers) ListMenteeSessions(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, h.bookings.ListByMentee)
}

// Stats handles GET /api/sessions/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	stats, err := h.bookings.GetStats(r.Context(), callerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, stats)
}

// ListMentors handles GET /api/sessions/mentors
func (h *Handlers) ListMentors(w http.ResponseWriter, r *http.Request) {
	mentors, err := h.bookings.ListMentors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, mentors)
}

func (h *Handlers) listSessions(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, callerID uuid.UUID) ([]*model.Session, error),
) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	sessions, err := list(r.Context(), callerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, sessions)
}

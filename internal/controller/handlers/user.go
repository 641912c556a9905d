package handlers

import (
	"net/http"

	"github.com/Freeeeeet/mentorship_api/internal/controller/respond"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/service"
	"github.com/go-chi/chi/v5"
)

type profileRequest struct {
	Bio        string         `json:"bio"`
	Expertise  []string       `json:"expertise"`
	Experience string         `json:"experience"`
	Projects   string         `json:"projects"`
	Socials    *model.Socials `json:"socials"`
}

// profileEnvelope is the {"mentorProfile": {...}} body of become-mentor and
// PUT /profile.
type profileEnvelope struct {
	MentorProfile *profileRequest `json:"mentorProfile"`
}

func (p profileRequest) input() service.ProfileInput {
	return service.ProfileInput{
		Bio:        p.Bio,
		Expertise:  p.Expertise,
		Experience: p.Experience,
		Projects:   p.Projects,
		Socials:    p.Socials,
	}
}

// Profile handles GET /api/user/profile
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.Profile(r.Context(), callerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/user/profile
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req profileEnvelope
	if !h.decode(w, r, &req) {
		return
	}
	var in *service.ProfileInput
	if req.MentorProfile != nil {
		v := req.MentorProfile.input()
		in = &v
	}

	user, err := h.accounts.UpdateProfile(r.Context(), callerID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, user)
}

// BecomeMentor handles PUT /api/user/become-mentor
func (h *Handlers) BecomeMentor(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req profileEnvelope
	if !h.decode(w, r, &req) {
		return
	}
	var in service.ProfileInput
	if req.MentorProfile != nil {
		in = req.MentorProfile.input()
	}

	user, err := h.accounts.BecomeMentor(r.Context(), callerID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, user)
}

// UpdateMentorProfile handles PUT /api/user/mentor-profile
func (h *Handlers) UpdateMentorProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.accounts.UpdateMentorProfile(r.Context(), callerID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, user)
}

// ListAllMentors handles GET /api/user/mentors. В отличие от
// /api/sessions/mentors сюда попадают и менторы без bio.
func (h *Handlers) ListAllMentors(w http.ResponseWriter, r *http.Request) {
	mentors, err := h.accounts.ListMentors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, mentors)
}

// GetMentor handles GET /api/user/mentors/{mentorId}
func (h *Handlers) GetMentor(w http.ResponseWriter, r *http.Request) {
	mentorID, err := parseID(chi.URLParam(r, "mentorId"), "mentor ID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	mentor, err := h.accounts.GetMentor(r.Context(), mentorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, mentor)
}

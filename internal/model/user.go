package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleMentee
}

type Socials struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Website  string `json:"website,omitempty"`
}

// MentorProfile is only present on users with RoleMentor.
type MentorProfile struct {
	Bio             string   `json:"bio"`
	Expertise       []string `json:"expertise"`
	Experience      string   `json:"experience"`
	Projects        string   `json:"projects"`
	Socials         Socials  `json:"socials"`
	PendingRequests int      `json:"pendingRequests"` // Ведётся только BookingService
}

type User struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"-"`
	Role          Role           `json:"role"`
	MentorProfile *MentorProfile `json:"mentorProfile,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// IsMentor checks if user is a mentor
func (u *User) IsMentor() bool {
	return u.Role == RoleMentor
}

// IsMentee checks if user is a mentee
func (u *User) IsMentee() bool {
	return u.Role == RoleMentee
}

// PartyInfo is the public slice of a user embedded into session responses.
type PartyInfo struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	MentorProfile *MentorProfile `json:"mentorProfile,omitempty"`
}

// Public returns the fields of u that other users may see.
func (u *User) Public() *PartyInfo {
	return &PartyInfo{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		MentorProfile: u.MentorProfile,
	}
}

// CounterDrift is a mentor whose stored pendingRequests differs from the
// number of pending sessions actually in the ledger.
type CounterDrift struct {
	MentorID uuid.UUID
	Counter  int
	Pending  int
}

package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/repository"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72 // предел bcrypt, в байтах
)

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// ProfileInput carries mentor profile fields. Empty fields are left unchanged
// on update.
type ProfileInput struct {
	Bio        string
	Expertise  []string
	Experience string
	Projects   string
	Socials    *model.Socials
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// UserService handles accounts: signup, login and the mentor profile.
type UserService struct {
	users    UserDirectory
	tokens   *TokenService
	policy   *bluemonday.Policy
	hashCost int
	logger   *zap.Logger
}

func NewUserService(users UserDirectory, tokens *TokenService, logger *zap.Logger) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		policy:   bluemonday.StrictPolicy(),
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
	}
}

// Signup регистрирует пользователя и сразу выдаёт токен
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Name is required")
	}
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("Please enter a valid email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}
	if len(in.Password) > maxPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at most %d bytes long", maxPasswordLength))
	}
	role := model.Role(in.Role)
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         s.clean(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if role == model.RoleMentor {
		user.MentorProfile = &model.MentorProfile{Expertise: []string{}}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperr.Wrap(apperr.KindConflict, "User already exists", err)
		}
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}

	s.logger.Info("New user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)

	return s.authResult(user)
}

// Login проверяет пароль и выдаёт токен
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get user by email: %w", err))
	}
	if user == nil {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	return s.authResult(user)
}

// Profile returns the caller's own record.
func (s *UserService) Profile(ctx context.Context, callerID uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return user, nil
}

// BecomeMentor promotes a mentee to mentor. It can happen only once.
func (s *UserService) BecomeMentor(ctx context.Context, callerID uuid.UUID, in ProfileInput) (*model.User, error) {
	profile := s.mergeProfile(&model.MentorProfile{Expertise: []string{}}, in)

	user, err := s.users.PromoteToMentor(ctx, callerID, profile)
	if err != nil {
		if errors.Is(err, repository.ErrNotMentee) {
			existing, getErr := s.users.GetByID(ctx, callerID)
			if getErr == nil && existing == nil {
				return nil, apperr.NotFound("User not found")
			}
			return nil, apperr.Conflict("User is already a mentor")
		}
		return nil, apperr.Internal(fmt.Errorf("promote to mentor: %w", err))
	}

	s.logger.Info("User became mentor", zap.String("user_id", callerID.String()))

	return user, nil
}

// UpdateMentorProfile меняет поля профиля ментора
func (s *UserService) UpdateMentorProfile(ctx context.Context, callerID uuid.UUID, in ProfileInput) (*model.User, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	if user == nil || !user.IsMentor() {
		return nil, apperr.Forbidden("Only mentors can update their profile")
	}

	current := *user.MentorProfile
	updated, err := s.users.UpdateMentorProfile(ctx, callerID, s.mergeProfile(&current, in))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Forbidden("Only mentors can update their profile")
		}
		return nil, apperr.Internal(fmt.Errorf("update mentor profile: %w", err))
	}

	return updated, nil
}

// UpdateProfile merges mentorProfile into the caller's record. Only mentors
// carry a profile; for anyone else the record is returned as is.
func (s *UserService) UpdateProfile(ctx context.Context, callerID uuid.UUID, in *ProfileInput) (*model.User, error) {
	user, err := s.Profile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if in == nil || !user.IsMentor() {
		return user, nil
	}

	current := *user.MentorProfile
	updated, err := s.users.UpdateMentorProfile(ctx, callerID, s.mergeProfile(&current, *in))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(fmt.Errorf("update profile: %w", err))
	}

	s.logger.Info("Profile updated", zap.String("user_id", callerID.String()))

	return updated, nil
}

// ListMentors возвращает всех менторов, включая тех, кто ещё не заполнил профиль
func (s *UserService) ListMentors(ctx context.Context) ([]*model.PartyInfo, error) {
	mentors, err := s.users.ListMentors(ctx, false)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list mentors: %w", err))
	}

	result := make([]*model.PartyInfo, 0, len(mentors))
	for _, m := range mentors {
		result = append(result, m.Public())
	}
	return result, nil
}

// GetMentor returns the public view of one mentor.
func (s *UserService) GetMentor(ctx context.Context, mentorID uuid.UUID) (*model.PartyInfo, error) {
	user, err := s.users.GetByID(ctx, mentorID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get mentor: %w", err))
	}
	if user == nil || !user.IsMentor() {
		return nil, apperr.NotFound("Mentor not found")
	}
	return user.Public(), nil
}

func (s *UserService) authResult(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// mergeProfile overlays the non-empty fields of in onto base. Free text is
// stripped of markup; socials are links and are merged key by key as given.
func (s *UserService) mergeProfile(base *model.MentorProfile, in ProfileInput) *model.MentorProfile {
	p := *base

	if v := s.clean(in.Bio); v != "" {
		p.Bio = v
	}
	if v := s.clean(in.Experience); v != "" {
		p.Experience = v
	}
	if v := s.clean(in.Projects); v != "" {
		p.Projects = v
	}
	if len(in.Expertise) > 0 {
		expertise := make([]string, 0, len(in.Expertise))
		for _, e := range in.Expertise {
			if v := s.clean(e); v != "" {
				expertise = append(expertise, v)
			}
		}
		p.Expertise = expertise
	}
	if in.Socials != nil {
		if v := strings.TrimSpace(in.Socials.LinkedIn); v != "" {
			p.Socials.LinkedIn = v
		}
		if v := strings.TrimSpace(in.Socials.Twitter); v != "" {
			p.Socials.Twitter = v
		}
		if v := strings.TrimSpace(in.Socials.GitHub); v != "" {
			p.Socials.GitHub = v
		}
		if v := strings.TrimSpace(in.Socials.Website); v != "" {
			p.Socials.Website = v
		}
	}
	if p.Expertise == nil {
		p.Expertise = []string{}
	}

	return &p
}

// clean вырезает разметку. StrictPolicy экранирует сущности, а храним мы
// обычный текст.
func (s *UserService) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}

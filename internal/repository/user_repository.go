package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, bio, expertise, experience, projects, socials, pending_requests, created_at, updated_at`

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, bio, expertise, experience, projects, socials)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	profile := profileOrEmpty(user)

	err := r.QueryRow(
		ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		profile.Bio,
		profile.Expertise,
		profile.Experience,
		profile.Projects,
		profile.Socials,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err, constraintUsersEmail) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// GetByEmail получает пользователя по email (регистр учитывается)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.QueryRow(ctx, query, email))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// PromoteToMentor switches a mentee to the mentor role and stores the profile.
// It only matches mentees, so a second promotion returns ErrNotMentee.
func (r *UserRepository) PromoteToMentor(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error) {
	query := `
		UPDATE users
		SET role = 'mentor', bio = $2, expertise = $3, experience = $4, projects = $5, socials = $6,
		    pending_requests = 0, updated_at = NOW()
		WHERE id = $1 AND role = 'mentee'
		RETURNING ` + userColumns

	user, err := scanUser(r.QueryRow(ctx, query,
		id,
		profile.Bio,
		nonNil(profile.Expertise),
		profile.Experience,
		profile.Projects,
		profile.Socials,
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, ErrNotMentee
		}
		return nil, fmt.Errorf("promote to mentor: %w", err)
	}

	return user, nil
}

// UpdateMentorProfile overwrites the editable profile fields. pending_requests is not touched.
func (r *UserRepository) UpdateMentorProfile(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error) {
	query := `
		UPDATE users
		SET bio = $2, expertise = $3, experience = $4, projects = $5, socials = $6, updated_at = NOW()
		WHERE id = $1 AND role = 'mentor'
		RETURNING ` + userColumns

	user, err := scanUser(r.QueryRow(ctx, query,
		id,
		profile.Bio,
		nonNil(profile.Expertise),
		profile.Experience,
		profile.Projects,
		profile.Socials,
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update mentor profile: %w", err)
	}

	return user, nil
}

// AdjustPendingRequests сдвигает счётчик pending-заявок ментора на delta.
// Счётчик не опускается ниже нуля.
func (r *UserRepository) AdjustPendingRequests(ctx context.Context, mentorID uuid.UUID, delta int) error {
	query := `
		UPDATE users
		SET pending_requests = GREATEST(pending_requests + $2, 0), updated_at = NOW()
		WHERE id = $1 AND role = 'mentor'
	`

	affected, err := r.ExecAffected(ctx, query, mentorID, delta)
	if err != nil {
		return fmt.Errorf("adjust pending requests: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListMentors получает менторов, новые первыми. withBio оставляет только
// тех, кто заполнил bio.
func (r *UserRepository) ListMentors(ctx context.Context, withBio bool) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = 'mentor' AND ($1 = false OR bio <> '')
		ORDER BY created_at DESC
	`

	rows, err := r.Query(ctx, query, withBio)
	if err != nil {
		return nil, fmt.Errorf("list mentors: %w", err)
	}
	defer rows.Close()

	var mentors []*model.User
	for rows.Next() {
		mentor, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mentor: %w", err)
		}
		mentors = append(mentors, mentor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentors: %w", err)
	}

	return mentors, nil
}

// ListCounterDrift находит менторов, у которых счётчик pending_requests
// расходится с числом pending-сессий
func (r *UserRepository) ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error) {
	query := `
		SELECT u.id, u.pending_requests, COUNT(s.id) FILTER (WHERE s.status = 'pending')
		FROM users u
		LEFT JOIN sessions s ON s.mentor_id = u.id
		WHERE u.role = 'mentor'
		GROUP BY u.id, u.pending_requests
		HAVING u.pending_requests <> COUNT(s.id) FILTER (WHERE s.status = 'pending')
		ORDER BY u.id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list counter drift: %w", err)
	}
	defer rows.Close()

	var drift []model.CounterDrift
	for rows.Next() {
		var d model.CounterDrift
		if err := rows.Scan(&d.MentorID, &d.Counter, &d.Pending); err != nil {
			return nil, fmt.Errorf("scan counter drift: %w", err)
		}
		drift = append(drift, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counter drift: %w", err)
	}

	return drift, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user    model.User
		profile model.MentorProfile
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&profile.Bio,
		&profile.Expertise,
		&profile.Experience,
		&profile.Projects,
		&profile.Socials,
		&profile.PendingRequests,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if user.IsMentor() {
		profile.Expertise = nonNil(profile.Expertise)
		user.MentorProfile = &profile
	}

	return &user, nil
}

func profileOrEmpty(user *model.User) model.MentorProfile {
	if user.MentorProfile == nil {
		return model.MentorProfile{Expertise: []string{}}
	}
	p := *user.MentorProfile
	p.Expertise = nonNil(p.Expertise)
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `s.id, s.mentor_id, s.mentee_id, s.scheduled_date, s.status, s.meeting_link, s.created_at, s.updated_at`

// Колонки стороны сессии, попадающие в ответ
const (
	partyContactColumns = `u.id, u.name, u.email`
	partyProfileColumns = `u.id, u.name, u.email, u.role, u.bio, u.expertise, u.experience, u.projects, u.socials, u.pending_requests`
)

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

// Create inserts a pending session. A second pending row for the same
// (mentor, mentee) pair is refused by the partial unique index and reported
// as ErrDuplicatePending; the check and the insert are one statement.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, mentor_id, mentee_id, scheduled_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = model.SessionStatusPending
	}

	err := r.QueryRow(
		ctx, query,
		session.ID,
		session.MentorID,
		session.MenteeID,
		session.ScheduledDate,
		session.Status,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		switch {
		case base.IsUniqueViolation(err, constraintOnePendingPair):
			return ErrDuplicatePending
		case base.IsForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByIDForUpdate locks the session row until the surrounding transaction ends.
// Outside Transactor.WithinTx the lock is released immediately.
func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.id = $1 FOR UPDATE`

	session, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session for update: %w", err)
	}

	return session, nil
}

// ApplyTransition writes status and meeting link only if the row still has
// t.From; otherwise it returns ErrStaleStatus.
func (r *SessionRepository) ApplyTransition(ctx context.Context, id uuid.UUID, t model.Transition) error {
	query := `
		UPDATE sessions
		SET status = $2, meeting_link = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	affected, err := r.ExecAffected(ctx, query, id, t.To, t.MeetingLink, t.From)
	if err != nil {
		return fmt.Errorf("apply session transition: %w", err)
	}

	if affected == 0 {
		return ErrStaleStatus
	}

	return nil
}

// GetDetailed получает сессию вместе с публичными данными обеих сторон
func (r *SessionRepository) GetDetailed(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `,
		       mentor.id, mentor.name, mentor.email,
		       mentee.id, mentee.name, mentee.email
		FROM sessions s
		JOIN users mentor ON mentor.id = s.mentor_id
		JOIN users mentee ON mentee.id = s.mentee_id
		WHERE s.id = $1
	`

	var (
		session model.Session
		mentor  model.PartyInfo
		mentee  model.PartyInfo
	)
	err := r.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.MentorID,
		&session.MenteeID,
		&session.ScheduledDate,
		&session.Status,
		&session.MeetingLink,
		&session.CreatedAt,
		&session.UpdatedAt,
		&mentor.ID,
		&mentor.Name,
		&mentor.Email,
		&mentee.ID,
		&mentee.Name,
		&mentee.Email,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get detailed session: %w", err)
	}

	session.Mentor = &mentor
	session.Mentee = &mentee
	return &session, nil
}

// ListRequestsForMentor получает все заявки ментора, новые первыми
func (r *SessionRepository) ListRequestsForMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + partyContactColumns + `
		FROM sessions s
		JOIN users u ON u.id = s.mentee_id
		WHERE s.mentor_id = $1
		ORDER BY s.created_at DESC
	`

	return r.listWithMentee(ctx, query, mentorID)
}

// ListByMentor получает историю сессий ментора по убыванию даты встречи
func (r *SessionRepository) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + partyContactColumns + `
		FROM sessions s
		JOIN users u ON u.id = s.mentee_id
		WHERE s.mentor_id = $1
		ORDER BY s.scheduled_date DESC
	`

	return r.listWithMentee(ctx, query, mentorID)
}

// ListUpcomingForMentee получает будущие сессии менти по возрастанию даты
func (r *SessionRepository) ListUpcomingForMentee(ctx context.Context, menteeID uuid.UUID, now time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + partyProfileColumns + `
		FROM sessions s
		JOIN users u ON u.id = s.mentor_id
		WHERE s.mentee_id = $1 AND s.scheduled_date >= $2
		ORDER BY s.scheduled_date ASC
	`

	return r.listWithMentor(ctx, query, menteeID, now)
}

// ListByMentee получает историю сессий менти по убыванию даты встречи
func (r *SessionRepository) ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + partyProfileColumns + `
		FROM sessions s
		JOIN users u ON u.id = s.mentor_id
		WHERE s.mentee_id = $1
		ORDER BY s.scheduled_date DESC
	`

	return r.listWithMentor(ctx, query, menteeID)
}

// StatsForMentor counts the mentor's sessions straight from the table.
func (r *SessionRepository) StatsForMentor(ctx context.Context, mentorID uuid.UUID) (*model.MentorStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'completed')
		FROM sessions
		WHERE mentor_id = $1
	`

	var stats model.MentorStats
	err := r.QueryRow(ctx, query, mentorID).Scan(
		&stats.TotalSessions,
		&stats.PendingRequests,
		&stats.CompletedSessions,
	)
	if err != nil {
		return nil, fmt.Errorf("count mentor sessions: %w", err)
	}

	return &stats, nil
}

func (r *SessionRepository) listWithMentee(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.Session{}
	for rows.Next() {
		var (
			session model.Session
			mentee  model.PartyInfo
		)
		err := rows.Scan(
			&session.ID,
			&session.MentorID,
			&session.MenteeID,
			&session.ScheduledDate,
			&session.Status,
			&session.MeetingLink,
			&session.CreatedAt,
			&session.UpdatedAt,
			&mentee.ID,
			&mentee.Name,
			&mentee.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.Mentee = &mentee
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) listWithMentor(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.Session{}
	for rows.Next() {
		var (
			session model.Session
			mentor  model.PartyInfo
			role    model.Role
			profile model.MentorProfile
		)
		err := rows.Scan(
			&session.ID,
			&session.MentorID,
			&session.MenteeID,
			&session.ScheduledDate,
			&session.Status,
			&session.MeetingLink,
			&session.CreatedAt,
			&session.UpdatedAt,
			&mentor.ID,
			&mentor.Name,
			&mentor.Email,
			&role,
			&profile.Bio,
			&profile.Expertise,
			&profile.Experience,
			&profile.Projects,
			&profile.Socials,
			&profile.PendingRequests,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if role == model.RoleMentor {
			profile.Expertise = nonNil(profile.Expertise)
			mentor.MentorProfile = &profile
		}
		session.Mentor = &mentor
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.MentorID,
		&session.MenteeID,
		&session.ScheduledDate,
		&session.Status,
		&session.MeetingLink,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/model"
	"github.com/Freeeeeet/mentorship_api/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// In-memory store
// =============================================================================

// memStore implements SessionLedger, UserDirectory and Transactor. Writes
// inside WithinTx are rolled back when fn fails, and Create refuses a second
// pending row for a pair the same way the partial unique index does.
type memStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users    map[uuid.UUID]model.User
	sessions map[uuid.UUID]model.Session
	seq      time.Time

	adjustErr error
	applyErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]model.User{},
		sessions: map[uuid.UUID]model.Session{},
		seq:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.seq = m.seq.Add(time.Second)
	return m.seq
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	users := make(map[uuid.UUID]model.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	sessions := make(map[uuid.UUID]model.Session, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	m.mu.RUnlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.users = users
		m.sessions = sessions
		m.mu.Unlock()
		return err
	}
	return nil
}

// --- UserDirectory ---

func (m *memStore) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = cloneUser(*user)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := cloneUser(u)
	return &c, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) PromoteToMentor(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.Role != model.RoleMentee {
		return nil, repository.ErrNotMentee
	}
	p := *profile
	p.PendingRequests = 0
	u.Role = model.RoleMentor
	u.MentorProfile = &p
	m.users[id] = u
	c := cloneUser(u)
	return &c, nil
}

func (m *memStore) UpdateMentorProfile(ctx context.Context, id uuid.UUID, profile *model.MentorProfile) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.Role != model.RoleMentor {
		return nil, repository.ErrNotFound
	}
	p := *profile
	p.PendingRequests = u.MentorProfile.PendingRequests
	u.MentorProfile = &p
	m.users[id] = u
	c := cloneUser(u)
	return &c, nil
}

func (m *memStore) AdjustPendingRequests(ctx context.Context, mentorID uuid.UUID, delta int) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[mentorID]
	if !ok || u.Role != model.RoleMentor {
		return repository.ErrNotFound
	}
	p := *u.MentorProfile
	p.PendingRequests += delta
	if p.PendingRequests < 0 {
		p.PendingRequests = 0
	}
	u.MentorProfile = &p
	m.users[mentorID] = u
	return nil
}

func (m *memStore) ListMentors(ctx context.Context, withBio bool) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.User
	for _, u := range m.users {
		if u.Role != model.RoleMentor {
			continue
		}
		if !withBio || (u.MentorProfile != nil && u.MentorProfile.Bio != "") {
			c := cloneUser(u)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := map[uuid.UUID]int{}
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusPending {
			pending[s.MentorID]++
		}
	}

	var drift []model.CounterDrift
	for id, u := range m.users {
		if u.Role != model.RoleMentor {
			continue
		}
		if u.MentorProfile.PendingRequests != pending[id] {
			drift = append(drift, model.CounterDrift{MentorID: id, Counter: u.MentorProfile.PendingRequests, Pending: pending[id]})
		}
	}
	return drift, nil
}

// --- SessionLedger ---

// sessionLedger adapts memStore to SessionLedger; Create clashes with UserDirectory.Create.
type sessionLedger struct{ *memStore }

func (l sessionLedger) Create(ctx context.Context, s *model.Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.Status == model.SessionStatusPending {
		for _, existing := range l.sessions {
			if existing.Status == model.SessionStatusPending &&
				existing.MentorID == s.MentorID && existing.MenteeID == s.MenteeID {
				return repository.ErrDuplicatePending
			}
		}
	}
	if _, ok := l.users[s.MentorID]; !ok {
		return repository.ErrNotFound
	}
	s.CreatedAt = l.tick()
	s.UpdatedAt = s.CreatedAt
	l.sessions[s.ID] = *s
	return nil
}

func (l sessionLedger) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (l sessionLedger) ApplyTransition(ctx context.Context, id uuid.UUID, t model.Transition) error {
	if l.applyErr != nil {
		return l.applyErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok || s.Status != t.From {
		return repository.ErrStaleStatus
	}
	s.Apply(t)
	s.UpdatedAt = l.tick()
	l.sessions[id] = s
	return nil
}

func (l sessionLedger) GetDetailed(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.sessions[id]
	if !ok {
		return nil, nil
	}
	mentor, mentee := l.users[s.MentorID], l.users[s.MenteeID]
	s.Mentor = &model.PartyInfo{ID: mentor.ID, Name: mentor.Name, Email: mentor.Email}
	s.Mentee = &model.PartyInfo{ID: mentee.ID, Name: mentee.Name, Email: mentee.Email}
	return &s, nil
}

func (l sessionLedger) filter(keep func(model.Session) bool, less func(a, b model.Session) bool) []*model.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []*model.Session{}
	for _, s := range l.sessions {
		if keep(s) {
			c := s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(*out[i], *out[j]) })
	return out
}

func (l sessionLedger) ListRequestsForMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error) {
	return l.filter(
		func(s model.Session) bool { return s.MentorID == mentorID },
		func(a, b model.Session) bool { return a.CreatedAt.After(b.CreatedAt) },
	), nil
}

func (l sessionLedger) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]*model.Session, error) {
	return l.filter(
		func(s model.Session) bool { return s.MentorID == mentorID },
		func(a, b model.Session) bool { return a.ScheduledDate.After(b.ScheduledDate) },
	), nil
}

func (l sessionLedger) ListUpcomingForMentee(ctx context.Context, menteeID uuid.UUID, now time.Time) ([]*model.Session, error) {
	return l.filter(
		func(s model.Session) bool { return s.MenteeID == menteeID && !s.ScheduledDate.Before(now) },
		func(a, b model.Session) bool { return a.ScheduledDate.Before(b.ScheduledDate) },
	), nil
}

func (l sessionLedger) ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]*model.Session, error) {
	return l.filter(
		func(s model.Session) bool { return s.MenteeID == menteeID },
		func(a, b model.Session) bool { return a.ScheduledDate.After(b.ScheduledDate) },
	), nil
}

func (l sessionLedger) StatsForMentor(ctx context.Context, mentorID uuid.UUID) (*model.MentorStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stats model.MentorStats
	for _, s := range l.sessions {
		if s.MentorID != mentorID {
			continue
		}
		stats.TotalSessions++
		switch s.Status {
		case model.SessionStatusPending:
			stats.PendingRequests++
		case model.SessionStatusCompleted:
			stats.CompletedSessions++
		}
	}
	return &stats, nil
}

// forceStatus simulates the out-of-scope process that completes sessions.
func (m *memStore) forceStatus(id uuid.UUID, status model.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[id]
	s.Status = status
	m.sessions[id] = s
}

func cloneUser(u model.User) model.User {
	if u.MentorProfile != nil {
		p := *u.MentorProfile
		p.Expertise = append([]string(nil), p.Expertise...)
		u.MentorProfile = &p
	}
	return u
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trendpulse/internal/models"
)

// Memory is an in-memory Store. It backs the test suites and local
// development without PostgreSQL, and enforces the same unique constraints
// the database schema does.
type Memory struct {
	mu                 sync.Mutex
	users              map[uuid.UUID]*models.User
	sessions           map[uuid.UUID]*models.Session
	resetTokens        map[uuid.UUID]*models.PasswordResetToken
	verificationTokens map[uuid.UUID]*models.EmailVerificationToken
	snapshots          []*models.TrendSnapshot
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:              make(map[uuid.UUID]*models.User),
		sessions:           make(map[uuid.UUID]*models.Session),
		resetTokens:        make(map[uuid.UUID]*models.PasswordResetToken),
		verificationTokens: make(map[uuid.UUID]*models.EmailVerificationToken),
	}
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) CreateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenFingerprint == session.TokenFingerprint ||
			s.RefreshTokenFingerprint == session.RefreshTokenFingerprint {
			return ErrDuplicate
		}
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *Memory) SessionsForUser(_ context.Context, userID uuid.UUID) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *Memory) DeleteSessionByFingerprint(_ context.Context, userID uuid.UUID, refreshFingerprint string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID && s.RefreshTokenFingerprint == refreshFingerprint {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteSessionsForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateResetToken(_ context.Context, token *models.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.resetTokens {
		if t.Token == token.Token {
			return ErrDuplicate
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	cp := *token
	m.resetTokens[token.ID] = &cp
	return nil
}

func (m *Memory) UnusedResetToken(_ context.Context, secret string) (*models.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.resetTokens {
		if t.Token == secret && t.UsedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ConsumeResetToken(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resetTokens[id]
	if !ok || t.UsedAt != nil {
		return ErrNotFound
	}
	t.UsedAt = &usedAt
	return nil
}

func (m *Memory) CreateVerificationToken(_ context.Context, token *models.EmailVerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verificationTokens {
		if t.Token == token.Token {
			return ErrDuplicate
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	cp := *token
	m.verificationTokens[token.ID] = &cp
	return nil
}

func (m *Memory) UnusedVerificationToken(_ context.Context, secret string) (*models.EmailVerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verificationTokens {
		if t.Token == secret && t.VerifiedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ConsumeVerificationToken(_ context.Context, id uuid.UUID, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.verificationTokens[id]
	if !ok || t.VerifiedAt != nil {
		return ErrNotFound
	}
	t.VerifiedAt = &verifiedAt
	return nil
}

func (m *Memory) FreshSnapshot(_ context.Context, provider, requestKey string, notBefore time.Time) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		snap := m.snapshots[i]
		if snap.Provider == provider && snap.RequestKey == requestKey && !snap.FetchedAt.Before(notBefore) {
			return []byte(snap.Payload), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveSnapshot(_ context.Context, snapshot *models.TrendSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	cp := *snapshot
	m.snapshots = append(m.snapshots, &cp)
	return nil
}

var _ Store = (*Memory)(nil)

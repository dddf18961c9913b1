package auth

import (
	"context"
	"sync"
	"time"
)

var _ IdentityStore = (*MemStore)(nil)

// MemStore keeps identities in process memory. Used when no DSN is
// configured (development) and throughout the service tests. All conditional
// operations run under one mutex, which gives them the same atomicity the
// SQL store gets from single-statement updates.
type MemStore struct {
	mu      sync.Mutex
	byID    map[string]*Identity
	byEmail map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]string),
	}
}

func (s *MemStore) Create(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[id.Email]; ok {
		return ErrAlreadyExists
	}
	copied := *id
	s.byID[id.ID] = &copied
	s.byEmail[id.Email] = id.ID
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *MemStore) List(ctx context.Context) ([]*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Identity, 0, len(s.byID))
	for _, rec := range s.byID {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastLoginAt = &at
	return nil
}

func (s *MemStore) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.ResetTokenHash = digest
	rec.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (s *MemStore) ConsumeResetToken(ctx context.Context, digest, newPasswordHash string, now time.Time) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if rec.ResetTokenHash == "" || rec.ResetTokenHash != digest || !rec.Active {
			continue
		}
		if rec.ResetTokenExpiresAt == nil || now.After(*rec.ResetTokenExpiresAt) {
			return nil, ErrResetExpired
		}
		rec.PasswordHash = newPasswordHash
		rec.ResetTokenHash = ""
		rec.ResetTokenExpiresAt = nil
		rec.UpdatedAt = now
		copied := *rec
		return &copied, nil
	}
	return nil, ErrResetNotFound
}

func (s *MemStore) SetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if rec, ok := s.byID[id]; ok {
			rec.Active = active
			rec.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

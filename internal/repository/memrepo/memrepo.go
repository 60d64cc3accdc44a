// Package memrepo holds mutex-guarded in-memory implementations of the
// repository store interfaces. They back unit and end-to-end tests and keep
// the same conditional-update semantics as the Postgres repositories.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"site-inspector/internal/model"
	"site-inspector/internal/repository"
)

var (
	_ repository.TokenStore      = (*Tokens)(nil)
	_ repository.UserStore       = (*Users)(nil)
	_ repository.SiteStore       = (*Sites)(nil)
	_ repository.VisitStore      = (*Visits)(nil)
	_ repository.ResetTokenStore = (*ResetTokens)(nil)
	_ repository.AuditStore      = (*Audit)(nil)
)

// Failing lets a test force every call on a store to fail.
type Failing struct {
	mu  sync.Mutex
	err error
}

func (f *Failing) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Failing) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

type Tokens struct {
	Failing
	mu     sync.Mutex
	byHash map[string]model.RefreshToken
}

func NewTokens() *Tokens {
	return &Tokens{byHash: make(map[string]model.RefreshToken)}
}

func (s *Tokens) Create(_ context.Context, t model.RefreshToken) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[t.TokenHash] = t
	return nil
}

func (s *Tokens) FindByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	if err := s.failure(); err != nil {
		return model.RefreshToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[tokenHash]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (s *Tokens) RevokeActive(_ context.Context, tokenHash string, now time.Time, actor string) (model.RefreshToken, error) {
	if err := s.failure(); err != nil {
		return model.RefreshToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok || !t.Usable(now) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}

	revokedAt := now
	t.IsRevoked = true
	t.RevokedAt = &revokedAt
	t.RevokedBy = actor
	s.byHash[tokenHash] = t
	return t, nil
}

func (s *Tokens) RevokeAllForUser(_ context.Context, userID string, now time.Time, actor string) (int64, error) {
	if err := s.failure(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.byHash {
		if t.UserID != userID || t.IsRevoked {
			continue
		}
		revokedAt := now
		t.IsRevoked = true
		t.RevokedAt = &revokedAt
		t.RevokedBy = actor
		s.byHash[hash] = t
		n++
	}
	return n, nil
}

func (s *Tokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if err := s.failure(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.byHash {
		if !t.ExpiresAt.After(now) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored row.
func (s *Tokens) All() []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RefreshToken, 0, len(s.byHash))
	for _, t := range s.byHash {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type Users struct {
	Failing
	mu   sync.Mutex
	byID map[string]model.User
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]model.User)}
}

func (s *Users) FindByID(_ context.Context, id string) (model.User, error) {
	if err := s.failure(); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (model.User, error) {
	if err := s.failure(); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err == model.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	if err := s.failure(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Users) Create(_ context.Context, u model.User) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return model.ErrUserAlreadyExists
		}
	}
	s.byID[u.ID] = u
	return nil
}

func (s *Users) UpdatePassword(_ context.Context, userID string, passwordHash string, now time.Time) error {
	return s.update(userID, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.UpdatedAt = now
	})
}

func (s *Users) IncrementFailedAttempts(_ context.Context, userID string, now time.Time) (int, error) {
	var attempts int
	err := s.update(userID, func(u *model.User) {
		u.FailedLoginAttempts++
		u.UpdatedAt = now
		attempts = u.FailedLoginAttempts
	})
	return attempts, err
}

func (s *Users) LockAccount(_ context.Context, userID string, until time.Time, now time.Time) error {
	return s.update(userID, func(u *model.User) {
		u.LockedUntil = &until
		u.UpdatedAt = now
	})
}

func (s *Users) ResetFailedAttempts(_ context.Context, userID string, now time.Time) error {
	return s.update(userID, func(u *model.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.UpdatedAt = now
	})
}

func (s *Users) SetActive(_ context.Context, userID string, active bool, now time.Time) error {
	return s.update(userID, func(u *model.User) {
		u.IsActive = active
		u.UpdatedAt = now
	})
}

func (s *Users) CountActiveAdmins(_ context.Context) (int, error) {
	if err := s.failure(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.byID {
		if u.Role == model.RoleAdmin && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Users) update(userID string, fn func(u *model.User)) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(&u)
	s.byID[userID] = u
	return nil
}

type Sites struct {
	Failing
	mu   sync.Mutex
	byID map[string]model.Site
}

func NewSites() *Sites {
	return &Sites{byID: make(map[string]model.Site)}
}

func (s *Sites) GetByID(_ context.Context, id string) (model.Site, error) {
	if err := s.failure(); err != nil {
		return model.Site{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.byID[id]
	if !ok {
		return model.Site{}, model.ErrSiteNotFound
	}
	return site, nil
}

func (s *Sites) Create(_ context.Context, site model.Site) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[site.ID] = site
	return nil
}

type Visits struct {
	Failing
	mu   sync.Mutex
	byID map[string]model.Visit
}

func NewVisits() *Visits {
	return &Visits{byID: make(map[string]model.Visit)}
}

func (s *Visits) GetByID(_ context.Context, id string) (model.Visit, error) {
	if err := s.failure(); err != nil {
		return model.Visit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return model.Visit{}, model.ErrVisitNotFound
	}
	return v, nil
}

func (s *Visits) Create(_ context.Context, v model.Visit) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[v.ID] = v
	return nil
}

func (s *Visits) UpdateNotes(_ context.Context, id string, notes string, now time.Time) (model.Visit, error) {
	if err := s.failure(); err != nil {
		return model.Visit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return model.Visit{}, model.ErrVisitNotFound
	}
	if v.Status != model.VisitPending {
		return model.Visit{}, model.ErrInvalidTransition
	}
	v.Notes = notes
	v.UpdatedAt = now
	s.byID[id] = v
	return v, nil
}

func (s *Visits) UpdateStatus(_ context.Context, c model.StatusChange) (model.Visit, error) {
	if err := s.failure(); err != nil {
		return model.Visit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[c.VisitID]
	if !ok {
		return model.Visit{}, model.ErrVisitNotFound
	}
	if v.Status != c.From {
		return model.Visit{}, model.ErrInvalidTransition
	}
	at := c.At
	v.Status = c.To
	v.ReviewedBy = c.ReviewerID
	v.ReviewedAt = &at
	v.ReviewNote = c.Note
	v.UpdatedAt = c.At
	s.byID[c.VisitID] = v
	return v, nil
}

func (s *Visits) ExistsForEngineerAtSite(_ context.Context, engineerID string, siteID string) (bool, error) {
	if err := s.failure(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.byID {
		if v.EngineerID == engineerID && v.SiteID == siteID {
			return true, nil
		}
	}
	return false, nil
}

type resetEntry struct {
	userID    string
	expiresAt time.Time
}

// ResetTokens expires entries against Now, which tests may replace.
type ResetTokens struct {
	Failing
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]resetEntry
}

func NewResetTokens() *ResetTokens {
	return &ResetTokens{
		Now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]resetEntry),
	}
}

func (s *ResetTokens) Save(_ context.Context, tokenHash string, userID string, ttl time.Duration) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = resetEntry{userID: userID, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *ResetTokens) Consume(_ context.Context, tokenHash string) (string, error) {
	if err := s.failure(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[tokenHash]
	delete(s.entries, tokenHash)
	if !ok || !e.expiresAt.After(s.Now()) {
		return "", model.ErrTokenNotFound
	}
	return e.userID, nil
}

func (s *ResetTokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type Audit struct {
	Failing
	mu      sync.Mutex
	entries []model.AuditEntry
}

func NewAudit() *Audit {
	return &Audit{}
}

func (s *Audit) Log(_ context.Context, entry model.AuditEntry) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Query filters on action, actor and status; newest entries come first.
func (s *Audit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if err := s.failure(); err != nil {
		return nil, model.Meta{}, err
	}
	query = repository.NormalizeAuditQuery(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.AuditEntry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.ActorID != "" && e.Actor.UserID != query.ActorID {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		matched = append(matched, e)
	}

	meta := repository.PageMeta(query.Page, query.Limit, len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return []model.AuditEntry{}, meta, nil
	}
	end := min(start+query.Limit, len(matched))
	return matched[start:end], meta, nil
}

func (s *Audit) Entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}

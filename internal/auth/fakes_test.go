package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/book-garden-api/internal/model"
)

// In-memory store fakes.  They implement the same sentinel contract as the
// MySQL repositories so the service under test cannot tell the difference.

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[uint64]*model.User)}
}

func (s *fakeUserStore) add(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	}
	cp := u
	s.users[cp.ID] = &cp
	return &cp
}

func (s *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return model.User{}, ErrNotFound
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *fakeUserStore) GetBySocial(_ context.Context, socialID, socialType string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.SocialID == socialID && u.SocialType == socialType && socialID != "" {
			return *u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *fakeUserStore) UpdateFCMToken(_ context.Context, id uint64, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if token == nil {
		u.FCMToken.Valid, u.FCMToken.String = false, ""
	} else {
		u.FCMToken.Valid, u.FCMToken.String = true, *token
	}
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uint64, nickname, profileImage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Nickname, u.ProfileImage = nickname, profileImage
	return nil
}

func (s *fakeUserStore) SetResetCode(_ context.Context, id uint64, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetCode.Valid, u.ResetCode.String = true, code
	u.ResetCodeExpiresAt.Valid, u.ResetCodeExpiresAt.Time = true, expiresAt
	return nil
}

func (s *fakeUserStore) ClearResetCode(_ context.Context, id uint64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if u.ResetCode.Valid && u.ResetCode.String == code {
		u.ResetCode = sql.NullString{}
		u.ResetCodeExpiresAt = sql.NullTime{}
	}
	return nil
}

type fakeTokenStore struct {
	mu   sync.Mutex
	rows map[uint64][]model.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{rows: make(map[uint64][]model.RefreshToken)}
}

func (s *fakeTokenStore) Replace(_ context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = []model.RefreshToken{{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}}
	return nil
}

func (s *fakeTokenStore) Find(_ context.Context, userID uint64, tokenHash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows[userID] {
		if r.TokenHash == tokenHash {
			return r, nil
		}
	}
	return model.RefreshToken{}, ErrNotFound
}

func (s *fakeTokenStore) Delete(_ context.Context, userID uint64, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[userID][:0]
	for _, r := range s.rows[userID] {
		if r.TokenHash != tokenHash {
			kept = append(kept, r)
		}
	}
	s.rows[userID] = kept
	return nil
}

func (s *fakeTokenStore) DeleteByUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, userID)
	return nil
}

func (s *fakeTokenStore) count(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[userID])
}

// fakeAccountStore provisions into the user store and records deletions.
type fakeAccountStore struct {
	users      *fakeUserStore
	conflict   bool
	deleted    []uint64
	imageFiles []string
}

func (s *fakeAccountStore) CreateWithDefaults(_ context.Context, u *model.User, _ *model.Garden) (uint64, error) {
	if s.conflict {
		return 0, ErrConflict
	}
	created := s.users.add(*u)
	return created.ID, nil
}

func (s *fakeAccountStore) DeleteAccount(_ context.Context, userID uint64) ([]string, error) {
	s.deleted = append(s.deleted, userID)
	s.users.mu.Lock()
	delete(s.users.users, userID)
	s.users.mu.Unlock()
	return s.imageFiles, nil
}

// gardenAccounts is an AccountStore that keeps real membership state so
// deletion tests can observe leader succession and sole-member cleanup.
type gardenAccounts struct {
	users   *fakeUserStore
	nextGID uint64
	nextMID uint64
	gardens map[uint64]*model.Garden
	members map[uint64][]model.GardenMember // keyed by garden id
}

func newGardenAccounts(users *fakeUserStore) *gardenAccounts {
	return &gardenAccounts{
		users:   users,
		nextGID: 1,
		nextMID: 1,
		gardens: make(map[uint64]*model.Garden),
		members: make(map[uint64][]model.GardenMember),
	}
}

func (s *gardenAccounts) CreateWithDefaults(_ context.Context, u *model.User, garden *model.Garden) (uint64, error) {
	created := s.users.add(*u)
	g := *garden
	g.ID = s.nextGID
	s.nextGID++
	s.gardens[g.ID] = &g
	s.join(g.ID, created.ID, true, time.Now())
	return created.ID, nil
}

func (s *gardenAccounts) join(gardenID, userID uint64, leader bool, joinedAt time.Time) {
	s.members[gardenID] = append(s.members[gardenID], model.GardenMember{
		ID:       s.nextMID,
		GardenID: gardenID,
		UserID:   userID,
		IsLeader: leader,
		JoinedAt: joinedAt,
	})
	s.nextMID++
}

func (s *gardenAccounts) getGarden(id uint64) (model.Garden, error) {
	if g, ok := s.gardens[id]; ok {
		return *g, nil
	}
	return model.Garden{}, ErrNotFound
}

func (s *gardenAccounts) DeleteAccount(_ context.Context, userID uint64) ([]string, error) {
	for gid, members := range s.members {
		var mine *model.GardenMember
		var rest []model.GardenMember
		for i := range members {
			if members[i].UserID == userID {
				mine = &members[i]
			} else {
				rest = append(rest, members[i])
			}
		}
		if mine == nil {
			continue
		}
		if mine.IsLeader {
			if len(rest) == 0 {
				delete(s.gardens, gid)
				delete(s.members, gid)
				continue
			}
			heir := 0
			for i := 1; i < len(rest); i++ {
				if rest[i].JoinedAt.Before(rest[heir].JoinedAt) ||
					(rest[i].JoinedAt.Equal(rest[heir].JoinedAt) && rest[i].ID < rest[heir].ID) {
					heir = i
				}
			}
			rest[heir].IsLeader = true
		}
		s.members[gid] = rest
	}
	s.users.mu.Lock()
	delete(s.users.users, userID)
	s.users.mu.Unlock()
	return nil, nil
}

type fakeMailer struct {
	mu     sync.Mutex
	fail   bool
	sent   []string // recipient addresses
	bodies []string
}

var errSMTPDown = errors.New("smtp down")

func (m *fakeMailer) Send(_ context.Context, to, _ string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errSMTPDown
	}
	m.sent = append(m.sent, to)
	m.bodies = append(m.bodies, body)
	return nil
}

// fakeScheduler records jobs instead of running them; tests fire them by
// hand.  Same-name registration replaces the pending job, mirroring the
// real scheduler.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]func())}
}

func (s *fakeScheduler) After(name string, _ time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = fn
}

func (s *fakeScheduler) fire(name string) bool {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

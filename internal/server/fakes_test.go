package server

import (
	"context"
	"sort"
	"sync"

	"github.com/quizai/quizai/internal/core"
)

// memBackend is an in-memory store covering accounts, rooms, submissions and
// rate limits.
type memBackend struct {
	mu          sync.Mutex
	accounts    map[string]core.Account
	rooms       map[string]core.Room
	submissions map[string]core.Submission
	limits      map[string]core.RateLimitRecord
}

func newMemBackend() *memBackend {
	return &memBackend{
		accounts:    map[string]core.Account{},
		rooms:       map[string]core.Room{},
		submissions: map[string]core.Submission{},
		limits:      map[string]core.RateLimitRecord{},
	}
}

func (m *memBackend) CreateAccount(_ context.Context, acct *core.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == acct.Email {
			return core.ErrConflict
		}
	}
	m.accounts[acct.ID] = *acct
	return nil
}

func (m *memBackend) GetAccount(_ context.Context, id string) (*core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &a, nil
}

func (m *memBackend) GetAccountByEmail(_ context.Context, email string) (*core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memBackend) UpdateAccount(_ context.Context, acct *core.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.ID]; !ok {
		return core.ErrNotFound
	}
	m.accounts[acct.ID] = *acct
	return nil
}

func (m *memBackend) IncrementAIUsage(_ context.Context, accountID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return core.ErrNotFound
	}
	a.AIUsage += delta
	m.accounts[accountID] = a
	return nil
}

func (m *memBackend) CreateRoom(_ context.Context, room *core.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = *room
	return nil
}

func (m *memBackend) GetRoom(_ context.Context, id string) (*core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &r, nil
}

func (m *memBackend) GetRoomByCode(_ context.Context, code string) (*core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.Code == code {
			return &r, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memBackend) ListRooms(_ context.Context, hostID string) ([]*core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Room
	for _, r := range m.rooms {
		if r.HostID == hostID {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m *memBackend) UpdateRoom(_ context.Context, room *core.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return core.ErrNotFound
	}
	m.rooms[room.ID] = *room
	return nil
}

func (m *memBackend) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.rooms, id)
	for subID, s := range m.submissions {
		if s.RoomID == id {
			delete(m.submissions, subID)
		}
	}
	return nil
}

func (m *memBackend) CreateSubmission(_ context.Context, sub *core.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[sub.ID] = *sub
	return nil
}

func (m *memBackend) GetSubmission(_ context.Context, id string) (*core.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &s, nil
}

func (m *memBackend) ListSubmissions(_ context.Context, filter core.SubmissionFilter) ([]*core.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Submission
	for _, s := range m.submissions {
		if filter.RoomID != "" && s.RoomID != filter.RoomID {
			continue
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBackend) UpdateSubmission(_ context.Context, sub *core.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[sub.ID]; !ok {
		return core.ErrNotFound
	}
	m.submissions[sub.ID] = *sub
	return nil
}

func (m *memBackend) GetRateLimit(_ context.Context, key string) (*core.RateLimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.limits[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memBackend) UpdateRateLimit(_ context.Context, key string, record *core.RateLimitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[key] = *record
	return nil
}

func (m *memBackend) DeleteRateLimit(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.limits, key)
	return nil
}

// scriptedAI grades every answer with a fixed score.
type scriptedAI struct {
	mu    sync.Mutex
	calls int
	score any
}

func (a *scriptedAI) GradeBatch(_ context.Context, req core.BatchGradingRequest) (core.BatchGrades, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	out := core.BatchGrades{}
	for _, item := range req.Submissions {
		grades := map[string]core.RawGrade{}
		for qid := range item.Answers {
			grades[qid] = core.RawGrade{Score: a.score, Feedback: "ok", HasFeedback: true}
		}
		out[item.SubmissionID] = grades
	}
	return out, nil
}

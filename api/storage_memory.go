package main

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harlequingg/devfocus/internal/ai"
	"github.com/harlequingg/devfocus/internal/stats"
)

// memoryStorage keeps everything in process. It backs -storage=memory and
// the handler tests. Records are copied on the way in and out so callers
// never share state with the store.
type memoryStorage struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[uuid.UUID]user
	tasks    map[uuid.UUID]task
	sessions map[uuid.UUID]session
}

func newMemoryStorage(now func() time.Time) *memoryStorage {
	if now == nil {
		now = time.Now
	}
	return &memoryStorage{
		now:      now,
		users:    make(map[uuid.UUID]user),
		tasks:    make(map[uuid.UUID]task),
		sessions: make(map[uuid.UUID]session),
	}
}

func copyTask(t task) *task {
	t.AIBreakdown = slices.Clone(t.AIBreakdown)
	for i := range t.AIBreakdown {
		t.AIBreakdown[i].Steps = slices.Clone(t.AIBreakdown[i].Steps)
	}
	if t.AIBreakdown == nil {
		t.AIBreakdown = []ai.Subtask{}
	}
	return &t
}

func (m *memoryStorage) insertUser(ctx context.Context, u *user) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return errDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = m.now()
	u.Version = 1
	m.users[u.ID] = *u
	return nil
}

func (m *memoryStorage) getUserByID(ctx context.Context, id uuid.UUID) (*user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errRecordNotFound
	}
	return &u, nil
}

func (m *memoryStorage) getUserByEmail(ctx context.Context, email string) (*user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, errRecordNotFound
}

func (m *memoryStorage) updateUser(ctx context.Context, u *user) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok || stored.Version != u.Version {
		return errEditConflict
	}
	// Counters belong to session completion and are never written here.
	u.Counters = stored.Counters
	u.Version++
	m.users[u.ID] = *u
	return nil
}

func (m *memoryStorage) deleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return errRecordNotFound
	}
	delete(m.users, id)
	for tid, t := range m.tasks {
		if t.UserID == id {
			delete(m.tasks, tid)
		}
	}
	for sid, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, sid)
		}
	}
	return nil
}

func (m *memoryStorage) insertTask(ctx context.Context, t *task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	t.ID = uuid.New()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1
	if t.AIBreakdown == nil {
		t.AIBreakdown = []ai.Subtask{}
	}
	m.tasks[t.ID] = *copyTask(*t)
	return nil
}

func (m *memoryStorage) getTask(ctx context.Context, id uuid.UUID) (*task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, errRecordNotFound
	}
	return copyTask(t), nil
}

func (m *memoryStorage) listTasks(ctx context.Context, userID uuid.UUID, completed *bool) ([]*task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := []*task{}
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		if completed != nil && t.IsCompleted != *completed {
			continue
		}
		tasks = append(tasks, copyTask(t))
	}
	slices.SortFunc(tasks, func(a, b *task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return tasks, nil
}

func (m *memoryStorage) updateTask(ctx context.Context, t *task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[t.ID]
	if !ok || stored.Version != t.Version {
		return errEditConflict
	}
	t.Version++
	t.UpdatedAt = m.now()
	m.tasks[t.ID] = *copyTask(*t)
	return nil
}

func (m *memoryStorage) deleteTask(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return errRecordNotFound
	}
	delete(m.tasks, id)
	for sid, s := range m.sessions {
		if s.TaskID.Valid && s.TaskID.UUID == id {
			s.TaskID = uuid.NullUUID{}
			m.sessions[sid] = s
		}
	}
	return nil
}

func (m *memoryStorage) insertSession(ctx context.Context, s *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.TaskID.Valid {
		if _, ok := m.tasks[s.TaskID.UUID]; !ok {
			return errRecordNotFound
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = m.now()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryStorage) getSession(ctx context.Context, id uuid.UUID) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errRecordNotFound
	}
	return &s, nil
}

func (m *memoryStorage) listSessions(ctx context.Context, userID uuid.UUID) ([]sessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []sessionView{}
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		v := sessionView{session: &s}
		if s.TaskID.Valid {
			if t, ok := m.tasks[s.TaskID.UUID]; ok {
				v.TaskTitle = t.Title
				v.TaskCategory = t.Category
			}
		}
		views = append(views, v)
	}
	slices.SortFunc(views, func(a, b sessionView) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return views, nil
}

func (m *memoryStorage) completedSessions(ctx context.Context, userID uuid.UUID) ([]stats.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []stats.Session
	for _, s := range m.sessions {
		if s.UserID != userID || !s.Completed {
			continue
		}
		ss := stats.Session{Duration: s.Duration, CompletedAt: *s.CompletedAt}
		if s.TaskID.Valid {
			ss.Category = m.tasks[s.TaskID.UUID].Category
		}
		out = append(out, ss)
	}
	slices.SortFunc(out, func(a, b stats.Session) int {
		return a.CompletedAt.Compare(b.CompletedAt)
	})
	return out, nil
}

func (m *memoryStorage) completeSession(ctx context.Context, id uuid.UUID, notes string, now time.Time, advance func(stats.Counters) stats.Counters) (*completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errRecordNotFound
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, errRecordNotFound
	}
	res := &completion{AlreadyCompleted: s.Completed}

	var t *task
	if s.TaskID.Valid {
		if stored, ok := m.tasks[s.TaskID.UUID]; ok {
			t = copyTask(stored)
		}
	}

	if !s.Completed {
		completedAt := now
		s.Completed = true
		s.CompletedAt = &completedAt
		s.Notes = notes
		m.sessions[id] = s

		u.Counters = advance(u.Counters)
		u.Version++
		m.users[u.ID] = u

		if t != nil {
			t.setProgress(t.CompletedUnits+1, t.EstimatedUnits)
			t.UpdatedAt = now
			t.Version++
			m.tasks[t.ID] = *copyTask(*t)
		}
	}

	res.Session = &s
	res.Task = t
	res.User = u.Counters
	return res, nil
}

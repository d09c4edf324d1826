package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It is used by tests and by
// local runs without Firestore credentials.
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	users        map[string]User
	transactions map[string][]Transaction
	readings     map[string][]Reading
	journal      map[string]map[string]JournalEntry
	rituals      map[string][]Ritual
	orders       map[string]Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          time.Now,
		users:        make(map[string]User),
		transactions: make(map[string][]Transaction),
		readings:     make(map[string][]Reading),
		journal:      make(map[string]map[string]JournalEntry),
		rituals:      make(map[string][]Ritual),
		orders:       make(map[string]Order),
	}
}

// SetClock replaces the time source used for timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutUser seeds a user document.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UID] = u
}

func (s *MemoryStore) GetUser(_ context.Context, uid string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) EnsureUser(_ context.Context, uid, email, displayName string) (*User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[uid]; ok {
		return &u, false, nil
	}
	now := s.now()
	u := User{UID: uid, Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	s.users[uid] = u
	return &u, true, nil
}

func (s *MemoryStore) ApplyToUser(_ context.Context, uid, txID string, fn Mutation) (*User, *Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if txID != "" {
		for _, t := range s.transactions[uid] {
			if t.ID == txID {
				return nil, nil, ErrDuplicate
			}
		}
	}

	current, ok := s.users[uid]
	if !ok {
		return nil, nil, ErrNotFound
	}

	u := current
	entry, err := fn(&u)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	u.UID = uid
	u.UpdatedAt = now
	s.users[uid] = u

	if entry != nil {
		if txID == "" {
			txID = uuid.NewString()
		}
		entry.ID = txID
		entry.BalanceAfter = u.Points
		entry.CreatedAt = now
		s.transactions[uid] = append(s.transactions[uid], *entry)
	}
	return &u, entry, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, uid string, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Transaction(nil), s.transactions[uid]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryStore) SaveReading(_ context.Context, uid string, r *Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.readings[uid] = append(s.readings[uid], *r)
	return nil
}

func (s *MemoryStore) ListReadings(_ context.Context, uid string, limit int) ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Reading(nil), s.readings[uid]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryStore) GetReading(_ context.Context, uid, id string) (*Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readings[uid] {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveJournalEntry(_ context.Context, uid string, e *JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if s.journal[uid] == nil {
		s.journal[uid] = make(map[string]JournalEntry)
	}
	s.journal[uid][e.ID] = *e
	return nil
}

func (s *MemoryStore) ListJournalEntries(_ context.Context, uid string, limit int) ([]JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JournalEntry, 0, len(s.journal[uid]))
	for _, e := range s.journal[uid] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryStore) GetJournalEntry(_ context.Context, uid, id string) (*JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.journal[uid][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) DeleteJournalEntry(_ context.Context, uid, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.journal[uid][id]; !ok {
		return ErrNotFound
	}
	delete(s.journal[uid], id)
	return nil
}

func (s *MemoryStore) SaveRitual(_ context.Context, uid string, r *Ritual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = s.now()
	}
	s.rituals[uid] = append(s.rituals[uid], *r)
	return nil
}

func (s *MemoryStore) ListRituals(_ context.Context, uid string, limit int) ([]Ritual, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Ritual(nil), s.rituals[uid]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryStore) SaveOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (s *MemoryStore) MarkOrderPaid(_ context.Context, id, externalID string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = OrderPaid
	o.ExternalID = externalID
	o.PaidAt = paidAt
	s.orders[id] = o
	return nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

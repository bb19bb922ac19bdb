package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a simple in-memory Repository used for unit tests.
// It mirrors the Mongo implementation's semantics, including the uniqueness
// guarantees of the Ensure* methods.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]bool
	subs  map[string]Subscription // by id
	links map[string]Link         // by id
	seq   int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]bool),
		subs:  make(map[string]Subscription),
		links: make(map[string]Link),
	}
}

func (m *MemoryRepository) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%06d", prefix, m.seq)
}

func (m *MemoryRepository) EnsureUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = true
	return nil
}

func (m *MemoryRepository) EnsureSubscription(ctx context.Context, attr, value string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Attr == attr && s.Value == value {
			out := s
			return &out, nil
		}
	}
	s := Subscription{ID: m.nextID("sub"), Attr: attr, Value: value}
	m.subs[s.ID] = s
	return &s, nil
}

func (m *MemoryRepository) EnsureLink(ctx context.Context, userID, subID string, added time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.User == userID && l.Sub == subID {
			return nil
		}
	}
	l := Link{ID: m.nextID("link"), User: userID, Sub: subID, Added: added}
	m.links[l.ID] = l
	return nil
}

func (m *MemoryRepository) LinksByUser(ctx context.Context, userID string) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Link{}
	for _, l := range m.links {
		if l.User == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Added.Equal(out[j].Added) {
			return out[i].ID < out[j].ID
		}
		return out[i].Added.Before(out[j].Added)
	})
	return out, nil
}

func (m *MemoryRepository) SubscriptionsByIDs(ctx context.Context, ids []string) (map[string]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Subscription{}
	for _, id := range ids {
		if s, ok := m.subs[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *MemoryRepository) DeleteLink(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return ErrLinkNotFound
	}
	delete(m.links, id)
	return nil
}

func (m *MemoryRepository) DeleteUserLinks(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.links {
		if l.User == userID {
			delete(m.links, id)
		}
	}
	return nil
}

func (m *MemoryRepository) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *MemoryRepository) DistinctAttributes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, s := range m.subs {
		if !seen[s.Attr] {
			seen[s.Attr] = true
			out = append(out, s.Attr)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRepository) FindSubscriptions(ctx context.Context, attr, value string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Subscription{}
	for _, s := range m.subs {
		if s.Attr == attr && s.Value == value {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) SubscriberIDs(ctx context.Context, subID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := []Link{}
	for _, l := range m.links {
		if l.Sub == subID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Added.Equal(links[j].Added) {
			return links[i].ID < links[j].ID
		}
		return links[i].Added.Before(links[j].Added)
	})
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.User)
	}
	return out, nil
}

// HasUser reports whether the user record still exists. Test helper.
func (m *MemoryRepository) HasUser(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// SubscriptionCount reports the number of stored subscription documents. Test helper.
func (m *MemoryRepository) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

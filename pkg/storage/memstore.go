package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

// MemStore is an in-memory core.OrderStore for tests and throwaway devnets.
type MemStore struct {
	mu     sync.Mutex
	orders map[string]map[string]*core.Order // keyed by user id, then order id
	events map[string][]*core.OrderEvent     // per-user append-only log
	creds  map[string]core.Credentials
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders: make(map[string]map[string]*core.Order),
		events: make(map[string][]*core.OrderEvent),
		creds:  make(map[string]core.Credentials),
	}
}

func (s *MemStore) SaveOrder(_ context.Context, o *core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders[o.UserID] == nil {
		s.orders[o.UserID] = make(map[string]*core.Order)
	}
	cp := *o
	s.orders[o.UserID][o.ID] = &cp
	return nil
}

func (s *MemStore) GetOrder(_ context.Context, userID, orderID string) (*core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][orderID]
	if !ok {
		return nil, core.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemStore) ListOrders(_ context.Context, userID string) ([]*core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Order, 0, len(s.orders[userID]))
	for _, o := range s.orders[userID] {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) TransitionOrder(_ context.Context, userID, orderID string, from, to core.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][orderID]
	if !ok {
		return false, core.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *MemStore) AppendEvent(_ context.Context, ev *core.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.events[ev.UserID] = append(s.events[ev.UserID], &cp)
	return nil
}

func (s *MemStore) ListEventsByOrder(_ context.Context, userID, orderID string) ([]*core.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.OrderEvent
	for _, ev := range s.events[userID] {
		if ev.OrderID == orderID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) ListEventsByUser(_ context.Context, userID string) ([]*core.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.OrderEvent, 0, len(s.events[userID]))
	for _, ev := range s.events[userID] {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) SaveCredentials(_ context.Context, userID string, c core.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID] = c
	return nil
}

func (s *MemStore) GetCredentials(_ context.Context, userID string) (core.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[userID]
	if !ok {
		return core.Credentials{}, core.ErrCredentialsMissing
	}
	return c, nil
}

func (s *MemStore) Close() error { return nil }

var _ core.OrderStore = (*MemStore)(nil)

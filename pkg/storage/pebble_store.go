package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

// PebbleStore is the durable implementation of core.OrderStore.
// Status transitions are serialized under a mutex so the conditional
// guard in TransitionOrder cannot race with itself.
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex // guards read-modify-write of order status
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveOrder(_ context.Context, o *core.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.UserID, o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (s *PebbleStore) GetOrder(_ context.Context, userID, orderID string) (*core.Order, error) {
	return s.getOrder(userID, orderID)
}

func (s *PebbleStore) getOrder(userID, orderID string) (*core.Order, error) {
	data, closer, err := s.db.Get(orderKey(userID, orderID))
	if err == pebble.ErrNotFound {
		return nil, core.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	defer closer.Close()

	var o core.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func (s *PebbleStore) ListOrders(_ context.Context, userID string) ([]*core.Order, error) {
	prefix := orderPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer iter.Close()

	var orders []*core.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o core.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		orders = append(orders, &o)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *PebbleStore) TransitionOrder(ctx context.Context, userID, orderID string, from, to core.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.getOrder(userID, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	if err := s.SaveOrder(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) AppendEvent(_ context.Context, ev *core.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.db.Set(eventKey(ev.UserID, ev.OrderID, ev.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PebbleStore) ListEventsByOrder(_ context.Context, userID, orderID string) ([]*core.OrderEvent, error) {
	return s.scanEvents(eventOrderPrefix(userID, orderID))
}

func (s *PebbleStore) ListEventsByUser(_ context.Context, userID string) ([]*core.OrderEvent, error) {
	return s.scanEvents(eventUserPrefix(userID))
}

func (s *PebbleStore) scanEvents(prefix []byte) ([]*core.OrderEvent, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	defer iter.Close()

	var events []*core.OrderEvent
	for iter.First(); iter.Valid(); iter.Next() {
		var ev core.OrderEvent
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue
		}
		events = append(events, &ev)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (s *PebbleStore) SaveCredentials(_ context.Context, userID string, c core.Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := s.db.Set(credKey(userID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *PebbleStore) GetCredentials(_ context.Context, userID string) (core.Credentials, error) {
	data, closer, err := s.db.Get(credKey(userID))
	if err == pebble.ErrNotFound {
		return core.Credentials{}, core.ErrCredentialsMissing
	}
	if err != nil {
		return core.Credentials{}, fmt.Errorf("get credentials: %w", err)
	}
	defer closer.Close()

	var c core.Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return core.Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return c, nil
}

var _ core.OrderStore = (*PebbleStore)(nil)

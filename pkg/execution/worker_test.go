package execution

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/bus"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/storage"
)

// fakeVenue is scripted per test.
type fakeVenue struct {
	mu        sync.Mutex
	placeResp *VenueResponse
	placeErr  error
	cancelErr error
	placed    []VenueOrder
	canceled  []string
}

func (v *fakeVenue) PlaceOrder(_ context.Context, _ core.Credentials, o VenueOrder) (*VenueResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.placed = append(v.placed, o)
	if v.placeErr != nil {
		return nil, v.placeErr
	}
	return v.placeResp, nil
}

func (v *fakeVenue) CancelOrder(_ context.Context, _ core.Credentials, _ string, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canceled = append(v.canceled, orderID)
	return v.cancelErr
}

type fixture struct {
	worker *Worker
	store  *storage.MemStore
	bus    *bus.InProcBus
	venue  *fakeVenue
}

func newFixture(t *testing.T, cfg Config) *fixture {
	store := storage.NewMemStore()
	b := bus.NewInProcBus()
	t.Cleanup(func() { b.Close() })
	venue := &fakeVenue{}
	w := NewWorker(store, b, venue, cfg, zap.NewNop().Sugar())
	require.NoError(t, w.Start(context.Background()))
	return &fixture{worker: w, store: store, bus: b, venue: venue}
}

func (f *fixture) seedOrder(t *testing.T, id string) *core.Order {
	o := &core.Order{
		ID:        id,
		UserID:    "u1",
		Symbol:    "ETHUSDT",
		Side:      core.SideSell,
		Type:      core.TypeMarket,
		Quantity:  decimal.NewFromInt(2),
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveOrder(context.Background(), o))
	return o
}

func (f *fixture) seedCredentials(t *testing.T) {
	require.NoError(t, f.store.SaveCredentials(context.Background(), "u1",
		core.Credentials{APIKey: "k", APISecret: "s"}))
}

func (f *fixture) publishSubmit(t *testing.T, o *core.Order) {
	cmd := core.SubmitCommand{
		OrderID: o.ID, UserID: o.UserID, Symbol: o.Symbol,
		Side: o.Side, Type: o.Type, Quantity: o.Quantity,
		Price: o.Price, StopPrice: o.StopPrice, Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(&cmd)
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(context.Background(), core.TopicSubmit, payload))
}

func (f *fixture) publishCancel(t *testing.T, o *core.Order) {
	cmd := core.CancelCommand{OrderID: o.ID, UserID: o.UserID, Symbol: o.Symbol, Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(&cmd)
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(context.Background(), core.TopicCancel, payload))
}

// collectStatus subscribes before any publish so no event is missed.
func collectStatus(t *testing.T, b *bus.InProcBus) func() []*core.StatusEvent {
	var mu sync.Mutex
	var events []*core.StatusEvent
	require.NoError(t, b.Subscribe(context.Background(), core.TopicStatus, func(_ context.Context, payload []byte) {
		ev, err := core.DecodeStatusEvent(payload)
		if err != nil {
			t.Errorf("bad status event: %v", err)
			return
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	return func() []*core.StatusEvent {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*core.StatusEvent, len(events))
		copy(out, events)
		return out
	}
}

func waitStatus(t *testing.T, o *core.Order, f *fixture, want core.OrderStatus) *core.Order {
	var got *core.Order
	require.Eventually(t, func() bool {
		stored, err := f.store.GetOrder(context.Background(), o.UserID, o.ID)
		if err != nil {
			return false
		}
		got = stored
		return stored.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestSubmitFillsViaVenue(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	statuses := collectStatus(t, f.bus)
	f.seedCredentials(t)
	f.venue.placeResp = &VenueResponse{Price: decimal.NewFromInt(2100)}

	o := f.seedOrder(t, "o1")
	f.publishSubmit(t, o)

	waitStatus(t, o, f, core.StatusProcessed)

	events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventFilled, events[0].Status)
	assert.True(t, events[0].Price.Equal(decimal.NewFromInt(2100)))
	assert.True(t, events[0].Quantity.Equal(o.Quantity))

	require.Eventually(t, func() bool { return len(statuses()) == 1 }, time.Second, 10*time.Millisecond)
	ev := statuses()[0]
	assert.Equal(t, "ETHUSDT", ev.Symbol)
	assert.Equal(t, core.SideSell, ev.Side)
	assert.Equal(t, core.EventFilled, ev.Status)
}

func TestSubmitWithoutCredentialsRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	statuses := collectStatus(t, f.bus)

	o := f.seedOrder(t, "o1")
	f.publishSubmit(t, o)

	waitStatus(t, o, f, core.StatusProcessed)

	events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventRejected, events[0].Status)
	assert.True(t, events[0].Price.IsZero())

	// The venue is never called without credentials.
	assert.Empty(t, f.venue.placed)
	require.Eventually(t, func() bool { return len(statuses()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSandboxFallbackFillOnVenueError(t *testing.T) {
	t.Run("uses submitted price", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.seedCredentials(t)
		f.venue.placeErr = errors.New("venue down")

		o := f.seedOrder(t, "o1")
		o.Price = decimal.NewFromInt(1999)
		require.NoError(t, f.store.SaveOrder(context.Background(), o))
		f.publishSubmit(t, o)

		waitStatus(t, o, f, core.StatusProcessed)
		events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, core.EventFilled, events[0].Status)
		assert.True(t, events[0].Price.Equal(decimal.NewFromInt(1999)))
	})

	t.Run("falls back to default price", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.seedCredentials(t)
		f.venue.placeErr = errors.New("venue down")

		o := f.seedOrder(t, "o1") // MARKET, no price
		f.publishSubmit(t, o)

		waitStatus(t, o, f, core.StatusProcessed)
		events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, core.EventFilled, events[0].Status)
		assert.True(t, events[0].Price.Equal(DefaultConfig().DefaultFillPrice))
	})
}

func TestLiveModeVenueErrorRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sandbox = false
	f := newFixture(t, cfg)
	f.seedCredentials(t)
	f.venue.placeErr = errors.New("venue down")

	o := f.seedOrder(t, "o1")
	f.publishSubmit(t, o)

	waitStatus(t, o, f, core.StatusProcessed)
	events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventRejected, events[0].Status)
}

func TestFillPriceDerivation(t *testing.T) {
	submitted := decimal.NewFromInt(100)

	assert.True(t, fillPrice(&VenueResponse{Price: decimal.NewFromInt(101)}, submitted).
		Equal(decimal.NewFromInt(101)))
	assert.True(t, fillPrice(&VenueResponse{Fills: []VenueFill{{Price: decimal.NewFromInt(102)}}}, submitted).
		Equal(decimal.NewFromInt(102)))
	assert.True(t, fillPrice(&VenueResponse{}, submitted).Equal(submitted))
}

func TestDuplicateSubmitYieldsSingleEvent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCredentials(t)
	f.venue.placeResp = &VenueResponse{Price: decimal.NewFromInt(2100)}

	o := f.seedOrder(t, "o1")
	f.publishSubmit(t, o)
	f.publishSubmit(t, o)

	waitStatus(t, o, f, core.StatusProcessed)

	// Give the duplicate time to be handled and dropped.
	assert.Never(t, func() bool {
		events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
		return err != nil || len(events) != 1
	}, 300*time.Millisecond, 25*time.Millisecond)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	statuses := collectStatus(t, f.bus)
	f.seedCredentials(t)

	o := f.seedOrder(t, "o1")
	f.publishCancel(t, o)

	waitStatus(t, o, f, core.StatusCanceled)

	events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventCanceled, events[0].Status)
	assert.True(t, events[0].Price.IsZero())
	assert.True(t, events[0].Quantity.IsZero())

	require.Eventually(t, func() bool { return len(statuses()) == 1 }, time.Second, 10*time.Millisecond)

	// Venue cancel was attempted.
	require.Eventually(t, func() bool {
		f.venue.mu.Lock()
		defer f.venue.mu.Unlock()
		return len(f.venue.canceled) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCancelAfterProcessIsNoop(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCredentials(t)

	o := f.seedOrder(t, "o1")
	_, err := f.store.TransitionOrder(context.Background(), "u1", "o1", core.StatusPending, core.StatusProcessed)
	require.NoError(t, err)

	f.publishCancel(t, o)

	// The processed order never regresses and gains no cancel event.
	assert.Never(t, func() bool {
		stored, err := f.store.GetOrder(context.Background(), "u1", "o1")
		if err != nil || stored.Status != core.StatusProcessed {
			return true
		}
		events, err := f.store.ListEventsByOrder(context.Background(), "u1", "o1")
		return err != nil || len(events) != 0
	}, 300*time.Millisecond, 25*time.Millisecond)
}

func TestVenueCancelFailureStillCancelsLocally(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCredentials(t)
	f.venue.cancelErr = errors.New("venue down")

	o := f.seedOrder(t, "o1")
	f.publishCancel(t, o)

	waitStatus(t, o, f, core.StatusCanceled)
}

package core

import "context"

// Credentials are a user's venue API keys, loaded by the execution worker
// before placing an order.
type Credentials struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

// OrderStore is the access contract for the persistent order store.
// It is the only mutable resource shared between gateway and worker.
type OrderStore interface {
	// SaveOrder writes a new order record.
	SaveOrder(ctx context.Context, o *Order) error
	// GetOrder returns ErrOrderNotFound if no order with that id belongs to the user.
	GetOrder(ctx context.Context, userID, orderID string) (*Order, error)
	// ListOrders returns the user's orders, newest first.
	ListOrders(ctx context.Context, userID string) ([]*Order, error)

	// TransitionOrder updates the order's status only if its current status
	// equals from. Returns false with no error when the guard fails, which
	// makes duplicate command delivery a safe no-op.
	TransitionOrder(ctx context.Context, userID, orderID string, from, to OrderStatus) (bool, error)

	// AppendEvent appends to the immutable event log.
	AppendEvent(ctx context.Context, ev *OrderEvent) error
	ListEventsByOrder(ctx context.Context, userID, orderID string) ([]*OrderEvent, error)
	ListEventsByUser(ctx context.Context, userID string) ([]*OrderEvent, error)

	// SaveCredentials stores a user's venue API keys.
	SaveCredentials(ctx context.Context, userID string, c Credentials) error
	// GetCredentials returns ErrCredentialsMissing when the user has no keys.
	GetCredentials(ctx context.Context, userID string) (Credentials, error)

	Close() error
}

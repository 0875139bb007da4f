package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

// VenueOrder carries the order-defining fields of an external placement call.
type VenueOrder struct {
	Symbol   string
	Side     core.Side
	Type     core.OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// VenueFill is one reported fill line of a placement response.
type VenueFill struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// VenueResponse is the documented success shape: a price, a fill list, or both.
type VenueResponse struct {
	Price decimal.Decimal `json:"price"`
	Fills []VenueFill     `json:"fills"`
}

// Venue is the external exchange collaborator. Calls carry a bounded timeout
// through the underlying HTTP client; no in-flight call is cancelable once
// started beyond that.
type Venue interface {
	PlaceOrder(ctx context.Context, creds core.Credentials, ord VenueOrder) (*VenueResponse, error)
	CancelOrder(ctx context.Context, creds core.Credentials, symbol, orderID string) error
}

// RESTVenue signs requests with HMAC-SHA256 over the query string, the way
// the venue's REST contract documents.
type RESTVenue struct {
	baseURL string
	client  *http.Client
}

func NewRESTVenue(baseURL string, timeout time.Duration) *RESTVenue {
	return &RESTVenue{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (v *RESTVenue) PlaceOrder(ctx context.Context, creds core.Credentials, ord VenueOrder) (*VenueResponse, error) {
	q := url.Values{}
	q.Set("symbol", ord.Symbol)
	q.Set("side", string(ord.Side))
	q.Set("type", string(ord.Type))
	q.Set("quantity", ord.Quantity.String())
	if ord.Price.IsPositive() {
		q.Set("price", ord.Price.String())
	}
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	return v.do(ctx, creds, http.MethodPost, "/order", q)
}

func (v *RESTVenue) CancelOrder(ctx context.Context, creds core.Credentials, symbol, orderID string) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("orderId", orderID)
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	_, err := v.do(ctx, creds, http.MethodDelete, "/order", q)
	return err
}

func (v *RESTVenue) do(ctx context.Context, creds core.Credentials, method, path string, q url.Values) (*VenueResponse, error) {
	query := q.Encode()
	sig := sign(creds.APISecret, query)
	full := v.baseURL + path + "?" + query + "&signature=" + sig

	req, err := http.NewRequestWithContext(ctx, method, full, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("venue call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("venue response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("venue returned %d: %s", resp.StatusCode, body)
	}

	var out VenueResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("venue response: %w", err)
	}
	return &out, nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

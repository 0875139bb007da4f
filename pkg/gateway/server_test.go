package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/auth"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, ratePerMin int) *httptest.Server {
	gw, _, _ := newTestGateway(t)
	srv := httptest.NewServer(NewServer(gw, testSecret, ratePerMin, zap.NewNop().Sugar()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func authedRequest(t *testing.T, method, url, userID string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	token, err := auth.Sign(testSecret, userID, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func submitBody() map[string]any {
	return map[string]any{
		"symbol": "ETHUSDT", "side": "SELL", "type": "MARKET", "quantity": 2,
	}
}

func TestServerRequiresAuth(t *testing.T) {
	srv := newTestServer(t, 10)

	resp, err := http.Get(srv.URL + "/api/v1/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerRejectsBadToken(t *testing.T) {
	srv := newTestServer(t, 10)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerSubmitAndList(t *testing.T) {
	srv := newTestServer(t, 10)

	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/orders", "u1", submitBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order core.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, core.StatusPending, order.Status)
	assert.NotEmpty(t, order.ID)

	listResp, err := http.DefaultClient.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/orders", "u1", nil))
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var orders []OrderWithEvents
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.NotNil(t, orders[0].Events)
}

func TestServerValidationError(t *testing.T) {
	srv := newTestServer(t, 10)

	body := map[string]any{"symbol": "ETHUSDT", "side": "SELL", "type": "LIMIT", "quantity": 2}
	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/orders", "u1", body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerCancelMissingOrder(t *testing.T) {
	srv := newTestServer(t, 10)

	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodDelete, srv.URL+"/api/v1/orders/ghost", "u1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerRateLimitsSubmits(t *testing.T) {
	srv := newTestServer(t, 3)

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/orders", "u1", submitBody()))
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	// Burst of 3 passes, the rest are throttled.
	assert.Equal(t, []int{200, 200, 200, 429, 429}, statuses)

	// Another user has an independent budget.
	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/orders", "u2", submitBody()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Reads are not rate limited.
	for i := 0; i < 5; i++ {
		resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/orders", "u1", nil))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("read %d", i))
	}
}

func TestServerSaveCredentials(t *testing.T) {
	srv := newTestServer(t, 10)

	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodPut, srv.URL+"/api/v1/credentials", "u1",
		map[string]string{"apiKey": "k", "apiSecret": "s"}))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.DefaultClient.Do(authedRequest(t, http.MethodPut, srv.URL+"/api/v1/credentials", "u1",
		map[string]string{"apiKey": "k"}))
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestServerHealthIsPublic(t *testing.T) {
	srv := newTestServer(t, 10)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return &Client{BaseURL: url, APIKey: "gw-key", HTTPClient: &http.Client{Timeout: 2 * time.Second}}
}

func TestCreateCollectRequest_Success(t *testing.T) {
	var got CollectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create-collect-request", r.URL.Path)
		assert.Equal(t, "Bearer gw-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"payment_url":"https://pay.example.com/c/1"}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).CreateCollectRequest(context.Background(), CollectRequest{
		Token: "jwt", OrderID: "ORDER_1", Amount: 2000, Gateway: "PhonePe",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/c/1", out.PaymentURL)
	assert.Equal(t, "ORDER_1", got.OrderID)
	assert.Equal(t, 2000.0, got.Amount)
	assert.Equal(t, "jwt", got.Token)
}

func TestCreateCollectRequest_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"non 2xx", http.StatusInternalServerError, `oops`, "status=500"},
		{"rejected", http.StatusOK, `{"success":false,"message":"invalid pg key"}`, "invalid pg key"},
		{"rejected without message", http.StatusOK, `{"success":false}`, "gateway rejected"},
		{"missing url", http.StatusOK, `{"success":true}`, "no payment_url"},
		{"bad json", http.StatusOK, `{`, "decode gateway response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).CreateCollectRequest(context.Background(), CollectRequest{OrderID: "X"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateCollectRequest_TruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateCollectRequest(context.Background(), CollectRequest{OrderID: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read gateway response")
}

func TestCreateCollectRequest_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).CreateCollectRequest(ctx, CollectRequest{OrderID: "X"})
	assert.Error(t, err)
}

func TestCreateCollectRequest_NoBaseURL(t *testing.T) {
	_, err := newTestClient("").CreateCollectRequest(context.Background(), CollectRequest{})
	assert.Error(t, err)
}

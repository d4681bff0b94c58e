package evolution

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

func TestSendPostsTextMessage(t *testing.T) {
	var gotPath, gotKey string
	var got sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "k", InstanceName: "DATA-RO", SendDelay: 1200 * time.Millisecond}, nil)
	err := c.Send(context.Background(), "5569999089202", "Olá")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/DATA-RO", gotPath)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "5569999089202", got.Number)
	assert.Equal(t, "Olá", got.Text)
	assert.Equal(t, int64(1200), got.Delay)
}

func TestSendReportsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "instance not connected", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, InstanceName: "DATA-RO"}, nil)
	err := c.Send(context.Background(), "5569999089202", "Olá")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "instance not connected")
}

func TestConnectionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/DATA-RO", r.URL.Path)
		_, _ = w.Write([]byte(`{"instance":{"instanceName":"DATA-RO","state":"open"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, InstanceName: "DATA-RO"}, nil)
	state, err := c.ConnectionState(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"instance":{"instanceName":"DATA-RO","state":"open"}}`, string(state))
}

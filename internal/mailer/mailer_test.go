package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailJSSenderPostsTemplate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(srv.Close)

	s := NewEmailJSSender(Config{Endpoint: srv.URL, ServiceID: "svc", PublicKey: "pub", PrivateKey: "priv"}, srv.Client())
	res, err := s.Send(context.Background(), "tpl_verify", "a@b.com", Params{ToName: "Ann", Link: "https://x/verify?id=1"})
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, StatusCode: 200}, res)

	assert.Equal(t, "svc", got["service_id"])
	assert.Equal(t, "tpl_verify", got["template_id"])
	assert.Equal(t, "pub", got["user_id"])
	assert.Equal(t, "priv", got["accessToken"])
	params := got["template_params"].(map[string]any)
	assert.Equal(t, "Ann", params["to_name"])
	assert.Equal(t, "a@b.com", params["to_email"])
	assert.Equal(t, "https://x/verify?id=1", params["link"])
}

func TestEmailJSSenderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad template", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	s := NewEmailJSSender(Config{Endpoint: srv.URL}, srv.Client())
	res, err := s.Send(context.Background(), "tpl", "a@b.com", Params{})
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestNewFallsBackToLogSender(t *testing.T) {
	s := New(Config{}, nil)
	_, ok := s.(*LogSender)
	require.True(t, ok)
	res, err := s.Send(context.Background(), "tpl", "a@b.com", Params{})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

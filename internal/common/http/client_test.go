package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["fail"] == "yes" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"echo":"failed"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	headers := map[string]string{"Authorization": "Bearer secret"}

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, headers, map[string]string{"msg": "hi"}, &out))
	assert.Equal(t, "hi", out.Echo)

	err := c.PostJSON(context.Background(), srv.URL, headers, map[string]string{"fail": "yes"}, &out)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "failed", out.Echo)
}

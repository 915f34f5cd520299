package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
)

func TestSendJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		assert.Equal(t, "sess-7", r.Header.Get("X-Session-ID"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"data":"hello"}`, string(b))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctx := common.WithRequestID(context.Background(), "req-42")
	ctx = common.WithSessionID(ctx, "sess-7")
	raw, status, err := SendJSON(ctx, srv.Client(), srv.URL, map[string]string{"data": "hello"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestSendJSONNon2xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]string{}, nil, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "down", string(raw))
	assert.Equal(t, int32(1), calls.Load(), "no retries")
}

func TestSendJSONTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, status, err := SendJSON(context.Background(), nil, url, map[string]string{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, status)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestSendJSONEncodeError(t *testing.T) {
	_, _, err := SendJSON(context.Background(), nil, "http://127.0.0.1:1", map[string]any{"c": make(chan int)}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode json")
}

func TestSchemaValidate(t *testing.T) {
	s := NewSchema(map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"credibility": map[string]any{"type": "number"},
		},
		"required": []string{"credibility"},
	})

	assert.NoError(t, s.Validate([]byte(`{"credibility": 72}`)))
	assert.Error(t, s.Validate([]byte(`{}`)))
	assert.Error(t, s.Validate([]byte(`{"credibility": "high"}`)))
	assert.Error(t, s.Validate([]byte(`{"credibility": 1, "extra": 2}`)))
	assert.Error(t, s.Validate([]byte(`not json`)))

	b, _ := json.Marshal(map[string]any{"credibility": 10})
	assert.NoError(t, ValidateJSONAgainstSchema(s.def, b))
}

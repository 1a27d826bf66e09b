package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(config.APIConfig{
		BaseURL:    srv.URL + "/api/v1",
		Timeout:    5 * time.Second,
		UserAgent:  "campusfin-test",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.APIConfig{})
	assert.Error(t, err)

	c, err := New(config.APIConfig{BaseURL: "http://localhost:8000/api/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/v1", c.BaseURL())
}

func TestClient_Get_SetsHeadersAndDecodes(t *testing.T) {
	var gotAuth, gotRequestID, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(HeaderRequestID)
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Fall 2024"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(staticToken("tok-123")))

	var out []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	err := c.Get(context.Background(), "/finance/semesters", map[string]string{"student_id": "7"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "/api/v1/finance/semesters", gotPath)
	assert.Equal(t, "student_id=7", gotQuery)
	require.Len(t, out, 1)
	assert.Equal(t, "Fall 2024", out[0].Name)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(staticToken("")))
	require.NoError(t, c.Delete(context.Background(), "/finance/standard-fees/3"))
	assert.False(t, hasAuth)
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := metrics.NewRecorder()
	c := newTestClient(t, srv, WithMetrics(rec))

	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), "/x", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), calls.Load())

	families, err := rec.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Post(context.Background(), "/finance/payments", map[string]int{"amount": 1}, nil)

	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"string detail", `{"detail":"Payment amount exceeds balance"}`, "Payment amount exceeds balance"},
		{"field list detail", `{"detail":[{"loc":["body","amount"],"msg":"must be positive"}]}`, "amount: must be positive"},
		{"no detail", `<html>oops</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			err := c.Post(context.Background(), "/finance/payments", struct{}{}, nil)

			require.ErrorIs(t, err, shared.ErrNetwork)
			var netErr *shared.NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, tt.detail, netErr.Detail)
		})
	}
}

func TestClient_UnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	var hooked atomic.Int32
	c := newTestClient(t, srv, WithUnauthorizedHandler(func(ctx context.Context) {
		hooked.Add(1)
	}))

	err := c.Get(context.Background(), "/finance/summary", nil, nil)
	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.Equal(t, int32(1), hooked.Load(), "401 is not retried and fires the hook once")

	_, err = c.Do(context.Background(), Request{
		Method:               http.MethodPost,
		Path:                 "/auth/login",
		Form:                 url.Values{"username": {"a"}},
		SkipUnauthorizedHook: true,
	})
	assert.Error(t, err)
	assert.Equal(t, int32(1), hooked.Load())
}

func TestClient_FormBody(t *testing.T) {
	var contentType, username string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		username = r.PostForm.Get("username")
		_, _ = w.Write([]byte(`{"access_token":"t","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.DoJSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Form:   url.Values{"username": {"admin@example.edu"}, "password": {"secret"}},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "admin@example.edu", username)
	assert.Equal(t, "t", out.AccessToken)
}

func TestClient_Open(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	rc, err := c.Open(context.Background(), Request{Method: http.MethodGet, Path: "/finance/receipts/5/download"})
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv, WithRetryConfig(RetryConfig{MaxRetries: 0}))
	srv.Close()

	err := c.Get(context.Background(), "/finance/semesters", nil, nil)
	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(netErr))
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryConfig: RetryConfig{RetryDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}}

	d1 := c.calculateBackoff(1)
	assert.InDelta(t, float64(100*time.Millisecond), float64(d1), float64(25*time.Millisecond))

	d5 := c.calculateBackoff(5)
	assert.LessOrEqual(t, d5, 1250*time.Millisecond)
}

func TestParseDetail(t *testing.T) {
	assert.Equal(t, "Incorrect email or password", parseDetail([]byte(`{"detail":"Incorrect email or password"}`)))
	assert.Equal(t, "", parseDetail([]byte(`{}`)))
	assert.Equal(t, "email: field required; bad", parseDetail([]byte(`{"detail":[{"loc":["body","email"],"msg":"field required"},{"loc":[],"msg":"bad"}]}`)))
}

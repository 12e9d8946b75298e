package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatusServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testDeviceToken, http.DefaultClient, Options{
		StorageURL: srv.URL,
		WebappURL:  srv.URL,
		MaxRetries: 2,
	}, testLogger(t))
	c.sleepFunc = noopSleep

	return c
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("dev", nil, Options{}, nil)

	assert.Equal(t, DefaultStorageURL, c.storageURL)
	assert.Equal(t, DefaultWebappURL, c.webappURL)
	assert.Equal(t, http.DefaultClient, c.httpClient)
	assert.Zero(t, c.maxRetries)
	assert.False(t, c.HasSessionToken())
	assert.Equal(t, authNone, c.auth)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("dev", nil, Options{StorageURL: "http://s/", WebappURL: "http://w//"}, nil)

	assert.Equal(t, "http://s", c.storageURL)
	assert.Equal(t, "http://w", c.webappURL)
}

func TestNewClient_SeededUserToken(t *testing.T) {
	c := NewClient("dev", nil, Options{UserToken: "sess"}, nil)
	assert.True(t, c.HasSessionToken())
}

func TestDo_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32

	c := newStatusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	resp, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RetriesExhaustedReturnsLastResponse(t *testing.T) {
	var calls atomic.Int32

	c := newStatusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	resp, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestDo_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32

	c := newStatusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	resp, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RetryAfterHonored(t *testing.T) {
	var calls atomic.Int32

	c := newStatusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	var slept []time.Duration
	c.sleepFunc = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	resp, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []time.Duration{7 * time.Second}, slept)
}

func TestDo_BodyResentOnRetry(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		calls  atomic.Int32
	)

	c := newStatusServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	resp, err := c.do(context.Background(), http.MethodPut, c.storageURL+"/x", []byte(`[1]`), "application/json")
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`[1]`, `[1]`}, bodies)
}

func TestDo_AuthHeaderFollowsMode(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)

	c := newStatusServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	})
	c.userToken = bearer("sess")

	for _, mode := range []authMode{authNone, authDevice, authSession} {
		c.setAuth(mode)
		resp, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
		require.NoError(t, err)
		resp.Body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer " + testDeviceToken, "Bearer sess"}, seen)
}

func TestDo_SleepCanceled(t *testing.T) {
	c := newStatusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.sleepFunc = func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := c.do(context.Background(), http.MethodGet, c.storageURL+"/x", nil, "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestClearAuth(t *testing.T) {
	c := NewClient("dev", nil, Options{}, nil)

	assert.False(t, c.clearAuth(), "nothing to clear")

	c.setAuth(authDevice)
	assert.True(t, c.clearAuth())
	assert.Zero(t, c.sessionClears)

	c.setAuth(authSession)
	assert.True(t, c.clearAuth())
	assert.Equal(t, 1, c.sessionClears)
	assert.Equal(t, authNone, c.auth)
}

func TestCalcBackoff_Bounds(t *testing.T) {
	for attempt := range 10 {
		d := calcBackoff(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://blob/abc", redactURL("https://blob/abc?X-Goog-Signature=secret"))
	assert.Equal(t, "https://blob/abc", redactURL("https://blob/abc"))
}

func TestAuthModeString(t *testing.T) {
	assert.Equal(t, "none", authNone.String())
	assert.Equal(t, "device", authDevice.String())
	assert.Equal(t, "session", authSession.String())
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Op: "blob upload", StatusCode: 403, Body: "denied", Err: ErrBlobRejected}

	assert.Equal(t, "cloud: blob upload: HTTP 403: denied", err.Error())
	assert.ErrorIs(t, err, ErrBlobRejected)
	assert.ErrorIs(t, err, ErrProtocol)

	bare := &StatusError{Op: "upload request", StatusCode: 500, Err: ErrUploadRejected}
	assert.Equal(t, "cloud: upload request: HTTP 500", bare.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(http.StatusTooManyRequests))
	assert.True(t, isRetryable(http.StatusServiceUnavailable))
	assert.False(t, isRetryable(http.StatusUnauthorized))
	assert.False(t, isRetryable(http.StatusOK))
	assert.False(t, isRetryable(http.StatusNotImplemented))
}

// newStallingClient returns a client whose server answers 200 with a
// promised body it never finishes, so the client timeout fires while the
// body is being read.
func newStallingClient(t *testing.T, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Success"`))

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(testDeviceToken, &http.Client{Timeout: timeout}, Options{
		StorageURL: srv.URL,
		WebappURL:  srv.URL,
		UserToken:  testSessionToken,
	}, testLogger(t))
	c.sleepFunc = noopSleep

	return c
}

func TestClassifyBodyError(t *testing.T) {
	c := NewClient("dev", nil, Options{}, testLogger(t))

	err := c.classifyBodyError(context.Background(), "upload response", context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrProtocol)

	err = c.classifyBodyError(context.Background(), "upload response", io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrProtocol)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.classifyBodyError(ctx, "upload response", context.DeadlineExceeded)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrProtocol)
}

func TestTransportError_RedactsSignedURL(t *testing.T) {
	c := NewClient(testDeviceToken, &http.Client{Timeout: 5 * time.Second}, Options{}, testLogger(t))

	err := c.putBlob(context.Background(), "http://127.0.0.1:1/blob?signature=s3cr3t", []byte("x"), testLogger(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProtocol)
	assert.NotContains(t, err.Error(), "s3cr3t")
	assert.Contains(t, err.Error(), "http://127.0.0.1:1/blob")

	var uerr *url.Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "http://127.0.0.1:1/blob", uerr.URL)
}

func TestRedactURLError(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, redactURLError(plain))

	wrapped := fmt.Errorf("outer: %w", &url.Error{Op: "Put", URL: "https://blob/abc?sig=secret", Err: plain})
	got := redactURLError(wrapped)
	assert.NotContains(t, got.Error(), "secret")
	assert.ErrorIs(t, got, plain)
}
